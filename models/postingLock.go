package models

import (
	"fmt"

	"gorm.io/gorm"
)

const postingLockTimeoutSeconds = 30

func postingLockName(boardingHouseId int) string {
	return fmt.Sprintf("posting:house:%d", boardingHouseId)
}

// AcquirePostingLock serializes ledger posting per boarding house across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the *gorm.DB (tx) that does the posting.
// Other dialects (sqlite in tests) are single-writer and skip the lock.
func AcquirePostingLock(tx *gorm.DB, boardingHouseId int) error {
	if !isMySQL(tx) {
		return nil
	}
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, ?)", postingLockName(boardingHouseId), postingLockTimeoutSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for boarding_house_id=%d", boardingHouseId)
	}
	return nil
}

func ReleasePostingLock(tx *gorm.DB, boardingHouseId int) {
	if !isMySQL(tx) {
		return
	}
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", postingLockName(boardingHouseId)).Scan(&_ok).Error
}
