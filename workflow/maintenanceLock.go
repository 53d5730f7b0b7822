package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"gorm.io/gorm"
)

var ErrMaintenanceRunning = fmt.Errorf("%w: another maintenance run holds the lock", utils.ErrConflict)

const maintenanceLockTTL = 10 * time.Minute

func maintenanceLockKey(task string, boardingHouseId int) string {
	return fmt.Sprintf("maintenance:%s:house:%d", task, boardingHouseId)
}

// WithMaintenanceLock runs fn while holding a cross-instance redis lock for (task, house).
// Without redis it runs fn unguarded; the posting lock still serializes ledger writes.
func WithMaintenanceLock(ctx context.Context, task string, boardingHouseId int, fn func(ctx context.Context) error) error {
	locker := config.GetRedisLock()
	if locker == nil {
		return fn(ctx)
	}
	lock, err := locker.Obtain(ctx, maintenanceLockKey(task, boardingHouseId), maintenanceLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrMaintenanceRunning
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release(context.Background())
	}()

	// keep the lock alive for long runs
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(maintenanceLockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				_ = lock.Refresh(runCtx, maintenanceLockTTL, nil)
			}
		}
	}()
	return fn(runCtx)
}

// TargetBoardingHouses resolves the houses a maintenance run covers:
// the given one, or every active house when id is 0.
func TargetBoardingHouses(ctx context.Context, db *gorm.DB, id int) ([]models.BoardingHouse, error) {
	var houses []models.BoardingHouse
	q := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).Order("id")
	if id > 0 {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&houses).Error; err != nil {
		return nil, err
	}
	if id > 0 && len(houses) == 0 {
		return nil, fmt.Errorf("%w: boarding house %d", utils.ErrorRecordNotFound, id)
	}
	return houses, nil
}

// HouseMaintenanceContext is the context a tool uses to act inside one house.
func HouseMaintenanceContext(parent context.Context, tool string, boardingHouseId int) context.Context {
	ctx := utils.NewMaintenanceContext(parent, tool)
	return utils.SetBoardingHouseIdInContext(ctx, boardingHouseId)
}
