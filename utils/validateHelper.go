package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/mmdatafocus/boarding_backend/config"
)

// check if id exists in the house, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, boardingHouseId int, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, boardingHouseId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// check if ALL ids exist in the house, return RecordNotFound error
func ValidateResourcesId[M any, ID comparable](ctx context.Context, boardingHouseId int, ids []ID) error {
	unqIds := UniqueSlice(ids)
	if len(unqIds) == 0 {
		return nil
	}

	count, err := ResourceCountWhere[M](ctx, boardingHouseId, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, boardingHouseId int, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if exceptId == nil || reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, boardingHouseId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, boardingHouseId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return NewConflictError("duplicate %s", column)
	}
	return nil
}

// count records, using WHERE boarding_house_id = ? AND $condition
// boardingHouseId 0 skips the house filter (boss, global tables)
func ResourceCountWhere[T any](ctx context.Context, boardingHouseId int, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	if db == nil {
		return 0, errors.New("database not connected")
	}
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if boardingHouseId > 0 {
		dbCtx = dbCtx.Where("boarding_house_id = ?", boardingHouseId)
	}
	dbCtx = dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
