package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/boarding_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	return FetchModel[T](ctx, 0, id, associations...)
}

// fetch model from db
// (boarding_house_id is used in WHERE when > 0, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, boardingHouseId int, id int, associations ...string) (*T, error) {
	return FetchModelTx[T](config.GetDB().WithContext(ctx), boardingHouseId, id, associations...)
}

// FetchModelTx is FetchModel on an open transaction.
func FetchModelTx[T any](tx *gorm.DB, boardingHouseId int, id int, associations ...string) (*T, error) {
	q := tx
	if boardingHouseId > 0 {
		q = q.Where("boarding_house_id = ?", boardingHouseId)
	}
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	err := q.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch all models of the house, ordered by id
func FetchAllModels[T any](ctx context.Context, boardingHouseId int, associations ...string) ([]*T, error) {
	q := config.GetDB().WithContext(ctx)
	if boardingHouseId > 0 {
		q = q.Where("boarding_house_id = ?", boardingHouseId)
	}
	for _, field := range associations {
		q = q.Preload(field)
	}
	var results []*T
	if err := q.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
