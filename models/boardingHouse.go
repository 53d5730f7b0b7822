package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"gorm.io/gorm"
)

type BoardingHouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Address   string    `gorm:"type:text" json:"address"`
	Phone     string    `gorm:"size:30" json:"phone"`
	Timezone  string    `gorm:"size:50;not null;default:'Africa/Harare'" json:"timezone"`
	Currency  string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBoardingHouse struct {
	Name     string `json:"name" binding:"required,max=100"`
	Code     string `json:"code" binding:"required,max=20,alphanum"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
}

func (input *NewBoardingHouse) validate(ctx context.Context, id int) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	if input.Timezone == "" {
		input.Timezone = "Africa/Harare"
	}
	if _, err := time.LoadLocation(input.Timezone); err != nil {
		return utils.NewValidationError("unknown timezone %q", input.Timezone)
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}
	input.Currency = strings.ToUpper(input.Currency)
	phone, err := utils.NormalizePhoneNumber(input.Phone, config.DefaultPhoneRegion())
	if err != nil {
		return err
	}
	input.Phone = phone
	return utils.ValidateUnique[BoardingHouse](ctx, 0, "code", input.Code, id)
}

// CreateBoardingHouse creates the house and seeds its chart of accounts in one transaction.
func CreateBoardingHouse(ctx context.Context, input *NewBoardingHouse) (*BoardingHouse, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	house := BoardingHouse{
		Name:     input.Name,
		Code:     input.Code,
		Address:  input.Address,
		Phone:    input.Phone,
		Timezone: input.Timezone,
		Currency: input.Currency,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&house).Error; err != nil {
			return err
		}
		return SeedDefaultAccounts(tx, house.ID)
	})
	if err != nil {
		return nil, err
	}
	return &house, nil
}

func UpdateBoardingHouse(ctx context.Context, id int, input *NewBoardingHouse) (*BoardingHouse, error) {
	house, err := utils.FetchModel[BoardingHouse](ctx, 0, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(house).Updates(map[string]interface{}{
		"Name":     input.Name,
		"Code":     input.Code,
		"Address":  input.Address,
		"Phone":    input.Phone,
		"Timezone": input.Timezone,
		"Currency": input.Currency,
	}).Error
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[BoardingHouse](ctx, 0, id)
}

// DeactivateBoardingHouse hides the house; its users can no longer log in.
func DeactivateBoardingHouse(ctx context.Context, id int) (*BoardingHouse, error) {
	house, err := utils.FetchModel[BoardingHouse](ctx, 0, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(house).Update("is_active", false).Error; err != nil {
		return nil, err
	}
	house.IsActive = utils.NewFalse()
	return house, nil
}

func GetBoardingHouse(ctx context.Context, id int) (*BoardingHouse, error) {
	return utils.FetchModel[BoardingHouse](ctx, 0, id)
}

// ListBoardingHouses returns every house for boss users, otherwise only the user's own.
func ListBoardingHouses(ctx context.Context) ([]*BoardingHouse, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Order("name")
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
		boardingHouseId, err := requireBoardingHouseId(ctx)
		if err != nil {
			return nil, err
		}
		q = q.Where("id = ?", boardingHouseId)
	}
	var houses []*BoardingHouse
	if err := q.Find(&houses).Error; err != nil {
		return nil, err
	}
	return houses, nil
}
