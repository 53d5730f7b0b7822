package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
)

type Supplier struct {
	ID              int       `gorm:"primary_key" json:"id"`
	BoardingHouseId int       `gorm:"index;not null" json:"boarding_house_id"`
	Name            string    `gorm:"size:150;not null" json:"name"`
	ContactPerson   string    `gorm:"size:100" json:"contact_person"`
	Phone           string    `gorm:"size:30" json:"phone"`
	Email           string    `gorm:"size:100" json:"email"`
	Category        string    `gorm:"size:50;index" json:"category"`
	Address         string    `gorm:"type:text" json:"address"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name          string `json:"name" binding:"required,max=150"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" binding:"omitempty,email"`
	Category      string `json:"category"`
	Address       string `json:"address"`
	IsActive      *bool  `json:"is_active"`
}

func (s *Supplier) Active() bool {
	return s.IsActive == nil || *s.IsActive
}

func (input *NewSupplier) validate(ctx context.Context, boardingHouseId int, id int) error {
	input.Name = strings.TrimSpace(input.Name)
	phone, err := utils.NormalizePhoneNumber(input.Phone, config.DefaultPhoneRegion())
	if err != nil {
		return err
	}
	input.Phone = phone
	return utils.ValidateUnique[Supplier](ctx, boardingHouseId, "name", input.Name, id)
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, boardingHouseId, 0); err != nil {
		return nil, err
	}
	supplier := Supplier{
		BoardingHouseId: boardingHouseId,
		Name:            input.Name,
		ContactPerson:   input.ContactPerson,
		Phone:           input.Phone,
		Email:           input.Email,
		Category:        input.Category,
		Address:         input.Address,
		IsActive:        utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	supplier, err := utils.FetchModel[Supplier](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, boardingHouseId, id); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"Name":          input.Name,
		"ContactPerson": input.ContactPerson,
		"Phone":         input.Phone,
		"Email":         input.Email,
		"Category":      input.Category,
		"Address":       input.Address,
	}
	if input.IsActive != nil {
		updates["IsActive"] = *input.IsActive
	}
	if err := config.GetDB().WithContext(ctx).Model(supplier).Updates(updates).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Supplier](ctx, boardingHouseId, id)
}

// DeleteSupplier removes a supplier without expenses; otherwise deactivate it.
func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	supplier, err := utils.FetchModel[Supplier](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	var count int64
	if err := db.Model(&Expense{}).Where("supplier_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("supplier %s has expenses, deactivate it instead", supplier.Name)
	}
	if err := db.Delete(supplier).Error; err != nil {
		return nil, err
	}
	return supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Supplier](ctx, boardingHouseId, id)
}

func ListSuppliers(ctx context.Context, includeInactive bool) ([]*Supplier, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("boarding_house_id = ?", boardingHouseId)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var suppliers []*Supplier
	if err := q.Order("name").Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}
