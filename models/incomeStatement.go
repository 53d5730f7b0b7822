package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
)

// IncomeStatementSnapshot stores a generated income statement. BoardingHouseId 0 is the consolidated view.
type IncomeStatementSnapshot struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BoardingHouseId int             `gorm:"index;not null;default:0" json:"boarding_house_id"`
	FromDate        time.Time       `gorm:"not null" json:"from_date"`
	ToDate          time.Time       `gorm:"not null" json:"to_date"`
	TotalRevenue    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_revenue"`
	TotalExpenses   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_expenses"`
	NetIncome       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"net_income"`
	Payload         string          `gorm:"type:longtext" json:"payload"`
	GeneratedBy     int             `json:"generated_by"`
	GeneratedByName string          `gorm:"size:100" json:"generated_by_name"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func SaveIncomeStatementSnapshot(ctx context.Context, snapshot *IncomeStatementSnapshot) error {
	snapshot.BoardingHouseId = scopeBoardingHouseId(ctx)
	snapshot.GeneratedBy, snapshot.GeneratedByName = utils.ActorFromContext(ctx)
	return config.GetDB().WithContext(ctx).Create(snapshot).Error
}

// ListIncomeStatementSnapshots lists snapshots of the scoped house, newest first, without payloads.
func ListIncomeStatementSnapshots(ctx context.Context, page PageInput) (*Paginated[*IncomeStatementSnapshot], error) {
	q := config.GetDB().WithContext(ctx).Model(&IncomeStatementSnapshot{}).
		Where("boarding_house_id = ?", scopeBoardingHouseId(ctx))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	p, pageSize := page.normalize()
	var items []*IncomeStatementSnapshot
	err := q.Omit("payload").Order("id DESC").Offset(page.offset()).Limit(pageSize).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return &Paginated[*IncomeStatementSnapshot]{Items: items, Total: total, Page: p, PageSize: pageSize}, nil
}

func GetIncomeStatementSnapshot(ctx context.Context, id int) (*IncomeStatementSnapshot, error) {
	return utils.FetchModel[IncomeStatementSnapshot](ctx, scopeBoardingHouseId(ctx), id)
}
