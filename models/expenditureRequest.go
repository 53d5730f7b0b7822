package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenditureRequest is a branch's request to spend money, reviewed by an admin or the boss.
type ExpenditureRequest struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BoardingHouseId int             `gorm:"index;not null" json:"boarding_house_id"`
	Title           string          `gorm:"size:150;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	AccountId       int             `gorm:"index;not null;default:0" json:"account_id"`
	SupplierId      int             `gorm:"index;not null;default:0" json:"supplier_id"`
	Priority        RequestPriority `gorm:"size:20;not null" json:"priority"`
	Status          RequestStatus   `gorm:"size:20;not null;index" json:"status"`
	RequestedBy     int             `gorm:"index" json:"requested_by"`
	RequestedByName string          `gorm:"size:100" json:"requested_by_name"`
	ReviewedBy      int             `json:"reviewed_by"`
	ReviewedByName  string          `gorm:"size:100" json:"reviewed_by_name"`
	ReviewedAt      *time.Time      `json:"reviewed_at"`
	ReviewNote      string          `gorm:"size:255" json:"review_note"`
	ExpenseId       int             `gorm:"index;not null;default:0" json:"expense_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewExpenditureRequest struct {
	Title       string          `json:"title" binding:"required,max=150"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	AccountId   int             `json:"account_id"`
	SupplierId  int             `json:"supplier_id"`
	Priority    RequestPriority `json:"priority"`
}

type ReviewExpenditureRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// PostExpenditureRequest turns an approved request into an expense.
type PostExpenditureRequest struct {
	ExpenseDate        time.Time            `json:"expense_date" binding:"required"`
	AccountId          int                  `json:"account_id"`
	PaymentMethod      ExpensePaymentMethod `json:"payment_method" binding:"required"`
	PettyCashAccountId int                  `json:"petty_cash_account_id"`
	Amount             *decimal.Decimal     `json:"amount"`
}

type ExpenditureRequestFilter struct {
	Status RequestStatus
	PageInput
}

func (input *NewExpenditureRequest) validate(ctx context.Context, boardingHouseId int) error {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return utils.NewValidationError("title is required")
	}
	input.Amount = utils.RoundMoney(input.Amount)
	if !input.Amount.IsPositive() {
		return utils.NewValidationError("amount must be positive")
	}
	if input.Priority == "" {
		input.Priority = PriorityNormal
	}
	if !input.Priority.IsValid() {
		return utils.NewValidationError("invalid priority %q", input.Priority)
	}
	if input.AccountId > 0 {
		account, err := utils.FetchModel[Account](ctx, boardingHouseId, input.AccountId)
		if err != nil {
			return utils.NewValidationError("account not found")
		}
		if account.Type != AccountTypeExpense {
			return utils.NewValidationError("account %s is not an expense account", account.Code)
		}
	}
	if input.SupplierId > 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, boardingHouseId, input.SupplierId); err != nil {
			return utils.NewValidationError("supplier not found")
		}
	}
	return nil
}

func CreateExpenditureRequest(ctx context.Context, input *NewExpenditureRequest) (*ExpenditureRequest, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, boardingHouseId); err != nil {
		return nil, err
	}
	userId, userName := utils.ActorFromContext(ctx)
	request := ExpenditureRequest{
		BoardingHouseId: boardingHouseId,
		Title:           input.Title,
		Description:     strings.TrimSpace(input.Description),
		Amount:          input.Amount,
		AccountId:       input.AccountId,
		SupplierId:      input.SupplierId,
		Priority:        input.Priority,
		Status:          RequestStatusPending,
		RequestedBy:     userId,
		RequestedByName: userName,
	}
	if err := config.GetDB().WithContext(ctx).Create(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func GetExpenditureRequest(ctx context.Context, id int) (*ExpenditureRequest, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[ExpenditureRequest](ctx, boardingHouseId, id)
}

// ListExpenditureRequests lists requests of the current house, or of every house for house 0.
func ListExpenditureRequests(ctx context.Context, filter ExpenditureRequestFilter) (*Paginated[*ExpenditureRequest], error) {
	q := config.GetDB().WithContext(ctx).Model(&ExpenditureRequest{})
	if boardingHouseId := scopeBoardingHouseId(ctx); boardingHouseId > 0 {
		q = q.Where("boarding_house_id = ?", boardingHouseId)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	page, pageSize := filter.normalize()
	var items []*ExpenditureRequest
	if err := q.Order("created_at DESC, id DESC").Offset(filter.offset()).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, err
	}
	return &Paginated[*ExpenditureRequest]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func lockExpenditureRequest(tx *gorm.DB, boardingHouseId int, id int) (*ExpenditureRequest, error) {
	var request ExpenditureRequest
	if err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &request, nil
}

// CancelExpenditureRequest lets the requester withdraw a pending request.
func CancelExpenditureRequest(ctx context.Context, id int) (*ExpenditureRequest, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	userId, _ := utils.ActorFromContext(ctx)
	var request *ExpenditureRequest
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err = lockExpenditureRequest(tx, boardingHouseId, id)
		if err != nil {
			return err
		}
		if request.RequestedBy != userId {
			return utils.ErrForbidden
		}
		if request.Status != RequestStatusPending {
			return utils.NewConflictError("request is %s and can no longer be cancelled", request.Status)
		}
		request.Status = RequestStatusCancelled
		return tx.Model(request).Update("status", request.Status).Error
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func ReviewExpenditure(ctx context.Context, id int, input *ReviewExpenditureRequest) (*ExpenditureRequest, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	userId, userName := utils.ActorFromContext(ctx)
	var request *ExpenditureRequest
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err = lockExpenditureRequest(tx, boardingHouseId, id)
		if err != nil {
			return err
		}
		if request.Status != RequestStatusPending {
			return utils.NewConflictError("request is already %s", request.Status)
		}
		now := time.Now().UTC()
		request.Status = RequestStatusRejected
		if input.Approve {
			request.Status = RequestStatusApproved
		}
		request.ReviewedBy = userId
		request.ReviewedByName = userName
		request.ReviewedAt = &now
		request.ReviewNote = strings.TrimSpace(input.Note)
		return tx.Model(request).Updates(map[string]interface{}{
			"status":           request.Status,
			"reviewed_by":      request.ReviewedBy,
			"reviewed_by_name": request.ReviewedByName,
			"reviewed_at":      request.ReviewedAt,
			"review_note":      request.ReviewNote,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// PostApprovedExpenditure records the expense for an approved request in one posting transaction.
func PostApprovedExpenditure(ctx context.Context, id int, input *PostExpenditureRequest) (*ExpenditureRequest, *Expense, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, nil, err
	}
	var request *ExpenditureRequest
	var expense *Expense
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		request, err = lockExpenditureRequest(tx, boardingHouseId, id)
		if err != nil {
			return err
		}
		if request.Status != RequestStatusApproved {
			return utils.NewConflictError("only approved requests can be posted, request is %s", request.Status)
		}
		accountId := input.AccountId
		if accountId == 0 {
			accountId = request.AccountId
		}
		if accountId == 0 {
			return utils.NewValidationError("an expense account is required")
		}
		amount := request.Amount
		if input.Amount != nil {
			amount = *input.Amount
		}
		expense, err = recordExpenseTx(ctx, tx, boardingHouseId, &NewExpense{
			ExpenseDate:        input.ExpenseDate,
			AccountId:          accountId,
			SupplierId:         request.SupplierId,
			Amount:             amount,
			PaymentMethod:      input.PaymentMethod,
			PettyCashAccountId: input.PettyCashAccountId,
			Description:        request.Title,
		}, request.ID)
		if err != nil {
			return err
		}
		request.Status = RequestStatusPosted
		request.ExpenseId = expense.ID
		return tx.Model(request).Updates(map[string]interface{}{
			"status":     request.Status,
			"expense_id": request.ExpenseId,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return request, expense, nil
}
