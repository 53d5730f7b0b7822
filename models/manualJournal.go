package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/boarding_backend/utils"
	"gorm.io/gorm"
)

type NewManualJournal struct {
	JournalDate time.Time     `json:"journal_date" binding:"required"`
	Reference   string        `json:"reference"`
	Description string        `json:"description" binding:"required"`
	Lines       []PostingLine `json:"lines" binding:"required,min=2,dive"`
}

// PostManualJournal posts an adjusting entry typed in by an accountant.
func PostManualJournal(ctx context.Context, input *NewManualJournal) (*Transaction, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if input.JournalDate.IsZero() {
		return nil, utils.NewValidationError("journal date is required")
	}

	var result *Transaction
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var err error
		result, err = PostTransactionTx(ctx, tx, boardingHouseId, &PostingInput{
			Type:            TransactionTypeManualJournal,
			Reference:       input.Reference,
			ReferenceType:   ReferenceTypeJournal,
			Description:     input.Description,
			TransactionDate: input.JournalDate,
			Lines:           input.Lines,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
