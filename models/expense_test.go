package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSupplier(t *testing.T, ctx context.Context, name string) *models.Supplier {
	t.Helper()
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: name, Category: "utilities"})
	require.NoError(t, err)
	return supplier
}

func TestRecordCashExpense(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "EXP")
	utilities := systemAccount(t, ctx, house.ID, models.SystemAccountUtilities)
	cash := systemAccount(t, ctx, house.ID, models.SystemAccountCash)

	expense, err := models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:   day(2025, 4, 2),
		AccountId:     utilities.ID,
		Amount:        money("45.50"),
		PaymentMethod: models.ExpensePaymentCash,
		Description:   "ZESA tokens",
	})
	require.NoError(t, err)
	assert.Equal(t, "EXP-000001", expense.ExpenseNumber)
	assert.Equal(t, models.ExpenseStatusPaid, expense.Status)
	assertMoney(t, "45.5", expense.AmountPaid)
	assertMoney(t, "-45.5", cachedBalance(t, cash.ID))
	assertMoney(t, "45.5", cachedBalance(t, utilities.ID))

	stored, err := models.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Account)
	assert.Equal(t, "5010", stored.Account.Code)

	list, err := models.ListExpenses(ctx, models.ExpenseFilter{AccountId: utilities.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)

	income := systemAccount(t, ctx, house.ID, models.SystemAccountRentalIncome)
	_, err = models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:   day(2025, 4, 2),
		AccountId:     income.ID,
		Amount:        money("5"),
		PaymentMethod: models.ExpensePaymentCash,
		Description:   "not an expense account",
	})
	assert.ErrorIs(t, err, utils.ErrValidation)

	voided, err := models.VoidExpense(ctx, expense.ID, "wrong amount")
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusVoid, voided.Status)
	assert.True(t, cachedBalance(t, cash.ID).IsZero())

	_, err = models.VoidExpense(ctx, expense.ID, "again")
	assert.ErrorIs(t, err, utils.ErrConflict)
}

func TestCreditExpenseAndSupplierPayments(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "CRED")
	repairs := systemAccount(t, ctx, house.ID, models.SystemAccountRepairs)
	payable := systemAccount(t, ctx, house.ID, models.SystemAccountPayable)
	bank := systemAccount(t, ctx, house.ID, models.SystemAccountBank)
	supplier := newSupplier(t, ctx, "Harare Plumbing")

	_, err := models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:   day(2025, 5, 1),
		AccountId:     repairs.ID,
		Amount:        money("200"),
		PaymentMethod: models.ExpensePaymentCredit,
		Description:   "Geyser",
	})
	assert.ErrorIs(t, err, utils.ErrValidation, "credit needs a supplier")

	expense, err := models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:   day(2025, 5, 1),
		AccountId:     repairs.ID,
		SupplierId:    supplier.ID,
		Amount:        money("200"),
		PaymentMethod: models.ExpensePaymentCredit,
		Description:   "Geyser",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusUnpaid, expense.Status)
	assertMoney(t, "200", cachedBalance(t, payable.ID))

	_, err = models.PaySupplier(ctx, &models.NewSupplierPayment{
		ExpenseId:   expense.ID,
		Amount:      money("150"),
		PaymentDate: day(2025, 5, 10),
		Method:      models.ExpensePaymentBank,
	})
	require.NoError(t, err)
	stored, err := models.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusPartial, stored.Status)
	assertMoney(t, "50", stored.Outstanding())
	assertMoney(t, "50", cachedBalance(t, payable.ID))
	assertMoney(t, "-150", cachedBalance(t, bank.ID))

	_, err = models.PaySupplier(ctx, &models.NewSupplierPayment{
		ExpenseId:   expense.ID,
		Amount:      money("100"),
		PaymentDate: day(2025, 5, 11),
		Method:      models.ExpensePaymentCash,
	})
	assert.ErrorIs(t, err, utils.ErrValidation, "more than outstanding")

	_, err = models.VoidExpense(ctx, expense.ID, "cancel")
	assert.ErrorIs(t, err, utils.ErrValidation, "expense with supplier payments")

	_, err = models.PaySupplier(ctx, &models.NewSupplierPayment{
		ExpenseId:   expense.ID,
		Amount:      money("50"),
		PaymentDate: day(2025, 5, 12),
		Method:      models.ExpensePaymentCash,
	})
	require.NoError(t, err)
	stored, err = models.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusPaid, stored.Status)
	assert.True(t, cachedBalance(t, payable.ID).IsZero())

	utilities := systemAccount(t, ctx, house.ID, models.SystemAccountUtilities)
	cashExpense, err := models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:   day(2025, 5, 2),
		AccountId:     utilities.ID,
		SupplierId:    supplier.ID,
		Amount:        money("20"),
		PaymentMethod: models.ExpensePaymentCash,
		Description:   "Water",
	})
	require.NoError(t, err)
	_, err = models.PaySupplier(ctx, &models.NewSupplierPayment{
		ExpenseId:   cashExpense.ID,
		Amount:      money("20"),
		PaymentDate: day(2025, 5, 12),
		Method:      models.ExpensePaymentCash,
	})
	assert.ErrorIs(t, err, utils.ErrValidation, "cash expenses are already settled")
}

func TestPettyCashLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx, house := newHouse(t, "PETTY")
	ledger := systemAccount(t, ctx, house.ID, models.SystemAccountPettyCash)
	food := systemAccount(t, ctx, house.ID, models.SystemAccountFood)
	bank := systemAccount(t, ctx, house.ID, models.SystemAccountBank)

	box, err := models.CreatePettyCashAccount(ctx, &models.NewPettyCashAccount{Name: "Front desk"})
	require.NoError(t, err)
	assert.Equal(t, ledger.ID, box.LedgerAccountId)

	spend := func(amount string) (*models.Expense, error) {
		return models.RecordExpense(ctx, &models.NewExpense{
			ExpenseDate:        day(2025, 3, 2),
			AccountId:          food.ID,
			Amount:             money(amount),
			PaymentMethod:      models.ExpensePaymentPettyCash,
			PettyCashAccountId: box.ID,
			Description:        "Bread",
		})
	}

	_, err = spend("10")
	assert.ErrorIs(t, err, utils.ErrInsufficientFunds)

	topUp, err := models.ReplenishPettyCash(ctx, box.ID, &models.PettyCashMovementInput{
		Amount: money("100"),
		Date:   day(2025, 3, 1),
		Method: models.ExpensePaymentCash,
	})
	require.NoError(t, err)
	assertMoney(t, "100", topUp.BalanceAfter)
	assertMoney(t, "100", cachedBalance(t, ledger.ID))

	expense, err := spend("30")
	require.NoError(t, err)
	assert.Equal(t, box.ID, expense.PettyCashAccountId)

	back, err := models.ReturnPettyCash(ctx, box.ID, &models.PettyCashMovementInput{
		Amount: money("20"),
		Date:   day(2025, 3, 3),
		Method: models.ExpensePaymentBank,
	})
	require.NoError(t, err)
	assertMoney(t, "50", back.BalanceAfter)
	assertMoney(t, "20", cachedBalance(t, bank.ID))

	_, err = models.ReturnPettyCash(ctx, box.ID, &models.PettyCashMovementInput{
		Amount: money("80"),
		Date:   day(2025, 3, 3),
		Method: models.ExpensePaymentBank,
	})
	assert.ErrorIs(t, err, utils.ErrInsufficientFunds)

	_, err = models.VoidExpense(ctx, expense.ID, "returned the bread")
	require.NoError(t, err)
	current, err := models.GetPettyCashAccount(ctx, box.ID)
	require.NoError(t, err)
	assertMoney(t, "80", current.Balance)
	assertMoney(t, "80", cachedBalance(t, ledger.ID))
	assert.True(t, cachedBalance(t, food.ID).IsZero())

	movements, err := models.ListPettyCashTransactions(ctx, box.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, models.PettyCashExpense, movements[1].Type)
	assert.True(t, movements[1].IsVoid)
	assertMoney(t, "80", movements[2].BalanceAfter)

	_, err = models.SetPettyCashAccountActive(ctx, box.ID, false)
	assert.ErrorIs(t, err, utils.ErrValidation, "account still holds money")

	report, err := models.RunIntegrityChecks(ctx, house.ID)
	require.NoError(t, err)
	assert.True(t, report.IsClean, "%+v", report.Findings)

	require.NoError(t, db.WithContext(adminContext()).Model(&models.PettyCashAccount{}).
		Where("id = ?", box.ID).Update("balance", 5).Error)
	drifts, err := models.DiffPettyCashBalances(db.WithContext(ctx), house.ID)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assertMoney(t, "5", drifts[0].Stored)
	assertMoney(t, "80", drifts[0].Actual)

	fixed, err := models.RecalculatePettyCashTx(db.WithContext(ctx), house.ID)
	require.NoError(t, err)
	assert.Len(t, fixed, 1)
	current, err = models.GetPettyCashAccount(ctx, box.ID)
	require.NoError(t, err)
	assertMoney(t, "80", current.Balance)
}

func TestPettyCashMayGoNegativeWhenAllowed(t *testing.T) {
	setupTestDB(t)
	t.Setenv("ALLOW_NEGATIVE_PETTY_CASH", "true")
	ctx, house := newHouse(t, "FLOAT")
	general := systemAccount(t, ctx, house.ID, models.SystemAccountGeneralExpenses)
	box, err := models.CreatePettyCashAccount(ctx, &models.NewPettyCashAccount{Name: "Caretaker"})
	require.NoError(t, err)

	_, err = models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:        day(2025, 3, 2),
		AccountId:          general.ID,
		Amount:             money("12"),
		PaymentMethod:      models.ExpensePaymentPettyCash,
		PettyCashAccountId: box.ID,
		Description:        "Bulbs",
	})
	require.NoError(t, err)

	var stored models.PettyCashAccount
	require.NoError(t, config.GetDB().WithContext(ctx).First(&stored, box.ID).Error)
	assertMoney(t, "-12", stored.Balance)
}
