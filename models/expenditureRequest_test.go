package models_test

import (
	"testing"

	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenditureRequestLifecycle(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "REQ")
	reviewer := utils.SetUserNameInContext(utils.SetUserIdInContext(ctx, 2), "warden")
	repairs := systemAccount(t, ctx, house.ID, models.SystemAccountRepairs)
	cash := systemAccount(t, ctx, house.ID, models.SystemAccountCash)

	_, err := models.CreateExpenditureRequest(ctx, &models.NewExpenditureRequest{Title: "Nothing", Amount: money("0")})
	assert.ErrorIs(t, err, utils.ErrValidation)
	income := systemAccount(t, ctx, house.ID, models.SystemAccountRentalIncome)
	_, err = models.CreateExpenditureRequest(ctx, &models.NewExpenditureRequest{Title: "Wrong account", Amount: money("5"), AccountId: income.ID})
	assert.ErrorIs(t, err, utils.ErrValidation)

	request, err := models.CreateExpenditureRequest(ctx, &models.NewExpenditureRequest{
		Title:     "  Geyser element ",
		Amount:    money("120"),
		AccountId: repairs.ID,
		Priority:  models.PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "Geyser element", request.Title)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Equal(t, 1, request.RequestedBy)
	assert.Equal(t, "tester", request.RequestedByName)

	_, err = models.CancelExpenditureRequest(reviewer, request.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden, "only the requester cancels")

	_, _, err = models.PostApprovedExpenditure(reviewer, request.ID, &models.PostExpenditureRequest{
		ExpenseDate:   day(2025, 5, 2),
		PaymentMethod: models.ExpensePaymentCash,
	})
	assert.ErrorIs(t, err, utils.ErrConflict, "pending requests cannot be posted")

	approved, err := models.ReviewExpenditure(reviewer, request.ID, &models.ReviewExpenditureRequest{Approve: true, Note: "go ahead"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, approved.Status)
	assert.Equal(t, 2, approved.ReviewedBy)
	assert.Equal(t, "warden", approved.ReviewedByName)
	assert.NotNil(t, approved.ReviewedAt)

	_, err = models.ReviewExpenditure(reviewer, request.ID, &models.ReviewExpenditureRequest{Approve: false})
	assert.ErrorIs(t, err, utils.ErrConflict)
	_, err = models.CancelExpenditureRequest(ctx, request.ID)
	assert.ErrorIs(t, err, utils.ErrConflict)

	posted, expense, err := models.PostApprovedExpenditure(reviewer, request.ID, &models.PostExpenditureRequest{
		ExpenseDate:   day(2025, 5, 2),
		PaymentMethod: models.ExpensePaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPosted, posted.Status)
	assert.Equal(t, expense.ID, posted.ExpenseId)
	assert.Equal(t, request.ID, expense.ExpenditureRequestId)
	assert.Equal(t, repairs.ID, expense.AccountId)
	assertMoney(t, "120", expense.Amount)
	assertMoney(t, "-120", cachedBalance(t, cash.ID))
	assertMoney(t, "120", cachedBalance(t, repairs.ID))

	_, err = models.VoidExpense(reviewer, expense.ID, "wrong supplier")
	require.NoError(t, err)
	reopened, err := models.GetExpenditureRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, reopened.Status)
	assert.Zero(t, reopened.ExpenseId)
	assert.True(t, cachedBalance(t, cash.ID).IsZero())

	rejected, err := models.CreateExpenditureRequest(ctx, &models.NewExpenditureRequest{Title: "New TV", Amount: money("300")})
	require.NoError(t, err)
	rejected, err = models.ReviewExpenditure(reviewer, rejected.ID, &models.ReviewExpenditureRequest{Approve: false, Note: " not this term "})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, rejected.Status)
	assert.Equal(t, "not this term", rejected.ReviewNote)
	_, err = models.CancelExpenditureRequest(ctx, rejected.ID)
	assert.ErrorIs(t, err, utils.ErrConflict)

	withdrawn, err := models.CreateExpenditureRequest(ctx, &models.NewExpenditureRequest{Title: "Paint", Amount: money("40")})
	require.NoError(t, err)
	withdrawn, err = models.CancelExpenditureRequest(ctx, withdrawn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, withdrawn.Status)

	pending, err := models.ListExpenditureRequests(ctx, models.ExpenditureRequestFilter{Status: models.RequestStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending.Total)
	all, err := models.ListExpenditureRequests(ctx, models.ExpenditureRequestFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)
}
