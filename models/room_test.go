package models_test

import (
	"testing"

	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAndDeleteRoomRespectOccupancy(t *testing.T) {
	setupTestDB(t)
	ctx, _ := newHouse(t, "ROOMS")
	room := newRoom(t, ctx, "D1", 2, "90", models.GenderMixed)
	spare := newRoom(t, ctx, "D2", 2, "90", models.GenderMixed)
	for _, name := range []string{"Tapiwa", "Ruvimbo"} {
		student := newStudent(t, ctx, name, models.GenderFemale)
		_, err := models.EnrollStudent(ctx, student.ID, &models.NewEnrollment{RoomId: room.ID, StartDate: day(2025, 2, 1)})
		require.NoError(t, err)
	}

	_, err := models.UpdateRoom(ctx, room.ID, &models.NewRoom{RoomNumber: "D1", Capacity: 1, MonthlyRent: money("90")})
	assert.ErrorIs(t, err, utils.ErrValidation)

	updated, err := models.UpdateRoom(ctx, room.ID, &models.NewRoom{RoomNumber: "D1", Capacity: 3, MonthlyRent: money("95.555")})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Capacity)
	assertMoney(t, "95.56", updated.MonthlyRent)

	_, err = models.UpdateRoom(ctx, spare.ID, &models.NewRoom{RoomNumber: "D1", Capacity: 2})
	require.ErrorIs(t, err, utils.ErrConflict, "room numbers are unique per house")
	assert.Contains(t, err.Error(), "duplicate room_number")

	_, err = models.DeleteRoom(ctx, room.ID)
	assert.ErrorIs(t, err, utils.ErrValidation, "rooms with enrollment history stay")

	deleted, err := models.DeleteRoom(ctx, spare.ID)
	require.NoError(t, err)
	assert.Equal(t, "D2", deleted.RoomNumber)
	_, err = models.GetRoom(ctx, spare.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestDeleteSupplierWithExpensesIsRefused(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "SUPP")
	used := newSupplier(t, ctx, "Harare Plumbing")
	unused := newSupplier(t, ctx, "Avondale Gas")
	repairs := systemAccount(t, ctx, house.ID, models.SystemAccountRepairs)

	_, err := models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:   day(2025, 4, 9),
		AccountId:     repairs.ID,
		SupplierId:    used.ID,
		Amount:        money("60"),
		PaymentMethod: models.ExpensePaymentCredit,
		Description:   "Blocked drain",
	})
	require.NoError(t, err)

	_, err = models.DeleteSupplier(ctx, used.ID)
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = models.GetSupplier(ctx, used.ID)
	assert.NoError(t, err)

	_, err = models.DeleteSupplier(ctx, unused.ID)
	require.NoError(t, err)
	_, err = models.GetSupplier(ctx, unused.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestAccountLedgerRunningBalance(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "LEDG")
	cash := systemAccount(t, ctx, house.ID, models.SystemAccountCash)
	utilities := systemAccount(t, ctx, house.ID, models.SystemAccountUtilities)

	postCapital(t, ctx, house.ID, "500", day(2025, 1, 15))
	postCapital(t, ctx, house.ID, "250", day(2025, 2, 3))
	_, err := models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:   day(2025, 2, 10),
		AccountId:     utilities.ID,
		Amount:        money("80"),
		PaymentMethod: models.ExpensePaymentCash,
		Description:   "Water bill",
	})
	require.NoError(t, err)
	voided := postCapital(t, ctx, house.ID, "40", day(2025, 2, 12))
	_, err = models.VoidTransaction(ctx, voided.ID, "posted twice")
	require.NoError(t, err)
	postCapital(t, ctx, house.ID, "1000", day(2025, 3, 1))

	ledger, err := models.AccountLedger(ctx, cash.ID, day(2025, 2, 1), day(2025, 2, 28))
	require.NoError(t, err)
	assertMoney(t, "500", ledger.OpeningBalance)
	require.Len(t, ledger.Lines, 2, "voided and out-of-range postings are excluded")
	assertMoney(t, "250", ledger.Lines[0].Debit)
	assertMoney(t, "750", ledger.Lines[0].RunningBalance)
	assertMoney(t, "80", ledger.Lines[1].Credit)
	assertMoney(t, "670", ledger.Lines[1].RunningBalance)
	assertMoney(t, "250", ledger.TotalDebit)
	assertMoney(t, "80", ledger.TotalCredit)
	assertMoney(t, "670", ledger.ClosingBalance)

	_, err = models.AccountLedger(ctx, cash.ID, day(2025, 3, 1), day(2025, 2, 1))
	assert.ErrorIs(t, err, utils.ErrValidation)
}
