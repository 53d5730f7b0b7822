package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoom(t *testing.T, ctx context.Context, number string, capacity int, rent string, gender models.GenderPolicy) *models.Room {
	t.Helper()
	room, err := models.CreateRoom(ctx, &models.NewRoom{
		RoomNumber:  number,
		Capacity:    capacity,
		MonthlyRent: money(rent),
		Gender:      gender,
	})
	require.NoError(t, err)
	return room
}

func newStudent(t *testing.T, ctx context.Context, first string, gender models.GenderPolicy) *models.Student {
	t.Helper()
	student, err := models.CreateStudent(ctx, &models.NewStudent{
		FirstName: first,
		LastName:  "Moyo",
		Gender:    gender,
		Phone:     "0771234567",
	})
	require.NoError(t, err)
	return student
}

func newCharge(t *testing.T, ctx context.Context, studentId int, amount string, date string) *models.StudentInvoice {
	t.Helper()
	invoiceDate, err := utils.ParseDate(date)
	require.NoError(t, err)
	invoice, err := models.CreateInvoice(ctx, &models.NewStudentInvoice{
		StudentId:   studentId,
		Description: "Charge " + date,
		Amount:      money(amount),
		InvoiceDate: invoiceDate,
	})
	require.NoError(t, err)
	return invoice
}

func loadInvoice(t *testing.T, ctx context.Context, id int) *models.StudentInvoice {
	t.Helper()
	var invoice models.StudentInvoice
	require.NoError(t, config.GetDB().WithContext(ctx).First(&invoice, id).Error)
	return &invoice
}

func TestCreateStudentNumbersAndNormalizesPhone(t *testing.T) {
	setupTestDB(t)
	ctx, _ := newHouse(t, "kwe")

	first := newStudent(t, ctx, "Tariro", models.GenderFemale)
	second := newStudent(t, ctx, "Tendai", models.GenderMale)
	assert.Equal(t, "STU-KWE-0001", first.StudentNumber)
	assert.Equal(t, "STU-KWE-0002", second.StudentNumber)
	assert.Equal(t, "+263771234567", first.Phone)
	assert.True(t, studentBalance(t, first.ID).IsZero())

	_, err := models.CreateStudent(ctx, &models.NewStudent{FirstName: "X", LastName: "Y", Gender: "other"})
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = models.CreateStudent(ctx, &models.NewStudent{FirstName: "X", LastName: "Y", Gender: models.GenderMale, Phone: "12"})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestEnrollStudentInvoicesAdminFee(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "ENROL")
	room := newRoom(t, ctx, "A01", 1, "100", models.GenderMixed)
	student := newStudent(t, ctx, "Rudo", models.GenderFemale)

	fee := money("20")
	result, err := models.EnrollStudent(ctx, student.ID, &models.NewEnrollment{
		RoomId:    room.ID,
		StartDate: day(2025, 3, 5),
		AdminFee:  &fee,
	})
	require.NoError(t, err)
	assertMoney(t, "100", result.Enrollment.MonthlyRent)
	assert.Equal(t, models.EnrollmentStatusActive, result.Enrollment.Status)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, models.InvoiceTypeAdminFee, result.Invoice.InvoiceType)
	assert.Equal(t, models.InvoiceStatusUnpaid, result.Invoice.Status)
	assert.True(t, result.Invoice.DueDate.Equal(day(2025, 3, 5)))
	assertMoney(t, "20", result.Invoice.Amount)

	receivable := systemAccount(t, ctx, house.ID, models.SystemAccountReceivable)
	adminIncome := systemAccount(t, ctx, house.ID, models.SystemAccountAdminFeeIncome)
	assert.Equal(t, adminIncome.ID, result.Invoice.IncomeAccountId)
	assertMoney(t, "20", cachedBalance(t, receivable.ID))
	assertMoney(t, "20", cachedBalance(t, adminIncome.ID))
	assertMoney(t, "20", studentBalance(t, student.ID))

	_, err = models.EnrollStudent(ctx, student.ID, &models.NewEnrollment{RoomId: room.ID, StartDate: day(2025, 3, 6)})
	assert.ErrorIs(t, err, utils.ErrConflict)

	other := newStudent(t, ctx, "Nyasha", models.GenderFemale)
	_, err = models.EnrollStudent(ctx, other.ID, &models.NewEnrollment{RoomId: room.ID, StartDate: day(2025, 3, 6)})
	assert.ErrorIs(t, err, utils.ErrValidation, "room is full")

	boys := newRoom(t, ctx, "B01", 4, "80", models.GenderMale)
	_, err = models.EnrollStudent(ctx, other.ID, &models.NewEnrollment{RoomId: boys.ID, StartDate: day(2025, 3, 6)})
	assert.ErrorIs(t, err, utils.ErrValidation, "gender policy")

	rooms, err := models.ListRooms(ctx, true)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "B01", rooms[0].RoomNumber)
	assert.Equal(t, 4, rooms[0].AvailableBeds)
}

func TestEndAndTransferEnrollment(t *testing.T) {
	setupTestDB(t)
	ctx, _ := newHouse(t, "MOVE")
	small := newRoom(t, ctx, "S1", 1, "90", models.GenderMixed)
	large := newRoom(t, ctx, "L1", 3, "70", models.GenderMixed)
	student := newStudent(t, ctx, "Farai", models.GenderMale)

	result, err := models.EnrollStudent(ctx, student.ID, &models.NewEnrollment{RoomId: small.ID, StartDate: day(2025, 1, 1)})
	require.NoError(t, err)
	assert.Nil(t, result.Invoice)

	_, err = models.TransferRoom(ctx, result.Enrollment.ID, &models.TransferEnrollmentInput{RoomId: small.ID, Date: day(2025, 2, 1)})
	assert.ErrorIs(t, err, utils.ErrValidation)

	moved, err := models.TransferRoom(ctx, result.Enrollment.ID, &models.TransferEnrollmentInput{RoomId: large.ID, Date: day(2025, 2, 1)})
	require.NoError(t, err)
	assert.Equal(t, large.ID, moved.Enrollment.RoomId)
	assertMoney(t, "70", moved.Enrollment.MonthlyRent)

	_, err = models.EndEnrollment(ctx, moved.Enrollment.ID, day(2025, 1, 15))
	assert.ErrorIs(t, err, utils.ErrValidation, "end before start")

	ended, err := models.EndEnrollment(ctx, moved.Enrollment.ID, day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnded, ended.Status)

	_, err = models.EndEnrollment(ctx, moved.Enrollment.ID, day(2025, 4, 1))
	assert.ErrorIs(t, err, utils.ErrConflict)

	history, err := models.ListStudentEnrollments(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestGenerateMonthlyInvoicesSkipsExisting(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "RENT")
	room := newRoom(t, ctx, "R1", 2, "150", models.GenderMixed)
	student := newStudent(t, ctx, "Chipo", models.GenderFemale)
	_, err := models.EnrollStudent(ctx, student.ID, &models.NewEnrollment{RoomId: room.ID, StartDate: day(2025, 3, 5)})
	require.NoError(t, err)

	preview, err := models.GenerateMonthlyInvoices(ctx, "2025-03", true)
	require.NoError(t, err)
	assert.True(t, preview.DryRun)
	assert.Equal(t, 1, preview.Created)
	assertMoney(t, "150", preview.Total)
	require.Len(t, preview.Invoices, 1)
	assert.True(t, preview.Invoices[0].InvoiceDate.Equal(day(2025, 3, 5)))
	invoices, err := models.ListStudentInvoices(ctx, student.ID, true)
	require.NoError(t, err)
	assert.Empty(t, invoices)

	created, err := models.GenerateMonthlyInvoices(ctx, "2025-03", false)
	require.NoError(t, err)
	assert.Equal(t, 1, created.Created)
	require.Len(t, created.Invoices, 1)
	rent := created.Invoices[0]
	assert.Equal(t, models.InvoiceTypeRent, rent.InvoiceType)
	assert.Equal(t, "2025-03", rent.Period)
	assert.NotEmpty(t, rent.InvoiceNumber)
	assert.True(t, rent.DueDate.Equal(day(2025, 3, 12)))

	rerun, err := models.GenerateMonthlyInvoices(ctx, "2025-03", false)
	require.NoError(t, err)
	assert.Equal(t, 0, rerun.Created)
	assert.Equal(t, 1, rerun.Skipped)

	before, err := models.GenerateMonthlyInvoices(ctx, "2025-02", false)
	require.NoError(t, err)
	assert.Equal(t, 0, before.Created)
	assert.Equal(t, 0, before.Skipped)

	april, err := models.GenerateMonthlyInvoices(ctx, "2025-04", false)
	require.NoError(t, err)
	require.Equal(t, 1, april.Created)
	assert.True(t, april.Invoices[0].InvoiceDate.Equal(day(2025, 4, 1)))

	rentIncome := systemAccount(t, ctx, house.ID, models.SystemAccountRentalIncome)
	assertMoney(t, "300", cachedBalance(t, rentIncome.ID))
	assertMoney(t, "300", studentBalance(t, student.ID))

	_, err = models.GenerateMonthlyInvoices(ctx, "2025-13", false)
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestGenerateMonthlyInvoicesAfterTransferBillsOnce(t *testing.T) {
	setupTestDB(t)
	ctx, _ := newHouse(t, "XFER")
	first := newRoom(t, ctx, "T1", 2, "100", models.GenderMixed)
	second := newRoom(t, ctx, "T2", 2, "120", models.GenderMixed)
	student := newStudent(t, ctx, "Kuda", models.GenderMale)
	enrolled, err := models.EnrollStudent(ctx, student.ID, &models.NewEnrollment{RoomId: first.ID, StartDate: day(2025, 1, 1)})
	require.NoError(t, err)

	march, err := models.GenerateMonthlyInvoices(ctx, "2025-03", false)
	require.NoError(t, err)
	assert.Equal(t, 1, march.Created)

	_, err = models.TransferRoom(ctx, enrolled.Enrollment.ID, &models.TransferEnrollmentInput{RoomId: second.ID, Date: day(2025, 3, 15)})
	require.NoError(t, err)

	rerun, err := models.GenerateMonthlyInvoices(ctx, "2025-03", false)
	require.NoError(t, err)
	assert.Equal(t, 0, rerun.Created)
	assert.Equal(t, 1, rerun.Skipped)
	assertMoney(t, "100", studentBalance(t, student.ID))

	april, err := models.GenerateMonthlyInvoices(ctx, "2025-04", false)
	require.NoError(t, err)
	require.Equal(t, 1, april.Created)
	assertMoney(t, "120", april.Invoices[0].Amount)
	assertMoney(t, "220", studentBalance(t, student.ID))
}

func TestRecordPaymentAllocatesOldestInvoiceFirst(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "PAY")
	student := newStudent(t, ctx, "Tatenda", models.GenderMale)
	first := newCharge(t, ctx, student.ID, "60", "2025-01-01")
	second := newCharge(t, ctx, student.ID, "40", "2025-01-15")

	payment, err := models.RecordPayment(ctx, &models.NewStudentPayment{
		StudentId:   student.ID,
		Amount:      money("80"),
		PaymentDate: day(2025, 1, 10),
		Method:      models.StudentPaymentCash,
		Reference:   "R-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "RCT-000001", payment.ReceiptNumber)
	assertMoney(t, "80", payment.AmountAllocated)
	assert.Len(t, payment.Allocations, 2)

	assert.Equal(t, models.InvoiceStatusPaid, loadInvoice(t, ctx, first.ID).Status)
	partial := loadInvoice(t, ctx, second.ID)
	assert.Equal(t, models.InvoiceStatusPartial, partial.Status)
	assertMoney(t, "20", partial.AmountPaid)

	cash := systemAccount(t, ctx, house.ID, models.SystemAccountCash)
	receivable := systemAccount(t, ctx, house.ID, models.SystemAccountReceivable)
	assertMoney(t, "80", cachedBalance(t, cash.ID))
	assertMoney(t, "20", cachedBalance(t, receivable.ID))
	assertMoney(t, "20", studentBalance(t, student.ID))

	statement, err := models.GetStudentStatement(ctx, student.ID)
	require.NoError(t, err)
	assertMoney(t, "100", statement.TotalInvoiced)
	assertMoney(t, "80", statement.TotalPaid)
	assertMoney(t, "20", statement.Balance)
	require.Len(t, statement.Lines, 3)
	assert.Equal(t, "invoice", statement.Lines[0].Kind)
	assert.Equal(t, "payment", statement.Lines[1].Kind)
	assert.Equal(t, "invoice", statement.Lines[2].Kind)

	// overpayment stays as credit
	extra, err := models.RecordPayment(ctx, &models.NewStudentPayment{
		StudentId:   student.ID,
		Amount:      money("50"),
		PaymentDate: day(2025, 1, 20),
		Method:      models.StudentPaymentMobileMoney,
	})
	require.NoError(t, err)
	assertMoney(t, "20", extra.AmountAllocated)
	assert.Equal(t, models.InvoiceStatusPaid, loadInvoice(t, ctx, second.ID).Status)
	assertMoney(t, "-30", studentBalance(t, student.ID))
	bank := systemAccount(t, ctx, house.ID, models.SystemAccountBank)
	assertMoney(t, "50", cachedBalance(t, bank.ID))

	// the credit settles the next charge straight away
	third := newCharge(t, ctx, student.ID, "25", "2025-01-25")
	assert.Equal(t, models.InvoiceStatusPaid, third.Status)
	assertMoney(t, "25", third.AmountPaid)
	assertMoney(t, "-5", studentBalance(t, student.ID))

	report, err := models.RunIntegrityChecks(ctx, house.ID)
	require.NoError(t, err)
	assert.True(t, report.IsClean, "%+v", report.Findings)

	_, err = models.RecordPayment(ctx, &models.NewStudentPayment{
		StudentId:   student.ID,
		Amount:      money("10"),
		PaymentDate: day(2025, 1, 20),
		Method:      "cheque",
	})
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = models.RecordPayment(ctx, &models.NewStudentPayment{
		StudentId:   student.ID,
		Amount:      decimal.Zero,
		PaymentDate: day(2025, 1, 20),
		Method:      models.StudentPaymentCash,
	})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestVoidPaymentReopensInvoices(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "VPAY")
	student := newStudent(t, ctx, "Kuda", models.GenderMale)
	invoice := newCharge(t, ctx, student.ID, "100", "2025-02-01")

	payment, err := models.RecordPayment(ctx, &models.NewStudentPayment{
		StudentId:   student.ID,
		Amount:      money("100"),
		PaymentDate: day(2025, 2, 3),
		Method:      models.StudentPaymentBank,
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, loadInvoice(t, ctx, invoice.ID).Status)

	_, err = models.VoidInvoice(ctx, invoice.ID, "wrong student")
	assert.ErrorIs(t, err, utils.ErrValidation, "paid invoices cannot be voided")

	_, err = models.VoidTransaction(ctx, payment.TransactionId, "shortcut")
	assert.ErrorIs(t, err, utils.ErrValidation, "document transactions are voided through the document")

	voided, err := models.VoidPayment(ctx, payment.ID, "bounced")
	require.NoError(t, err)
	assert.True(t, voided.DeletedAt.Valid)
	assert.Equal(t, "bounced", voided.VoidReason)

	reopened := loadInvoice(t, ctx, invoice.ID)
	assert.Equal(t, models.InvoiceStatusUnpaid, reopened.Status)
	assert.True(t, reopened.AmountPaid.IsZero())
	assertMoney(t, "100", studentBalance(t, student.ID))

	bank := systemAccount(t, ctx, house.ID, models.SystemAccountBank)
	receivable := systemAccount(t, ctx, house.ID, models.SystemAccountReceivable)
	assert.True(t, cachedBalance(t, bank.ID).IsZero())
	assertMoney(t, "100", cachedBalance(t, receivable.ID))

	_, err = models.VoidPayment(ctx, payment.ID, "again")
	assert.ErrorIs(t, err, utils.ErrConflict)

	live, err := models.ListStudentPayments(ctx, student.ID, false)
	require.NoError(t, err)
	assert.Empty(t, live)
	all, err := models.ListStudentPayments(ctx, student.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	report, err := models.RunIntegrityChecks(ctx, house.ID)
	require.NoError(t, err)
	assert.True(t, report.IsClean, "%+v", report.Findings)
}

func TestVoidInvoice(t *testing.T) {
	setupTestDB(t)
	ctx, house := newHouse(t, "VINV")
	student := newStudent(t, ctx, "Simba", models.GenderMale)
	invoice := newCharge(t, ctx, student.ID, "45", "2025-02-01")

	voided, err := models.VoidInvoice(ctx, invoice.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusVoid, voided.Status)
	assert.True(t, studentBalance(t, student.ID).IsZero())
	other := systemAccount(t, ctx, house.ID, models.SystemAccountOtherIncome)
	assert.True(t, cachedBalance(t, other.ID).IsZero())

	_, err = models.VoidInvoice(ctx, invoice.ID, "again")
	assert.ErrorIs(t, err, utils.ErrConflict)

	open, err := models.ListStudentInvoices(ctx, student.ID, false)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestIntegrityChecksFindDrift(t *testing.T) {
	db := setupTestDB(t)
	ctx, house := newHouse(t, "AUDIT")
	student := newStudent(t, ctx, "Anesu", models.GenderFemale)
	newCharge(t, ctx, student.ID, "70", "2025-02-01")

	clean, err := models.RunIntegrityChecks(ctx, house.ID)
	require.NoError(t, err)
	assert.True(t, clean.IsClean)
	assert.NotEmpty(t, clean.CorrelationId)

	require.NoError(t, db.WithContext(adminContext()).Model(&models.StudentAccountBalance{}).
		Where("student_id = ?", student.ID).Update("balance", 999).Error)

	receivable := systemAccount(t, ctx, house.ID, models.SystemAccountReceivable)
	other := systemAccount(t, ctx, house.ID, models.SystemAccountOtherIncome)
	_, err = models.PostManualJournal(ctx, &models.NewManualJournal{
		JournalDate: day(2025, 2, 2),
		Description: "Receivable without a student",
		Lines: []models.PostingLine{
			{AccountId: receivable.ID, Debit: money("10")},
			{AccountId: other.ID, Credit: money("10")},
		},
	})
	require.NoError(t, err)

	report, err := models.RunIntegrityChecks(ctx, house.ID)
	require.NoError(t, err)
	assert.False(t, report.IsClean)
	assert.Equal(t, 1, report.Counts[models.CheckStudentBalanceDrift])
	assert.Equal(t, 1, report.Counts[models.CheckReceivableControl])
	assert.Equal(t, 0, report.Counts[models.CheckAccountBalanceDrift])
	assert.Equal(t, 0, report.Counts[models.CheckUnbalancedTransaction])

	stored, err := models.ListReconciliationReports(ctx, house.ID, report.CorrelationId, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	fixed, err := models.RecalculateStudentBalances(ctx, false)
	require.NoError(t, err)
	require.Len(t, fixed.Drifts, 1)
	assertMoney(t, "929", fixed.Drifts[0].Difference)
	assertMoney(t, "70", studentBalance(t, student.ID))

	again, err := models.CheckIntegrityTx(db.WithContext(ctx), house.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Counts[models.CheckStudentBalanceDrift])
	assert.Equal(t, 1, again.Counts[models.CheckReceivableControl])
}

func TestIntegrityChecksReportMissingReceivableAccount(t *testing.T) {
	db := setupTestDB(t)
	ctx, house := newHouse(t, "NOAR")
	receivable := systemAccount(t, ctx, house.ID, models.SystemAccountReceivable)
	require.NoError(t, db.WithContext(adminContext()).Model(&models.Account{}).
		Where("id = ?", receivable.ID).Update("system_code", "").Error)

	report, err := models.CheckIntegrityTx(db.WithContext(ctx), house.ID)
	require.NoError(t, err)
	assert.False(t, report.IsClean)
	assert.Equal(t, 1, report.Counts[models.CheckReceivableControl])
	require.Len(t, report.Findings, 1)
	assert.Contains(t, report.Findings[0].Details, "missing")
}
