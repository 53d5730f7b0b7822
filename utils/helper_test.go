package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := utils.ParseDate(" 2025-03-09 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), d)

	d, err = utils.ParseDate("2025-03-09T23:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), d)

	_, err = utils.ParseDate("")
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = utils.ParseDate("09/03/2025")
	assert.ErrorIs(t, err, utils.ErrValidation)

	def := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d, err = utils.ParseOptionalDate("  ", def)
	require.NoError(t, err)
	assert.Equal(t, def, d)
}

func TestParsePeriod(t *testing.T) {
	start, end, err := utils.ParsePeriod("2024-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, "2024-02", utils.PeriodOf(end))

	for _, bad := range []string{"2024-13", "2024", "Feb 2024"} {
		_, _, err := utils.ParsePeriod(bad)
		assert.ErrorIs(t, err, utils.ErrValidation, bad)
	}
}

func TestDayHelpers(t *testing.T) {
	harare := time.FixedZone("CAT", 2*60*60)
	late := time.Date(2025, 5, 31, 23, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), utils.StartOfDay(late))
	assert.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), utils.StartOfDay(time.Date(2025, 6, 1, 1, 0, 0, 0, harare)))
	assert.Equal(t, time.Date(2025, 5, 31, 23, 59, 59, 999999999, time.UTC), utils.EndOfDay(late))

	assert.Equal(t, 7, utils.DaysBetween(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, -3, utils.DaysBetween(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)))

	start, end := utils.GetMonthRange(2025, time.April)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 30, end.Day())
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "10.13", utils.RoundMoney(decimal.RequireFromString("10.125")).String())
	assert.Equal(t, "-2.5", utils.RoundMoney(decimal.RequireFromString("-2.499")).String())
}

func TestUniqueSlice(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, utils.UniqueSlice([]int{3, 1, 3, 2, 1}))
	assert.Nil(t, utils.UniqueSlice([]string{}))
}

func TestNormalizePhoneNumber(t *testing.T) {
	phone, err := utils.NormalizePhoneNumber("0771234567", "ZW")
	require.NoError(t, err)
	assert.Equal(t, "+263771234567", phone)

	phone, err = utils.NormalizePhoneNumber("+27 82 123 4567", "ZW")
	require.NoError(t, err)
	assert.Equal(t, "+27821234567", phone)

	phone, err = utils.NormalizePhoneNumber("   ", "ZW")
	require.NoError(t, err)
	assert.Empty(t, phone)

	_, err = utils.NormalizePhoneNumber("12", "ZW")
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, utils.IsValidEmail("warden@hostel.co.zw"))
	assert.False(t, utils.IsValidEmail("warden@"))
}

func TestProcessValidationErrors(t *testing.T) {
	type login struct {
		Username string `validate:"required"`
		Password string `validate:"required,min=8"`
	}
	err := validator.New().Struct(login{Password: "short"})
	require.Error(t, err)
	assert.Equal(t, map[string]string{"Username": "required", "Password": "min"}, utils.ProcessValidationErrors(err))

	assert.Nil(t, utils.ProcessValidationErrors(errors.New("plain")))
}

func TestErrorKinds(t *testing.T) {
	err := utils.NewValidationError("amount %s must be positive", "-1")
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.Contains(t, err.Error(), "amount -1 must be positive")
	assert.ErrorIs(t, utils.NewConflictError("already void"), utils.ErrConflict)
}

func TestContextHelpers(t *testing.T) {
	ctx := utils.SetBoardingHouseIdInContext(context.Background(), 4)
	ctx = utils.SetUserIdInContext(ctx, 9)
	ctx = utils.SetUsernameInContext(ctx, "warden")

	houseId, ok := utils.GetBoardingHouseIdFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, 4, houseId)

	userId, name := utils.ActorFromContext(ctx)
	assert.Equal(t, 9, userId)
	assert.Equal(t, "warden", name, "falls back to the login name")

	_, ok = utils.GetBoardingHouseIdFromContext(context.Background())
	assert.False(t, ok)

	mctx := utils.NewMaintenanceContext(context.Background(), "rebuild-account-balances")
	skip, ok := utils.GetSkipTenantScopeFromContext(mctx)
	require.True(t, ok)
	assert.True(t, skip)
	_, name = utils.ActorFromContext(mctx)
	assert.Equal(t, "rebuild-account-balances", name)
}
