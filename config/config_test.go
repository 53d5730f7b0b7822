package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "boarding")
	assert.Equal(t, "app:secret@tcp(10.0.0.5:3306)/boarding?multiStatements=true&parseTime=true&loc=UTC", DSN())

	t.Setenv("DB_HOST", "/cloudsql/proj:region:db")
	assert.Equal(t, "app:secret@unix(/cloudsql/proj:region:db)/boarding?multiStatements=true&parseTime=true&loc=UTC", DSN())
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("ALLOW_NEGATIVE_PETTY_CASH", "yes")
	assert.True(t, AllowNegativePettyCash())
	t.Setenv("ALLOW_NEGATIVE_PETTY_CASH", "")
	assert.False(t, AllowNegativePettyCash())

	t.Setenv("PERIOD_LOCK_DATE", "2025-12-31")
	lock, ok := PeriodLockDate()
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), lock)
	t.Setenv("PERIOD_LOCK_DATE", "31/12/2025")
	_, ok = PeriodLockDate()
	assert.False(t, ok)

	t.Setenv("DEFAULT_PHONE_REGION", " za ")
	assert.Equal(t, "ZA", DefaultPhoneRegion())
	t.Setenv("DEFAULT_PHONE_REGION", "")
	assert.Equal(t, "ZW", DefaultPhoneRegion())

	t.Setenv("REPORT_SLOW_MS", "250")
	assert.Equal(t, 250, IntFromEnv("REPORT_SLOW_MS", 500))
	t.Setenv("REPORT_SLOW_MS", "fast")
	assert.Equal(t, 500, IntFromEnv("REPORT_SLOW_MS", 500))
}

func TestRedisHelpersWithoutClient(t *testing.T) {
	ok, err := GetRedisObject("missing", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, SetRedisObject("k", map[string]int{"a": 1}, time.Minute))
	n, err := IncrRedisValue("ReportVersion:1")
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, GetRedisLock())
}
