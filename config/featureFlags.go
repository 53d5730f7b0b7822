package config

import (
	"os"
	"strings"
	"time"
)

// AllowNegativePettyCash lets petty cash spending go below zero (float advanced by the custodian).
//
// Set via env:
// - ALLOW_NEGATIVE_PETTY_CASH=true
func AllowNegativePettyCash() bool {
	return envBool("ALLOW_NEGATIVE_PETTY_CASH")
}

// PeriodLockDate returns the last closed accounting date, if any.
// Postings dated on or before it are rejected.
//
// Set via env:
// - PERIOD_LOCK_DATE=2025-12-31
func PeriodLockDate() (time.Time, bool) {
	v := strings.TrimSpace(os.Getenv("PERIOD_LOCK_DATE"))
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// DefaultPhoneRegion is the region used when a phone number has no country prefix.
func DefaultPhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_PHONE_REGION")))
	if v == "" {
		return "ZW"
	}
	return v
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
