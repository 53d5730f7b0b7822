package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Kept in its own package so config and utils can both read it.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyToken           = ContextKey("Token")
	ContextKeyBoardingHouseId = ContextKey("BoardingHouseId")
	ContextKeyUsername        = ContextKey("Username")
	ContextKeyUserId          = ContextKey("UserId")
	ContextKeyUserName        = ContextKey("UserName")
	ContextKeyRole            = ContextKey("Role")
	ContextKeyCorrelationId   = ContextKey("CorrelationId")

	// ContextKeyIsAdmin is true for boss users. Used for tenant-scope bypass.
	ContextKeyIsAdmin = ContextKey("IsAdmin")

	// ContextKeySkipTenantScope disables tenant scoping for the request.
	// Maintenance tools only.
	ContextKeySkipTenantScope = ContextKey("SkipTenantScope")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
