package utils

import (
	"context"

	"github.com/mmdatafocus/boarding_backend/appctx"
)

type contextKey = appctx.ContextKey

var (
	ContextKeyToken           = appctx.ContextKeyToken
	ContextKeyBoardingHouseId = appctx.ContextKeyBoardingHouseId
	ContextKeyUsername        = appctx.ContextKeyUsername
	ContextKeyUserId          = appctx.ContextKeyUserId
	ContextKeyUserName        = appctx.ContextKeyUserName
	ContextKeyRole            = appctx.ContextKeyRole
	ContextKeyCorrelationId   = appctx.ContextKeyCorrelationId

	ContextKeyIsAdmin         = appctx.ContextKeyIsAdmin
	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

// GetBoardingHouseIdFromContext returns the house the request acts in.
// 0 means "all houses" and is only ever set for boss users.
func GetBoardingHouseIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyBoardingHouseId)
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUsername)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func GetSkipTenantScopeFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeySkipTenantScope)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetBoardingHouseIdInContext(ctx context.Context, boardingHouseId int) context.Context {
	return appctx.Set(ctx, ContextKeyBoardingHouseId, boardingHouseId)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyUsername, username)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}

// NewMaintenanceContext is the context used by cmd tools and background jobs:
// tenant scoping is off and every query must filter boarding_house_id itself.
func NewMaintenanceContext(parent context.Context, username string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx := SetSkipTenantScopeInContext(parent, true)
	ctx = SetUsernameInContext(ctx, username)
	ctx = SetUserNameInContext(ctx, username)
	return ctx
}

// ActorFromContext returns the user id and display name to stamp on posted records.
func ActorFromContext(ctx context.Context) (int, string) {
	userId, _ := GetUserIdFromContext(ctx)
	name, ok := GetUserNameFromContext(ctx)
	if !ok || name == "" {
		name, _ = GetUsernameFromContext(ctx)
	}
	return userId, name
}
