package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/boarding_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin scopes queries/updates/deletes to the request's boarding_house_id
// when the model has a boarding_house_id column.
//
// NOTE:
// - Raw SQL is not scoped. Report queries must filter boarding_house_id themselves.
// - Boss users and maintenance tools bypass via context flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassTenantScope(ctx) {
		return
	}
	boardingHouseId := boardingHouseIdFromContext(ctx)
	if boardingHouseId <= 0 {
		return
	}

	if db.Statement.Schema == nil {
		return
	}
	hasColumn := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "boarding_house_id") {
			hasColumn = true
			break
		}
	}
	if !hasColumn {
		return
	}

	// Don't duplicate an explicit tenant filter.
	if whereHasBoardingHouseID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "boarding_house_id"},
				Value:  boardingHouseId,
			},
		},
	})
}

func boardingHouseIdFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(appctx.ContextKeyBoardingHouseId).(int); ok {
		return v
	}
	return 0
}

func shouldBypassTenantScope(ctx context.Context) bool {
	if v, ok := ctx.Value(appctx.ContextKeySkipTenantScope).(bool); ok && v {
		return true
	}
	if v, ok := ctx.Value(appctx.ContextKeyIsAdmin).(bool); ok && v {
		return true
	}
	return false
}

func whereHasBoardingHouseID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasBoardingHouseID(e) {
			return true
		}
	}
	return false
}

func exprHasBoardingHouseID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsBoardingHouseID(v.Column)
	case clause.Neq:
		return colIsBoardingHouseID(v.Column)
	case clause.IN:
		return colIsBoardingHouseID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasBoardingHouseID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasBoardingHouseID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "boarding_house_id")
	default:
		return false
	}
}

func colIsBoardingHouseID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "boarding_house_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "boarding_house_id")
	default:
		return false
	}
}
