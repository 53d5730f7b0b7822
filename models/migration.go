package models

import (
	"gorm.io/gorm"
)

// AllModels lists every table the service owns, in creation order.
func AllModels() []interface{} {
	return []interface{}{
		&BoardingHouse{}, &User{},
		&Account{}, &Transaction{}, &JournalEntry{}, &CurrentAccountBalance{}, &LedgerEventRecord{},
		&Room{}, &Student{}, &StudentEnrollment{},
		&StudentInvoice{}, &StudentPayment{}, &StudentPaymentAllocation{}, &StudentAccountBalance{},
		&Supplier{}, &Expense{}, &SupplierPayment{},
		&PettyCashAccount{}, &PettyCashTransaction{},
		&ExpenditureRequest{},
		&IncomeStatementSnapshot{}, &ReconciliationReport{}, &IdempotencyKey{},
	}
}

func MigrateTable(db *gorm.DB) error {
	db.Config.DisableForeignKeyConstraintWhenMigrating = true
	return db.AutoMigrate(AllModels()...)
}
