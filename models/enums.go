package models

type Role string

const (
	RoleBoss       Role = "boss"
	RoleAdmin      Role = "admin"
	RoleBranch     Role = "branch"
	RoleAccountant Role = "accountant"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleBoss, RoleAdmin, RoleBranch, RoleAccountant:
		return true
	}
	return false
}

type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeEquity    AccountType = "Equity"
	AccountTypeRevenue   AccountType = "Revenue"
	AccountTypeExpense   AccountType = "Expense"
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance of the account type: assets and expenses are debit-normal.
func (t AccountType) NormalBalance() NormalBalance {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NormalBalanceDebit
	}
	return NormalBalanceCredit
}

type AccountSubType string

const (
	AccountSubTypeCash       AccountSubType = "Cash"
	AccountSubTypeBank       AccountSubType = "Bank"
	AccountSubTypePettyCash  AccountSubType = "PettyCash"
	AccountSubTypeReceivable AccountSubType = "Receivable"
	AccountSubTypePayable    AccountSubType = "Payable"
	AccountSubTypeDeposit    AccountSubType = "Deposit"
	AccountSubTypeIncome     AccountSubType = "Income"
	AccountSubTypeExpense    AccountSubType = "Expense"
	AccountSubTypeEquity     AccountSubType = "Equity"
	AccountSubTypeOther      AccountSubType = "Other"
)

// IsCashLike accounts drive the cash flow report.
func (s AccountSubType) IsCashLike() bool {
	return s == AccountSubTypeCash || s == AccountSubTypeBank || s == AccountSubTypePettyCash
}

type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

type TransactionType string

const (
	TransactionTypeManualJournal   TransactionType = "manual_journal"
	TransactionTypeStudentInvoice  TransactionType = "student_invoice"
	TransactionTypeStudentPayment  TransactionType = "student_payment"
	TransactionTypeExpense         TransactionType = "expense"
	TransactionTypeSupplierPayment TransactionType = "supplier_payment"
	TransactionTypePettyReplenish  TransactionType = "petty_cash_replenish"
	TransactionTypePettyReturn     TransactionType = "petty_cash_return"
	TransactionTypeOpeningBalance  TransactionType = "opening_balance"
)

type GenderPolicy string

const (
	GenderMale   GenderPolicy = "M"
	GenderFemale GenderPolicy = "F"
	GenderMixed  GenderPolicy = "mixed"
)

type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusMaintenance RoomStatus = "maintenance"
)

type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusInactive  StudentStatus = "inactive"
	StudentStatusGraduated StudentStatus = "graduated"
)

type EnrollmentStatus string

const (
	EnrollmentStatusActive EnrollmentStatus = "active"
	EnrollmentStatusEnded  EnrollmentStatus = "ended"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

type StudentPaymentMethod string

const (
	StudentPaymentCash        StudentPaymentMethod = "cash"
	StudentPaymentBank        StudentPaymentMethod = "bank"
	StudentPaymentMobileMoney StudentPaymentMethod = "mobile_money"
)

type ExpensePaymentMethod string

const (
	ExpensePaymentCash      ExpensePaymentMethod = "cash"
	ExpensePaymentBank      ExpensePaymentMethod = "bank"
	ExpensePaymentPettyCash ExpensePaymentMethod = "petty_cash"
	ExpensePaymentCredit    ExpensePaymentMethod = "credit"
)

type ExpenseStatus string

const (
	ExpenseStatusPaid    ExpenseStatus = "paid"
	ExpenseStatusUnpaid  ExpenseStatus = "unpaid"
	ExpenseStatusPartial ExpenseStatus = "partial"
	ExpenseStatusVoid    ExpenseStatus = "void"
)

type PettyCashTransactionType string

const (
	PettyCashReplenish PettyCashTransactionType = "replenish"
	PettyCashExpense   PettyCashTransactionType = "expense"
	PettyCashReturn    PettyCashTransactionType = "return"
)

type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityNormal RequestPriority = "normal"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

func (p RequestPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusPosted    RequestStatus = "posted"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Reference types link a ledger transaction back to the document that posted it.
const (
	ReferenceTypeJournal         = "journal"
	ReferenceTypeStudentInvoice  = "student_invoice"
	ReferenceTypeStudentPayment  = "student_payment"
	ReferenceTypeExpense         = "expense"
	ReferenceTypeSupplierPayment = "supplier_payment"
	ReferenceTypePettyCash       = "petty_cash_transaction"
)
