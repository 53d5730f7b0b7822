package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/middlewares"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/models/reports"
)

var (
	requireBoss    = middlewares.RequireRoles(models.RoleBoss)
	requireManager = middlewares.RequireRoles(models.RoleBoss, models.RoleAdmin)
	requireFinance = middlewares.RequireRoles(models.RoleBoss, models.RoleAdmin, models.RoleAccountant)
	requireLedger  = middlewares.RequireRoles(models.RoleBoss, models.RoleAccountant)
	requireHouse   = middlewares.RequireBoardingHouse()
)

// RegisterRoutes mounts the REST API on r.
func RegisterRoutes(r gin.IRouter) {
	r.POST("/auth/login", loginHandler())
	r.POST("/pubsub", ledgerEventPushHandler())

	api := r.Group("/")
	api.Use(middlewares.AuthMiddleware())

	api.POST("/auth/logout", logoutHandler())
	api.GET("/auth/me", meHandler())
	api.POST("/auth/change-password", changePasswordHandler())

	api.GET("/boarding-houses", listBoardingHousesHandler())
	api.GET("/boarding-houses/:id", getBoardingHouseHandler())
	api.POST("/boarding-houses", requireBoss, createBoardingHouseHandler())
	api.PUT("/boarding-houses/:id", requireBoss, updateBoardingHouseHandler())
	api.POST("/boarding-houses/:id/deactivate", requireBoss, deactivateBoardingHouseHandler())

	api.GET("/users", requireManager, listUsersHandler())
	api.POST("/users", requireManager, createUserHandler())
	api.PUT("/users/:id", requireManager, updateUserHandler())

	api.GET("/accounts", requireHouse, listAccountsHandler())
	api.POST("/accounts", requireHouse, requireFinance, createAccountHandler())
	api.PUT("/accounts/:id", requireHouse, requireFinance, updateAccountHandler())
	api.POST("/accounts/:id/activate", requireHouse, requireFinance, setAccountActiveHandler(true))
	api.POST("/accounts/:id/deactivate", requireHouse, requireFinance, setAccountActiveHandler(false))
	api.GET("/accounts/:id/ledger", requireHouse, accountLedgerHandler())

	api.GET("/transactions", requireHouse, listTransactionsHandler())
	api.GET("/transactions/:id", requireHouse, getTransactionHandler())
	api.POST("/journals", requireHouse, requireLedger, postJournalHandler())
	api.POST("/transactions/:id/void", requireHouse, requireLedger, voidTransactionHandler())

	api.GET("/rooms", requireHouse, listRoomsHandler())
	api.POST("/rooms", requireHouse, createRoomHandler())
	api.GET("/rooms/:id", requireHouse, getRoomHandler())
	api.PUT("/rooms/:id", requireHouse, updateRoomHandler())
	api.DELETE("/rooms/:id", requireHouse, requireManager, deleteRoomHandler())

	api.GET("/students", requireHouse, listStudentsHandler())
	api.POST("/students", requireHouse, createStudentHandler())
	api.GET("/students/:id", requireHouse, getStudentHandler())
	api.PUT("/students/:id", requireHouse, updateStudentHandler())
	api.POST("/students/:id/photo", requireHouse, uploadStudentPhotoHandler())
	api.POST("/students/:id/enroll", requireHouse, enrollStudentHandler())
	api.GET("/students/:id/enrollments", requireHouse, listStudentEnrollmentsHandler())
	api.GET("/students/:id/statement", requireHouse, studentStatementHandler())
	api.GET("/students/:id/invoices", requireHouse, studentInvoicesHandler())
	api.GET("/students/:id/payments", requireHouse, studentPaymentsHandler())
	api.POST("/enrollments/:id/end", requireHouse, endEnrollmentHandler())
	api.POST("/enrollments/:id/transfer", requireHouse, transferEnrollmentHandler())

	api.POST("/invoices", requireHouse, createInvoiceHandler())
	api.POST("/invoices/generate-monthly", requireHouse, requireFinance, generateMonthlyInvoicesHandler())
	api.POST("/invoices/:id/void", requireHouse, requireFinance, voidInvoiceHandler())
	api.POST("/payments", requireHouse, recordPaymentHandler())
	api.POST("/payments/:id/void", requireHouse, requireFinance, voidPaymentHandler())

	api.GET("/suppliers", requireHouse, listSuppliersHandler())
	api.POST("/suppliers", requireHouse, createSupplierHandler())
	api.GET("/suppliers/:id", requireHouse, getSupplierHandler())
	api.PUT("/suppliers/:id", requireHouse, updateSupplierHandler())
	api.DELETE("/suppliers/:id", requireHouse, requireManager, deleteSupplierHandler())

	api.GET("/expenses", requireHouse, listExpensesHandler())
	api.POST("/expenses", requireHouse, recordExpenseHandler())
	api.GET("/expenses/:id", requireHouse, getExpenseHandler())
	api.POST("/expenses/:id/void", requireHouse, requireFinance, voidExpenseHandler())
	api.POST("/expenses/:id/receipt", requireHouse, uploadExpenseReceiptHandler())
	api.POST("/supplier-payments", requireHouse, requireFinance, paySupplierHandler())

	api.GET("/petty-cash", requireHouse, listPettyCashAccountsHandler())
	api.POST("/petty-cash", requireHouse, requireFinance, createPettyCashAccountHandler())
	api.POST("/petty-cash/:id/activate", requireHouse, requireFinance, setPettyCashAccountActiveHandler(true))
	api.POST("/petty-cash/:id/deactivate", requireHouse, requireFinance, setPettyCashAccountActiveHandler(false))
	api.GET("/petty-cash/:id/transactions", requireHouse, listPettyCashTransactionsHandler())
	api.POST("/petty-cash/:id/replenish", requireHouse, requireFinance, pettyCashMovementHandler(true))
	api.POST("/petty-cash/:id/return", requireHouse, requireFinance, pettyCashMovementHandler(false))

	// boss users without a selected house see requests of every house
	api.GET("/expenditure-requests", listExpenditureRequestsHandler())
	api.POST("/expenditure-requests", requireHouse, createExpenditureRequestHandler())
	api.GET("/expenditure-requests/:id", getExpenditureRequestHandler())
	api.POST("/expenditure-requests/:id/approve", requireManager, reviewExpenditureRequestHandler(true))
	api.POST("/expenditure-requests/:id/reject", requireManager, reviewExpenditureRequestHandler(false))
	api.POST("/expenditure-requests/:id/cancel", cancelExpenditureRequestHandler())
	api.POST("/expenditure-requests/:id/post", requireHouse, requireManager, postExpenditureRequestHandler())

	// reports accept house 0 (consolidated) for boss users
	api.GET("/trial-balance", requireFinance, asOfReport("trialBalanceHandler", reports.GetTrialBalanceReport))
	api.GET("/accounts-payable", requireFinance, asOfReport("accountsPayableHandler", reports.GetAccountsPayableReport))
	api.GET("/reports/balance-sheet", requireFinance, asOfReport("balanceSheetHandler", reports.GetBalanceSheetReport))
	api.GET("/reports/cashflow/monthly", requireFinance, monthlyCashFlowHandler())
	api.GET("/reports/accounts-receivable", requireFinance, asOfReport("receivableAgingHandler", reports.GetReceivableAgingReport))
	api.GET("/reports/dashboard", asOfReport("dashboardHandler", reports.GetDashboardReport))
	api.GET("/reports/income-statement", requireFinance, incomeStatementHandler())
	api.POST("/income-statement/generate", requireFinance, generateIncomeStatementHandler())
	api.GET("/income-statement", requireFinance, listIncomeStatementsHandler())
	api.GET("/income-statement/:id", requireFinance, getIncomeStatementHandler())

	api.GET("/maintenance/integrity", requireHouse, requireFinance, integrityCheckHandler())
	api.GET("/maintenance/reports", requireHouse, requireFinance, reconciliationReportsHandler())
	api.POST("/maintenance/rebuild-balances", requireHouse, requireBoss, rebuildBalancesHandler())
	api.POST("/maintenance/recalculate-student-balances", requireHouse, requireBoss, recalculateStudentBalancesHandler())
}
