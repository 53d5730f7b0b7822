package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/models"
)

func listSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		suppliers, err := models.ListSuppliers(c.Request.Context(), queryBool(c, "include_inactive"))
		if err != nil {
			respondError(c, "listSuppliersHandler", err)
			return
		}
		c.JSON(http.StatusOK, suppliers)
	}
}

func getSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		supplier, err := models.GetSupplier(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getSupplierHandler", err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func createSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplier
		if !bindJSON(c, &input) {
			return
		}
		supplier, err := models.CreateSupplier(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createSupplierHandler", err)
			return
		}
		c.JSON(http.StatusCreated, supplier)
	}
}

func updateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewSupplier
		if !bindJSON(c, &input) {
			return
		}
		supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateSupplierHandler", err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func deleteSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		supplier, err := models.DeleteSupplier(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteSupplierHandler", err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func listExpensesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.ExpenseFilter{Status: models.ExpenseStatus(c.Query("status"))}
		var ok bool
		if filter.From, ok = queryOptionalDate(c, "from"); !ok {
			return
		}
		if filter.To, ok = queryOptionalDate(c, "to"); !ok {
			return
		}
		if filter.SupplierId, ok = queryInt(c, "supplier_id", 0); !ok {
			return
		}
		if filter.AccountId, ok = queryInt(c, "account_id", 0); !ok {
			return
		}
		if filter.PageInput, ok = pageInput(c); !ok {
			return
		}
		result, err := models.ListExpenses(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "listExpensesHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		expense, err := models.GetExpense(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getExpenseHandler", err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func recordExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewExpense
		if !bindJSON(c, &input) {
			return
		}
		expense, err := models.RecordExpense(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "recordExpenseHandler", err)
			return
		}
		c.JSON(http.StatusCreated, expense)
	}
}

func voidExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req voidRequest
		if !bindJSON(c, &req) {
			return
		}
		expense, err := models.VoidExpense(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, "voidExpenseHandler", err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func uploadExpenseReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		defer file.Close()

		expense, err := models.UploadExpenseReceipt(c.Request.Context(), id, file)
		if err != nil {
			respondError(c, "uploadExpenseReceiptHandler", err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func paySupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplierPayment
		if !bindJSON(c, &input) {
			return
		}
		payment, err := models.PaySupplier(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "paySupplierHandler", err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func listPettyCashAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := models.ListPettyCashAccounts(c.Request.Context())
		if err != nil {
			respondError(c, "listPettyCashAccountsHandler", err)
			return
		}
		c.JSON(http.StatusOK, accounts)
	}
}

func createPettyCashAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPettyCashAccount
		if !bindJSON(c, &input) {
			return
		}
		account, err := models.CreatePettyCashAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createPettyCashAccountHandler", err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

func setPettyCashAccountActiveHandler(isActive bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		account, err := models.SetPettyCashAccountActive(c.Request.Context(), id, isActive)
		if err != nil {
			respondError(c, "setPettyCashAccountActiveHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func listPettyCashTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		from, ok := queryOptionalDate(c, "from")
		if !ok {
			return
		}
		to, ok := queryOptionalDate(c, "to")
		if !ok {
			return
		}
		rows, err := models.ListPettyCashTransactions(c.Request.Context(), id, from, to)
		if err != nil {
			respondError(c, "listPettyCashTransactionsHandler", err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// pettyCashMovementHandler serves both replenish and return.
func pettyCashMovementHandler(replenish bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.PettyCashMovementInput
		if !bindJSON(c, &input) {
			return
		}
		var (
			movement *models.PettyCashTransaction
			err      error
		)
		if replenish {
			movement, err = models.ReplenishPettyCash(c.Request.Context(), id, &input)
		} else {
			movement, err = models.ReturnPettyCash(c.Request.Context(), id, &input)
		}
		if err != nil {
			respondError(c, "pettyCashMovementHandler", err)
			return
		}
		c.JSON(http.StatusCreated, movement)
	}
}
