package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/models"
)

type voidRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

func listAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := models.ListAccounts(c.Request.Context(), queryBool(c, "include_inactive"))
		if err != nil {
			respondError(c, "listAccountsHandler", err)
			return
		}
		c.JSON(http.StatusOK, accounts)
	}
}

func createAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccount
		if !bindJSON(c, &input) {
			return
		}
		account, err := models.CreateAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createAccountHandler", err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

func updateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewAccount
		if !bindJSON(c, &input) {
			return
		}
		account, err := models.UpdateAccount(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func setAccountActiveHandler(isActive bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		account, err := models.SetAccountActive(c.Request.Context(), id, isActive)
		if err != nil {
			respondError(c, "setAccountActiveHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

// accountLedgerHandler defaults to the current year up to today.
func accountLedgerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		now := today()
		from, ok := queryDate(c, "from", time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC))
		if !ok {
			return
		}
		to, ok := queryDate(c, "to", now)
		if !ok {
			return
		}
		ledger, err := models.AccountLedger(c.Request.Context(), id, from, to)
		if err != nil {
			respondError(c, "accountLedgerHandler", err)
			return
		}
		c.JSON(http.StatusOK, ledger)
	}
}

func listTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.TransactionFilter{
			Type:           models.TransactionType(c.Query("type")),
			IncludeDeleted: queryBool(c, "include_deleted"),
		}
		var ok bool
		if filter.From, ok = queryOptionalDate(c, "from"); !ok {
			return
		}
		if filter.To, ok = queryOptionalDate(c, "to"); !ok {
			return
		}
		if filter.AccountId, ok = queryInt(c, "account_id", 0); !ok {
			return
		}
		if filter.PageInput, ok = pageInput(c); !ok {
			return
		}
		result, err := models.ListTransactions(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "listTransactionsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		txn, err := models.GetTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getTransactionHandler", err)
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}

func postJournalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewManualJournal
		if !bindJSON(c, &input) {
			return
		}
		txn, err := models.PostManualJournal(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "postJournalHandler", err)
			return
		}
		c.JSON(http.StatusCreated, txn)
	}
}

func voidTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req voidRequest
		if !bindJSON(c, &req) {
			return
		}
		txn, err := models.VoidTransaction(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, "voidTransactionHandler", err)
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}
