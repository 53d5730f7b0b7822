package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/models"
)

type generateInvoicesRequest struct {
	Period string `json:"period" binding:"required"`
	DryRun bool   `json:"dry_run"`
}

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStudentInvoice
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func generateMonthlyInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateInvoicesRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := models.GenerateMonthlyInvoices(c.Request.Context(), req.Period, req.DryRun)
		if err != nil {
			respondError(c, "generateMonthlyInvoicesHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func voidInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req voidRequest
		if !bindJSON(c, &req) {
			return
		}
		invoice, err := models.VoidInvoice(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, "voidInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func recordPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStudentPayment
		if !bindJSON(c, &input) {
			return
		}
		payment, err := models.RecordPayment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "recordPaymentHandler", err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func voidPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req voidRequest
		if !bindJSON(c, &req) {
			return
		}
		payment, err := models.VoidPayment(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, "voidPaymentHandler", err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func studentStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		statement, err := models.GetStudentStatement(c.Request.Context(), id)
		if err != nil {
			respondError(c, "studentStatementHandler", err)
			return
		}
		c.JSON(http.StatusOK, statement)
	}
}

func studentInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		invoices, err := models.ListStudentInvoices(c.Request.Context(), id, queryBool(c, "include_void"))
		if err != nil {
			respondError(c, "studentInvoicesHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func studentPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		payments, err := models.ListStudentPayments(c.Request.Context(), id, queryBool(c, "include_void"))
		if err != nil {
			respondError(c, "studentPaymentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}
