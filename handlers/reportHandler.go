package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/models/reports"
	"github.com/mmdatafocus/boarding_backend/utils"
)

type incomeStatementRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// asOfReport wires the reports that take a single as_of date (default today).
func asOfReport[T reports.ExcelExporter](funcName string, build func(ctx context.Context, asOf time.Time) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, ok := queryDate(c, "as_of", today())
		if !ok {
			return
		}
		report, err := build(c.Request.Context(), asOf)
		if err != nil {
			respondError(c, funcName, err)
			return
		}
		respondReport(c, funcName, report)
	}
}

func monthlyCashFlowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		year, ok := queryInt(c, "year", time.Now().UTC().Year())
		if !ok {
			return
		}
		report, err := reports.GetMonthlyCashFlowReport(c.Request.Context(), year)
		if err != nil {
			respondError(c, "monthlyCashFlowHandler", err)
			return
		}
		respondReport(c, "monthlyCashFlowHandler", report)
	}
}

// incomeStatementHandler computes the statement without saving it.
// Defaults to the current month.
func incomeStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start, _ := utils.GetThisMonthRange()
		from, ok := queryDate(c, "from", start)
		if !ok {
			return
		}
		to, ok := queryDate(c, "to", today())
		if !ok {
			return
		}
		report, err := reports.GetIncomeStatementReport(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, "incomeStatementHandler", err)
			return
		}
		respondReport(c, "incomeStatementHandler", report)
	}
}

func generateIncomeStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req incomeStatementRequest
		if !bindJSON(c, &req) {
			return
		}
		from, err := utils.ParseDate(req.From)
		if err != nil {
			respondError(c, "generateIncomeStatementHandler", err)
			return
		}
		to, err := utils.ParseDate(req.To)
		if err != nil {
			respondError(c, "generateIncomeStatementHandler", err)
			return
		}
		report, err := reports.GenerateIncomeStatement(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, "generateIncomeStatementHandler", err)
			return
		}
		if c.Query("format") == "" {
			c.JSON(http.StatusCreated, report)
			return
		}
		respondReport(c, "generateIncomeStatementHandler", report)
	}
}

func listIncomeStatementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageInput(c)
		if !ok {
			return
		}
		result, err := models.ListIncomeStatementSnapshots(c.Request.Context(), page)
		if err != nil {
			respondError(c, "listIncomeStatementsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getIncomeStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		snapshot, err := models.GetIncomeStatementSnapshot(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getIncomeStatementHandler", err)
			return
		}
		report, err := reports.DecodeIncomeStatementSnapshot(snapshot)
		if err != nil {
			respondError(c, "getIncomeStatementHandler", err)
			return
		}
		respondReport(c, "getIncomeStatementHandler", report)
	}
}
