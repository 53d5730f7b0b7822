// Package handlers holds the gin handlers of the REST API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/models/reports"
	"github.com/mmdatafocus/boarding_backend/utils"
	"gorm.io/gorm"
)

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, utils.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, utils.ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	case errors.Is(err, utils.ErrUnbalancedEntry),
		errors.Is(err, utils.ErrInsufficientFunds),
		errors.Is(err, utils.ErrPeriodLocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": msg}. Unexpected errors are logged and hidden.
func respondError(c *gin.Context, funcName string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "handlers", funcName, c.FullPath(), cid, err)
		c.JSON(status, gin.H{"error": "internal server error", "correlation_id": cid})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindJSON binds the body and answers 400 with per-field tags on failure.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		if fields := utils.ProcessValidationErrors(err); fields != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return v
}

// queryDate reads a YYYY-MM-DD query value, def when absent.
func queryDate(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	t, err := utils.ParseOptionalDate(c.Query(name), def)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, false
	}
	return t, true
}

func queryOptionalDate(c *gin.Context, name string) (*time.Time, bool) {
	if strings.TrimSpace(c.Query(name)) == "" {
		return nil, true
	}
	t, ok := queryDate(c, name, time.Time{})
	if !ok {
		return nil, false
	}
	return &t, true
}

func pageInput(c *gin.Context) (models.PageInput, bool) {
	var page models.PageInput
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paging"})
		return page, false
	}
	return page, true
}

func today() time.Time {
	return utils.StartOfDay(time.Now())
}

// respondReport answers JSON, or an xlsx download when format=xlsx.
func respondReport(c *gin.Context, funcName string, report reports.ExcelExporter) {
	switch strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json"))) {
	case "json":
		c.JSON(http.StatusOK, report)
	case "xlsx":
		data, err := reports.RenderExcel(report)
		if err != nil {
			respondError(c, funcName, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+report.ExcelFileName()+`"`)
		c.Data(http.StatusOK, reports.ExcelContentType, data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or xlsx"})
	}
}
