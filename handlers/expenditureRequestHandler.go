package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/models"
)

type reviewNoteRequest struct {
	Note string `json:"note" binding:"max=500"`
}

func listExpenditureRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.ExpenditureRequestFilter{Status: models.RequestStatus(c.Query("status"))}
		var ok bool
		if filter.PageInput, ok = pageInput(c); !ok {
			return
		}
		result, err := models.ListExpenditureRequests(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "listExpenditureRequestsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getExpenditureRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		request, err := models.GetExpenditureRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getExpenditureRequestHandler", err)
			return
		}
		c.JSON(http.StatusOK, request)
	}
}

func createExpenditureRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewExpenditureRequest
		if !bindJSON(c, &input) {
			return
		}
		request, err := models.CreateExpenditureRequest(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createExpenditureRequestHandler", err)
			return
		}
		c.JSON(http.StatusCreated, request)
	}
}

// reviewExpenditureRequestHandler backs both /approve and /reject.
func reviewExpenditureRequestHandler(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req reviewNoteRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		request, err := models.ReviewExpenditure(c.Request.Context(), id, &models.ReviewExpenditureRequest{
			Approve: approve,
			Note:    req.Note,
		})
		if err != nil {
			respondError(c, "reviewExpenditureRequestHandler", err)
			return
		}
		c.JSON(http.StatusOK, request)
	}
}

func cancelExpenditureRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		request, err := models.CancelExpenditureRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, "cancelExpenditureRequestHandler", err)
			return
		}
		c.JSON(http.StatusOK, request)
	}
}

func postExpenditureRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.PostExpenditureRequest
		if !bindJSON(c, &input) {
			return
		}
		request, expense, err := models.PostApprovedExpenditure(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "postExpenditureRequestHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"request": request, "expense": expense})
	}
}
