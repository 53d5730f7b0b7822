package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, "loginHandler", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, "logoutHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, err := models.GetCurrentUser(utils.SetSkipTenantScopeInContext(ctx, true))
		if err != nil {
			respondError(c, "meHandler", err)
			return
		}
		boardingHouseId, _ := utils.GetBoardingHouseIdFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{
			"user":                       user,
			"selected_boarding_house_id": boardingHouseId,
		})
	}
}

func changePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := utils.SetSkipTenantScopeInContext(c.Request.Context(), true)
		if err := models.ChangePassword(ctx, req.OldPassword, req.NewPassword); err != nil {
			respondError(c, "changePasswordHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
