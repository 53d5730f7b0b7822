package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/models"
)

func listBoardingHousesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		houses, err := models.ListBoardingHouses(c.Request.Context())
		if err != nil {
			respondError(c, "listBoardingHousesHandler", err)
			return
		}
		c.JSON(http.StatusOK, houses)
	}
}

func getBoardingHouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		house, err := models.GetBoardingHouse(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getBoardingHouseHandler", err)
			return
		}
		c.JSON(http.StatusOK, house)
	}
}

func createBoardingHouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBoardingHouse
		if !bindJSON(c, &input) {
			return
		}
		house, err := models.CreateBoardingHouse(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createBoardingHouseHandler", err)
			return
		}
		c.JSON(http.StatusCreated, house)
	}
}

func updateBoardingHouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewBoardingHouse
		if !bindJSON(c, &input) {
			return
		}
		house, err := models.UpdateBoardingHouse(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateBoardingHouseHandler", err)
			return
		}
		c.JSON(http.StatusOK, house)
	}
}

func deactivateBoardingHouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		house, err := models.DeactivateBoardingHouse(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deactivateBoardingHouseHandler", err)
			return
		}
		c.JSON(http.StatusOK, house)
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, "listUsersHandler", err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createUserHandler", err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// updateUserHandler also deactivates users: {"is_active": false}.
func updateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewUser
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.UpdateUser(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateUserHandler", err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
