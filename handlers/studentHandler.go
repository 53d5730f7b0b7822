package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/models"
)

const maxUploadBytes = 10 << 20

func listRoomsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms, err := models.ListRooms(c.Request.Context(), queryBool(c, "available"))
		if err != nil {
			respondError(c, "listRoomsHandler", err)
			return
		}
		c.JSON(http.StatusOK, rooms)
	}
}

func getRoomHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		room, err := models.GetRoom(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getRoomHandler", err)
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

func createRoomHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRoom
		if !bindJSON(c, &input) {
			return
		}
		room, err := models.CreateRoom(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createRoomHandler", err)
			return
		}
		c.JSON(http.StatusCreated, room)
	}
}

func updateRoomHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewRoom
		if !bindJSON(c, &input) {
			return
		}
		room, err := models.UpdateRoom(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateRoomHandler", err)
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

func deleteRoomHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		room, err := models.DeleteRoom(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteRoomHandler", err)
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

func listStudentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.StudentFilter{
			Status: models.StudentStatus(c.Query("status")),
			Search: c.Query("search"),
		}
		var ok bool
		if filter.PageInput, ok = pageInput(c); !ok {
			return
		}
		result, err := models.ListStudents(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "listStudentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getStudentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		student, err := models.GetStudent(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getStudentHandler", err)
			return
		}
		c.JSON(http.StatusOK, student)
	}
}

func createStudentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStudent
		if !bindJSON(c, &input) {
			return
		}
		student, err := models.CreateStudent(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createStudentHandler", err)
			return
		}
		c.JSON(http.StatusCreated, student)
	}
}

func updateStudentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewStudent
		if !bindJSON(c, &input) {
			return
		}
		student, err := models.UpdateStudent(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateStudentHandler", err)
			return
		}
		c.JSON(http.StatusOK, student)
	}
}

func uploadStudentPhotoHandler() gin.HandlerFunc {
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

		student, err := models.UploadStudentPhoto(c.Request.Context(), id, file)
		if err != nil {
			respondError(c, "uploadStudentPhotoHandler", err)
			return
		}
		c.JSON(http.StatusOK, student)
	}
}

func enrollStudentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewEnrollment
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.EnrollStudent(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "enrollStudentHandler", err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func listStudentEnrollmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		enrollments, err := models.ListStudentEnrollments(c.Request.Context(), id)
		if err != nil {
			respondError(c, "listStudentEnrollmentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, enrollments)
	}
}

func endEnrollmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.EndEnrollmentInput
		if !bindJSON(c, &input) {
			return
		}
		enrollment, err := models.EndEnrollment(c.Request.Context(), id, input.EndDate)
		if err != nil {
			respondError(c, "endEnrollmentHandler", err)
			return
		}
		c.JSON(http.StatusOK, enrollment)
	}
}

func transferEnrollmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.TransferEnrollmentInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.TransferRoom(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "transferEnrollmentHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
