package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the envelope every portal endpoint answers with. Data is always present on
// success, so an absent poll is reported as "data": null rather than omitted.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func fail(c *gin.Context, status int, err string) {
	c.AbortWithStatusJSON(status, Body{Success: false, Error: err})
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	fail(c, http.StatusBadRequest, err)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	fail(c, http.StatusUnauthorized, err)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	fail(c, http.StatusForbidden, err)
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	fail(c, http.StatusNotFound, err)
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	fail(c, http.StatusConflict, err)
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, err string) {
	fail(c, http.StatusTooManyRequests, err)
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	fail(c, http.StatusInternalServerError, err)
}
