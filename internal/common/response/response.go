// Package response holds the success envelopes and request binding helpers shared by handlers.
package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/middleware"
)

// Receipt is the envelope for operations that move currency.
type Receipt struct {
	Status     string `json:"status" example:"ok"`
	Message    string `json:"message"`
	NewBalance int64  `json:"newBalance"`
}

// Status is the envelope for operations without a balance change.
type Status struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message,omitempty"`
}

func OK(c *gin.Context, message string, newBalance int64) {
	c.JSON(http.StatusOK, Receipt{Status: "ok", Message: message, NewBalance: newBalance})
}

func Done(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Status{Status: "ok", Message: message})
}

// BindJSON decodes the body into dest and fails the request with a validation error otherwise.
func BindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		middleware.Fail(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// IDParam parses a positive integer path parameter.
func IDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.Fail(c, errors.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}
