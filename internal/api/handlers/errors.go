package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
)

// respondError writes err with the status its kind maps to. Unclassified errors are recorded on
// the context and reported as 500 with a generic message.
func respondError(c *gin.Context, err error) {
	var suspended *apperr.SuspendedError
	switch {
	case errors.As(err, &suspended):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error(), "suspendedUntil": suspended.Until.UTC()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": apperr.Message(err)})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": apperr.Message(err)})
	case errors.Is(err, apperr.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": apperr.Message(err)})
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err)})
	case errors.Is(err, apperr.ErrExternal):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": apperr.Message(err)})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
