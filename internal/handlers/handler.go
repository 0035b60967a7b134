package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/auth"
	"go-pos-engine/internal/catalog"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/pricing"
	"go-pos-engine/internal/sales"
	"go-pos-engine/internal/store"
)

// Handler holds everything the HTTP surface calls into.
type Handler struct {
	Store   store.Store
	Sales   *sales.Coordinator
	Catalog *catalog.Service
	Pricing *pricing.Resolver
	Audit   *audit.Recorder
	Auth    *auth.Service
	Log     logrus.FieldLogger
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		return store.DefaultListLimit
	}
	return store.ClampLimit(limit)
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
}

// respondError maps engine errors onto status codes. Partial failures are
// never shown as an ordinary validation message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		pf  *apperr.PartialFailure
		ve  *apperr.ValidationError
		ves apperr.ValidationErrors
	)
	switch {
	case errors.As(err, &pf):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           "The operation did not complete. Check stock manually.",
			"partial_failure": true,
			"operation":       pf.Operation,
			"step":            pf.Step,
			"compensated":     pf.Compensated,
		})
	case errors.As(err, &ves):
		fields := make(map[string]string, len(ves))
		for _, v := range ves {
			fields[v.Field] = v.Message
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": fields})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, apperr.ErrBadConfirmation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrInsufficientForExit):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "insufficient_for_exit"})
	case errors.Is(err, apperr.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "insufficient_stock"})
	case errors.Is(err, apperr.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": apperr.ErrConcurrentModification.Error(), "code": "concurrent_modification"})
	case errors.Is(err, apperr.ErrLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "locked"})
	default:
		config.LogError(h.Log, "handlers", c.HandlerName(), c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
