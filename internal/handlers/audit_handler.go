package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/middleware"
)

func (h *Handler) ListAuditLogs(c *gin.Context) {
	logs, err := h.Store.ListAuditLogs(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

type purgeBody struct {
	Confirmation string `json:"confirmation"`
}

func (h *Handler) PurgeAuditLogs(c *gin.Context) {
	var body purgeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		bindError(c, err)
		return
	}
	claims := middleware.Claims(c)
	actor := audit.Actor{ID: claims.UserID, IsAdmin: claims.IsAdmin()}
	deleted, err := h.Audit.PurgeAll(c.Request.Context(), actor, body.Confirmation)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) ListIncidents(c *gin.Context) {
	incidents, err := h.Store.ListIncidents(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, incidents)
}
