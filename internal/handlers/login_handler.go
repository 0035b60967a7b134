package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-pos-engine/internal/models"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	session, err := h.Auth.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    session.Token,
		"role":     session.User.Role,
		"username": session.User.Username,
	})
}

// Register is only routed when ALLOW_REGISTRATION is set. New accounts are staff.
func (h *Handler) Register(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), input.Username, input.Password, models.RoleStaff)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully!", "user": user})
}
