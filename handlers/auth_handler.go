package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthHandler verifies the shared family password.
type AuthHandler struct {
	password string
	token    string
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(password, token string) *AuthHandler {
	return &AuthHandler{password: password, token: token}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Password is required"})
		return
	}

	if req.Password != h.password {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Incorrect Password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Welcome back!",
		"token":   h.token,
	})
}
