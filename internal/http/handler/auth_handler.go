package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-identity/internal/service"
)

// AuthHandler serves login, logout and the caller's profile.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Login exchanges credentials for an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout revokes the presented token.
func (h *AuthHandler) Logout(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	if err := h.Auth.Logout(c.Request.Context(), caller); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Logged out successfully.")
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	user, err := h.Auth.Me(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
