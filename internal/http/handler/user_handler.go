package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-identity/internal/service"
)

// UserHandler exposes user CRUD.
type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{Users: users}
}

func (h *UserHandler) Create(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req service.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.Users.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully.",
		"user":    user,
	})
}

func (h *UserHandler) Get(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	user, err := h.Users.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.Users.Update(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"email":      user.Email,
	})
}

func (h *UserHandler) Delete(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	if err := h.Users.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "User deleted successfully.")
}
