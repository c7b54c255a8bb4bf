package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-identity/internal/service"
)

// OrganizationHandler exposes organization CRUD.
type OrganizationHandler struct {
	Organizations *service.OrganizationService
}

func NewOrganizationHandler(organizations *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{Organizations: organizations}
}

func (h *OrganizationHandler) Create(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req service.OrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.Organizations.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Organization created successfully.",
		"organization": org,
	})
}

func (h *OrganizationHandler) Get(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	org, err := h.Organizations.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (h *OrganizationHandler) Update(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req service.OrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.Organizations.Update(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (h *OrganizationHandler) Delete(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}
	if err := h.Organizations.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Organization and all associated users deleted successfully.")
}
