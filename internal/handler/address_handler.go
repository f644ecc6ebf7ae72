package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUsedAddresses returns all assigned addresses
func (h *Handlers) GetUsedAddresses(c *gin.Context) {
	rules, err := h.service.ListUsed(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch addresses")
		return
	}

	c.JSON(http.StatusOK, toAddressResponses(rules))
}

// GetUnusedAddresses returns the free pool, oldest first
func (h *Handlers) GetUnusedAddresses(c *gin.Context) {
	rules, err := h.service.ListUnused(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch unused addresses")
		return
	}

	c.JSON(http.StatusOK, toAddressResponses(rules))
}

// AssignAddress hands out the next free address under a label
func (h *Handlers) AssignAddress(c *gin.Context) {
	var req LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	rule, err := h.service.Assign(c.Request.Context(), req.Label)
	if err != nil {
		respondError(c, err, "Failed to assign address")
		return
	}

	c.JSON(http.StatusCreated, toAddressResponse(rule))
}

// RelabelAddress changes the label of an assigned address
func (h *Handlers) RelabelAddress(c *gin.Context) {
	var req LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	rule, err := h.service.Relabel(c.Request.Context(), c.Param("id"), req.Label)
	if err != nil {
		respondError(c, err, "Failed to relabel address")
		return
	}

	c.JSON(http.StatusOK, toAddressResponse(rule))
}

// ReleaseAddress deletes an address and replaces it in the pool
func (h *Handlers) ReleaseAddress(c *gin.Context) {
	if err := h.service.Release(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Failed to release address")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address released successfully"})
}

// ReconcilePool tops the pool back up to its target size
func (h *Handlers) ReconcilePool(c *gin.Context) {
	created, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to reconcile pool")
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created})
}
