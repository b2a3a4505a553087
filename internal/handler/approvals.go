package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) pendingApprovals(c *gin.Context) {
	u, ok := h.currentStaff(c)
	if !ok {
		return
	}
	users, err := h.identity.PendingFor(c.Request.Context(), u.ID)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type remarkRequest struct {
	Remarks string `json:"remarks"`
}

func (h *Handler) approve(c *gin.Context) {
	h.transition(c, true)
}

func (h *Handler) reject(c *gin.Context) {
	h.transition(c, false)
}

func (h *Handler) transition(c *gin.Context, approve bool) {
	u, ok := h.currentStaff(c)
	if !ok {
		return
	}
	var req remarkRequest
	_ = c.ShouldBindJSON(&req) // remarks are optional

	var err error
	var target any
	if approve {
		target, err = h.identity.Approve(c.Request.Context(), u.ID, c.Param("id"), req.Remarks)
	} else {
		target, err = h.identity.Reject(c.Request.Context(), u.ID, c.Param("id"), req.Remarks)
	}
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": target})
}
