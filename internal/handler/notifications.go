package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"apsconnect/internal/notify"
)

func (h *Handler) listNotifications(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	items, err := h.notify.List(c.Request.Context(), u.ID, string(u.Role), u.Branch, u.Semester, limit)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	if err := h.notify.MarkRead(c.Request.Context(), c.Param("id"), u.ID); err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// broadcast lets admin push an announcement to a role/branch/semester.
func (h *Handler) broadcast(c *gin.Context) {
	if _, ok := h.currentStaff(c); !ok {
		return
	}
	var req struct {
		Target  notify.Target `json:"target"`
		Title   string        `json:"title" binding:"required"`
		Message string        `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.notify.Notify(c.Request.Context(), req.Target, req.Title, req.Message)
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}
