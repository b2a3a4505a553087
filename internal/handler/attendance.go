package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"apsconnect/internal/apperr"
	"apsconnect/internal/attendance"
	"apsconnect/internal/identity"
)

func (h *Handler) createSession(c *gin.Context) {
	u, ok := h.currentStaff(c)
	if !ok {
		return
	}
	var req attendance.CreateSessionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.attendance.CreateSession(c.Request.Context(), u.ID, req)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	resp := gin.H{"success": true, "session": sess}
	if sess.HasQR() {
		// The raw token goes back to the creating faculty only; students
		// receive it through the projected QR image.
		resp["qr_token"] = sess.QRToken
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) sessionQR(c *gin.Context) {
	if _, ok := h.currentStaff(c); !ok {
		return
	}
	png, err := h.attendance.QRPNG(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) mark(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req attendance.MarkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.attendance.Mark(c.Request.Context(), u, req)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "record": rec})
}

func (h *Handler) bulkMark(c *gin.Context) {
	u, ok := h.currentStaff(c)
	if !ok {
		return
	}
	var req struct {
		SessionID string                 `json:"session_id" binding:"required"`
		Marks     []attendance.BulkEntry `json:"marks" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.attendance.BulkMark(c.Request.Context(), u, req.SessionID, req.Marks)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

func (h *Handler) attendanceSummary(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	subject := u
	if studentID := c.Query("student_id"); studentID != "" && studentID != u.ID {
		if u.Role != identity.RoleFaculty && u.Role != identity.RoleAdmin {
			h.writeErr(c, apperr.New(apperr.Forbidden, "students may only view their own summary"))
			return
		}
		student, err := h.identity.Resolve(c.Request.Context(), studentID)
		if err != nil {
			h.writeErr(c, err)
			return
		}
		if u.Role == identity.RoleFaculty &&
			(student.Branch != u.Branch || student.Semester != u.Semester) {
			h.writeErr(c, apperr.New(apperr.Forbidden, "student outside your branch/semester scope"))
			return
		}
		subject = student
	}
	sum, err := h.attendance.Summary(c.Request.Context(), subject)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum})
}

func (h *Handler) listSessions(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	branch, semester := u.Branch, u.Semester
	if b := c.Query("branch"); b != "" {
		branch = b
	}
	if v := c.Query("semester"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			semester = parsed
		}
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	sessions, err := h.attendance.Sessions(c.Request.Context(), branch, semester, limit)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
