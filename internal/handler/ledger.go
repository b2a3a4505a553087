package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"apsconnect/internal/apperr"
	"apsconnect/internal/identity"
	"apsconnect/internal/ledger"
)

func (h *Handler) recordResult(c *gin.Context) {
	if _, ok := h.currentStaff(c); !ok {
		return
	}
	var req ledger.Result
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.ledger.RecordResult(c.Request.Context(), req)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (h *Handler) resultSummary(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	studentID := u.ID
	if q := c.Query("student_id"); q != "" && q != u.ID {
		if u.Role != identity.RoleFaculty && u.Role != identity.RoleAdmin {
			h.writeErr(c, apperr.New(apperr.Forbidden, "students may only view their own results"))
			return
		}
		studentID = q
	}
	sum, err := h.ledger.ResultSummary(c.Request.Context(), studentID, c.Query("exam_id"))
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum})
}

func (h *Handler) exportResults(c *gin.Context) {
	if _, ok := h.currentStaff(c); !ok {
		return
	}
	examID := c.Query("exam_id")
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="results-`+examID+`.csv"`)
	if err := h.ledger.ExportCSV(c.Request.Context(), examID, c.Writer); err != nil {
		// Nothing streamed yet on validation errors; report normally.
		c.Header("Content-Type", "application/json")
		h.writeErr(c, err)
	}
}

func (h *Handler) payFee(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Amount        int    `json:"amount" binding:"required"`
		ScreenshotURL string `json:"screenshot_url"`
		DueDate       string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var due *time.Time
	if req.DueDate != "" {
		d, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
			return
		}
		due = &d
	}
	fee, err := h.ledger.PayFee(c.Request.Context(), u.ID, req.Amount, req.ScreenshotURL, due)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "fee": fee})
}

func (h *Handler) createFee(c *gin.Context) {
	if _, ok := h.currentStaff(c); !ok {
		return
	}
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		Amount    int    `json:"amount" binding:"required"`
		DueDate   string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var due *time.Time
	if req.DueDate != "" {
		d, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
			return
		}
		due = &d
	}
	fee, err := h.ledger.CreateFee(c.Request.Context(), req.StudentID, req.Amount, due)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	h.notify.NotifyUser(c.Request.Context(), fee.StudentID, "Fee due",
		"A new fee has been added to your account.")
	c.JSON(http.StatusCreated, gin.H{"success": true, "fee": fee})
}

func (h *Handler) feeSummary(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	studentID := u.ID
	if q := c.Query("student_id"); q != "" && q != u.ID {
		if u.Role != identity.RoleAdmin {
			h.writeErr(c, apperr.New(apperr.Forbidden, "only admin may view another student's fees"))
			return
		}
		studentID = q
	}
	sum, err := h.ledger.FeeSummaryFor(c.Request.Context(), studentID)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum})
}

func (h *Handler) verifyFee(c *gin.Context) {
	h.feeTransition(c, true)
}

func (h *Handler) rejectFee(c *gin.Context) {
	h.feeTransition(c, false)
}

func (h *Handler) feeTransition(c *gin.Context, verify bool) {
	u, ok := h.currentStaff(c)
	if !ok {
		return
	}
	var req remarkRequest
	_ = c.ShouldBindJSON(&req)

	var fee ledger.Fee
	var err error
	if verify {
		fee, err = h.ledger.VerifyFee(c.Request.Context(), c.Param("id"), req.Remarks)
	} else {
		fee, err = h.ledger.RejectFee(c.Request.Context(), c.Param("id"), req.Remarks)
	}
	if err != nil {
		h.writeErr(c, err)
		return
	}

	title := "Fee verified"
	if !verify {
		title = "Fee rejected"
	}
	h.notify.NotifyUser(c.Request.Context(), fee.StudentID, title,
		"Your fee payment has been reviewed by "+u.Name+".")
	c.JSON(http.StatusOK, gin.H{"success": true, "fee": fee, "verified": fee.Verified()})
}
