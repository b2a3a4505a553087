package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"apsconnect/internal/library"
)

func (h *Handler) listBooks(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	books, err := h.library.Books(c.Request.Context())
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

func (h *Handler) addBook(c *gin.Context) {
	if _, ok := h.currentStaff(c); !ok {
		return
	}
	var req struct {
		Title       string `json:"title" binding:"required"`
		Author      string `json:"author" binding:"required"`
		ISBN        string `json:"isbn"`
		TotalCopies int    `json:"total_copies" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	book, err := h.library.AddBook(c.Request.Context(), library.Book{
		Title: req.Title, Author: req.Author, ISBN: req.ISBN, TotalCopies: req.TotalCopies,
	})
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "book": book})
}

func (h *Handler) issueBook(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req struct {
		LibraryID string `json:"library_id" binding:"required"`
		DueDate   string `json:"due_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	due, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
		return
	}
	loan, err := h.library.Issue(c.Request.Context(), u.ID, req.LibraryID, due)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": loan})
}

func (h *Handler) returnBook(c *gin.Context) {
	if _, ok := h.currentStaff(c); !ok {
		return
	}
	var req struct {
		TransactionID string `json:"transaction_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loan, err := h.library.Return(c.Request.Context(), req.TransactionID)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": loan})
}

func (h *Handler) myLoans(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	loans, err := h.library.Loans(c.Request.Context(), u.ID)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": loans})
}
