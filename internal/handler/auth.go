package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"apsconnect/internal/apperr"
	"apsconnect/internal/auth"
	"apsconnect/internal/identity"
)

func (h *Handler) register(c *gin.Context) {
	var req identity.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.identity.Register(c.Request.Context(), req)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": u})
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeErr(c, err)
		return
	}

	tokens, err := auth.Issue(u.ID, string(u.Role), h.cfg.JWTIssuer, h.cfg.JWTSigningKey,
		h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	// A token the store never saw would fail every later Refresh; better to
	// fail the login than hand it out.
	if err := h.identity.SaveRefreshToken(c.Request.Context(), u.ID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		h.writeErr(c, apperr.Wrap(apperr.Internal, err, "persist refresh token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"user":          u,
	})
}

func (h *Handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := auth.Parse(req.RefreshToken, h.cfg.JWTSigningKey, h.cfg.JWTIssuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	u, err := h.identity.Refresh(c.Request.Context(), claims.Subject, req.RefreshToken)
	if err != nil {
		h.writeErr(c, err)
		return
	}

	tokens, err := auth.Issue(u.ID, string(u.Role), h.cfg.JWTIssuer, h.cfg.JWTSigningKey,
		h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	// Rotate: revoke the old token, persist the new one. A failed revoke
	// leaves the old token live until expiry, worth a log line; a failed
	// save would strand the client with an unusable token.
	if err := h.identity.RevokeRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Warn("refresh token revoke failed", zap.Error(err))
	}
	if err := h.identity.SaveRefreshToken(c.Request.Context(), u.ID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		h.writeErr(c, apperr.Wrap(apperr.Internal, err, "persist refresh token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (h *Handler) me(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
