package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"apsconnect/internal/apperr"
	"apsconnect/internal/attendance"
	"apsconnect/internal/auth"
	"apsconnect/internal/config"
	"apsconnect/internal/identity"
	"apsconnect/internal/ledger"
	"apsconnect/internal/library"
	"apsconnect/internal/notify"
)

// Handler wires HTTP requests to the domain services.
type Handler struct {
	cfg    config.App
	logger *zap.Logger

	identity   *identity.Service
	attendance *attendance.Service
	library    *library.Service
	ledger     *ledger.Service
	notify     *notify.Service
}

// New creates a handler.
func New(cfg config.App, logger *zap.Logger, id *identity.Service, att *attendance.Service,
	lib *library.Service, led *ledger.Service, not *notify.Service) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg: cfg, logger: logger,
		identity: id, attendance: att, library: lib, ledger: led, notify: not,
	}
}

// writeErr translates a service error to its HTTP shape.
func (h *Handler) writeErr(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// currentUser re-resolves the token subject to a full account record. Every
// privileged handler goes through this; authorization is never cached.
func (h *Handler) currentUser(c *gin.Context) (identity.User, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return identity.User{}, false
	}
	u, err := h.identity.Resolve(c.Request.Context(), claims.Subject)
	if err != nil {
		h.writeErr(c, err)
		return identity.User{}, false
	}
	return u, true
}

// currentStaff additionally requires an approved account. The role
// middleware gates on the token alone; approval status lives only in the
// store, so staff handlers re-check it here.
func (h *Handler) currentStaff(c *gin.Context) (identity.User, bool) {
	u, ok := h.currentUser(c)
	if !ok {
		return identity.User{}, false
	}
	if u.Status != identity.StatusApproved {
		h.writeErr(c, apperr.New(apperr.Forbidden, "account %s is not approved", u.ID))
		return identity.User{}, false
	}
	return u, true
}
