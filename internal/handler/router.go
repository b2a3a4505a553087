package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"apsconnect/internal/auth"
	"apsconnect/internal/httpmiddleware"
	"apsconnect/internal/identity"
	"apsconnect/internal/store"
)

const (
	roleStudent = string(identity.RoleStudent)
	roleFaculty = string(identity.RoleFaculty)
	roleAdmin   = string(identity.RoleAdmin)
	roleAlumni  = string(identity.RoleAlumni)
)

// Router builds the gin engine with all middleware and routes.
func (h *Handler) Router(db *store.DB, redisClient *store.Redis) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(h.cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/register", h.register)
	r.POST("/v1/auth/login", h.login)
	r.POST("/v1/auth/refresh", h.refresh)

	authed := r.Group("/v1", auth.Middleware(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	authed.GET("/me", h.me)

	staff := authed.Group("", auth.RequireRoles(roleFaculty, roleAdmin))
	staff.GET("/approvals", h.pendingApprovals)
	staff.POST("/approvals/:id/approve", h.approve)
	staff.POST("/approvals/:id/reject", h.reject)
	staff.POST("/attendance/sessions", h.createSession)
	staff.GET("/attendance/sessions/:id/qr.png", h.sessionQR)
	staff.POST("/attendance/bulk-mark", h.bulkMark)
	staff.POST("/library/return", h.returnBook)
	staff.POST("/results", h.recordResult)

	authed.POST("/attendance/mark", h.mark)
	authed.GET("/attendance/summary", h.attendanceSummary)
	authed.GET("/attendance/sessions", h.listSessions)

	authed.GET("/library/books", h.listBooks)
	authed.POST("/library/issue", h.issueBook)
	authed.GET("/library/transactions", h.myLoans)

	authed.GET("/results/summary", h.resultSummary)
	authed.POST("/fees/pay", h.payFee)
	authed.GET("/fees/summary", h.feeSummary)

	authed.GET("/notifications", h.listNotifications)
	authed.POST("/notifications/read/:id", h.markNotificationRead)

	admin := authed.Group("", auth.RequireRoles(roleAdmin))
	admin.POST("/library/books", h.addBook)
	admin.GET("/results/export", h.exportResults)
	admin.POST("/fees", h.createFee)
	admin.POST("/fees/verify/:id", h.verifyFee)
	admin.POST("/fees/reject/:id", h.rejectFee)
	admin.POST("/notifications/broadcast", h.broadcast)

	return r
}
