// Package server exposes the payment request subsystem over HTTP/JSON.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/buildhub-payments/internal/budget"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/dashboard"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/export"
	"github.com/joseph-ayodele/buildhub-payments/internal/payments"
	"github.com/joseph-ayodele/buildhub-payments/internal/receipts"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
)

// ProjectResolver maps a project reference to its canonical project.
type ProjectResolver interface {
	Resolve(ctx context.Context, ref int64) (*entity.Project, error)
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	DB        Pinger
	Payments  *payments.Service
	Receipts  *receipts.Workflow
	Dashboard *dashboard.Aggregator
	Budget    *budget.Reconciler
	Export    *export.Service
	Audit     repository.AuditRepository
	Resolver  ProjectResolver
	Auth      common.AuthConfig
	// MaxUploadBytes caps a whole multipart receipt upload.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Server struct {
	db             Pinger
	payments       *payments.Service
	receipts       *receipts.Workflow
	dashboard      *dashboard.Aggregator
	budget         *budget.Reconciler
	export         *export.Service
	audit          repository.AuditRepository
	resolver       ProjectResolver
	auth           common.AuthConfig
	maxUploadBytes int64
	logger         *slog.Logger
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	return &Server{
		db:             d.DB,
		payments:       d.Payments,
		receipts:       d.Receipts,
		dashboard:      d.Dashboard,
		budget:         d.Budget,
		export:         d.Export,
		audit:          d.Audit,
		resolver:       d.Resolver,
		auth:           d.Auth,
		maxUploadBytes: maxUpload,
		logger:         logger,
	}
}

// Router builds the gin engine with middleware and every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(RequestLogger(s.logger))
	r.Use(Recovery(s.logger))

	r.GET("/healthz", s.healthz)

	api := r.Group("/api/v1")
	api.Use(Auth(s.auth))
	{
		api.POST("/payment-requests", s.submit)
		api.GET("/payment-requests", s.list)
		api.GET("/payment-requests/export", s.exportXLSX)
		api.GET("/payment-requests/verification-queue", s.verificationQueue)
		api.GET("/payment-requests/:id", s.get)
		api.POST("/payment-requests/:id/respond", s.respond)
		api.POST("/payment-requests/:id/receipt", s.uploadReceipt)
		api.POST("/payment-requests/:id/verify", s.verify)
		api.POST("/payment-requests/:id/initiate", s.initiate)

		api.GET("/projects/:ref/budget-summary", s.budgetSummary)
		api.GET("/projects/:ref/stages/:stage", s.stageInfo)

		api.GET("/notifications", s.notifications)
	}
	return r
}

// HTTPServer wraps the router with the configured timeouts.
func (s *Server) HTTPServer(cfg common.ServerConfig) *http.Server {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
	}
}

func (s *Server) healthz(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if err := s.db.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "request_id": GetRequestID(c)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
