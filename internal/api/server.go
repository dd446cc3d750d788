package api

import (
	"context"
	"net/http"
	"time"

	"github.com/eencloud/goeen/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/core"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/forms"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/settings"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/signup"
)

// NotifierStats exposes delivery health for the metrics endpoint.
type NotifierStats interface {
	HealthStats() map[string]interface{}
}

// Server handles HTTP communication from form frontends.
type Server struct {
	*http.Server
	Logger          *log.Logger
	Wizard          *signup.Wizard
	Forms           *forms.Handler
	SettingsManager *settings.Manager
	Integrations    *pos.Manager
	Store           *core.SubmissionStore
	Audit           *core.AuditLogger
	Notifier        NotifierStats
}

// NewServer creates and configures a new server for the form endpoints.
func NewServer(addr string, logger *log.Logger, wizard *signup.Wizard, formsHandler *forms.Handler,
	sm *settings.Manager, integrations *pos.Manager, store *core.SubmissionStore,
	audit *core.AuditLogger, notifier NotifierStats) *Server {

	s := &Server{
		Server: &http.Server{
			Addr:           addr,
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		Logger:          logger,
		Wizard:          wizard,
		Forms:           formsHandler,
		SettingsManager: sm,
		Integrations:    integrations,
		Store:           store,
		Audit:           audit,
		Notifier:        notifier,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/signup", func(r chi.Router) {
		r.Get("/token", s.tokenHandler)
		r.Post("/step/{step}", s.stepHandler)
		r.Get("/pickup-dates", s.pickupDatesHandler)
	})

	r.Route("/forms", func(r chi.Router) {
		r.Post("/contact", s.contactHandler)
		r.Post("/optin", s.optinHandler)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/integration", s.updateIntegrationHandler)
		r.Get("/integration", s.currentIntegrationHandler)
	})

	r.Get("/metrics", s.metricsHandler)

	s.Handler = r
	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.Logger.Infof("Starting API Server on %s", s.Addr)
	return s.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.Logger.Info("Shutting down API Server...")
	return s.Shutdown(ctx)
}
