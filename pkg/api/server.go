// Package api serves the bundle HTTP API, the submission event stream and
// Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"

	"github.com/ethpandaops/bundloor/pkg/config"
	"github.com/ethpandaops/bundloor/pkg/manager"
)

// Server is the HTTP API server.
type Server struct {
	cfg            config.APIConfig
	handler        http.Handler
	apiHandler     *APIHandler
	eventStreamMgr *EventStreamManager
	srv            *http.Server
	log            logrus.FieldLogger
}

// NewServer builds the router. gatherer may be nil to expose the default
// Prometheus registry.
func NewServer(
	cfg config.APIConfig,
	mgr *manager.Manager,
	gatherer prometheus.Gatherer,
	log logrus.FieldLogger,
) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	router := mux.NewRouter()

	// Tokens from /auth/token are signed with a per-process key.
	authHandler := NewAuthHandler(uuid.NewString(), cfg.UserHeader, cfg.TokenKey)
	authRouter := router.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/token", authHandler.GetToken).Methods(http.MethodGet)

	eventStreamMgr := NewEventStreamManager(mgr, log)
	apiHandler := NewAPIHandler(mgr, authHandler, eventStreamMgr, cfg.TokenKey != "", log)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/builders", apiHandler.GetBuilders).Methods(http.MethodGet)
	apiRouter.HandleFunc("/health", apiHandler.GetHealth).Methods(http.MethodGet)
	apiRouter.HandleFunc("/bundles/dryrun", apiHandler.DryRunBundle).Methods(http.MethodPost)
	apiRouter.HandleFunc("/bundles", apiHandler.SubmitBundle).Methods(http.MethodPost)
	apiRouter.HandleFunc("/events", apiHandler.EventStream).Methods(http.MethodGet)

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	} else {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseHandler(router)

	return &Server{
		cfg:            cfg,
		handler:        n,
		apiHandler:     apiHandler,
		eventStreamMgr: eventStreamMgr,
		log:            log.WithField("component", "api-server"),
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start starts the event relay and begins serving in the background.
func (s *Server) Start() {
	s.eventStreamMgr.Start()

	s.srv = &http.Server{
		Addr:              s.Addr(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		Handler:           s.handler,
	}

	s.log.WithField("addr", s.srv.Addr).Info("HTTP API listening")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP API server failed")
		}
	}()
}

// Stop disconnects event stream clients and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.eventStreamMgr.Stop()

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP API: %w", err)
	}

	return nil
}
