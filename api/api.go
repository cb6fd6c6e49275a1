// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/certchain/chain"
	"github.com/blinklabs-io/certchain/reconstruct"
	"github.com/blinklabs-io/certchain/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultListenAddress  = ":8080"
	DefaultRequestTimeout = 30 * time.Second
)

type Config struct {
	ListenAddress  string
	RequestTimeout time.Duration
	// JWTSecret enables the mutating routes. Without it they always
	// answer 401.
	JWTSecret string
	JWTIssuer string
	// MaxInFlightPerIP limits concurrent mutating requests per client
	// address. Zero disables the limit.
	MaxInFlightPerIP int
}

// API is the JSON HTTP server for the registry
type API struct {
	config       Config
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	metrics      *apiMetrics
	registry     *registry.Registry
	recon        *reconstruct.Reconstructor
	ledger       chain.Ledger
	identity     *Identity
	limiter      *ipLimiter
	httpServer   *http.Server
	listener     net.Listener
	mu           sync.Mutex
}

func New(
	cfg Config,
	reg *registry.Registry,
	recon *reconstruct.Reconstructor,
	ledger chain.Ledger,
	opts ...APIOptionFunc,
) *API {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	a := &API{
		config:   cfg,
		registry: reg,
		recon:    recon,
		ledger:   ledger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	a.logger = a.logger.With("component", "api")
	if cfg.JWTSecret != "" {
		a.identity = NewIdentity(cfg.JWTSecret, cfg.JWTIssuer)
	}
	if cfg.MaxInFlightPerIP > 0 {
		a.limiter = newIPLimiter(cfg.MaxInFlightPerIP)
	}
	if a.promRegistry != nil {
		a.initMetrics(a.promRegistry)
	}
	return a
}

// Identity returns the token issuer, or nil when authentication is disabled
func (a *API) Identity() *Identity {
	return a.identity
}

// Handler returns the routed HTTP handler
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.config.RequestTimeout))
	r.Use(a.instrument)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found", "the requested route does not exist")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "method not allowed for this route")
	})

	r.Get("/", a.handleRoot)
	r.Get("/health", a.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/owner", a.handleOwner)
		r.Get("/tip", a.handleTip)
		r.Get("/history", a.handleHistory)
		r.Get("/students/{studentID}/certificates", a.handleStudentCertificates)
		r.Get("/certificates/{hash}", a.handleVerify)
		r.Get("/certificates/{hash}/events", a.handleLookup)
		r.Group(func(r chi.Router) {
			r.Use(a.limitPerIP)
			r.Use(a.requireCaller)
			r.Post("/certificates", a.handleIssue)
			r.Post("/certificates/{hash}/revoke", a.handleRevoke)
		})
	})
	return r
}

// Start starts the HTTP server in a background goroutine
func (a *API) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	// Bind first so port conflicts are reported to the caller
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	a.httpServer = server
	a.listener = ln
	a.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("API server error", "error", err)
		}
	}()
	a.logger.Info("API listener started on " + ln.Addr().String())

	go func() {
		<-ctx.Done()
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			30*time.Second,
		)
		defer cancel()
		//nolint:contextcheck
		if err := a.Stop(shutdownCtx); err != nil {
			a.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// Addr returns the bound listen address, or nil when not started
func (a *API) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Stop gracefully shuts down the HTTP server
func (a *API) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.listener = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	a.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}
