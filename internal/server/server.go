// Package server exposes the generation service over HTTP: outline
// drafting, persistence, full-content completion, per-section rewrites,
// and the billing endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"scriptloom/internal/billing"
	"scriptloom/internal/storage"
	"scriptloom/internal/writer"
)

// Server owns the HTTP listener and the background completion workers.
type Server struct {
	store    storage.Store
	writer   writer.Writer
	webhook  http.Handler
	checkout *billing.CheckoutClient

	httpServer *http.Server
	listener   net.Listener
	background sync.WaitGroup
}

// NewServer wires the service's dependencies into a server listening on
// addr. checkout may be nil when billing is not configured; the checkout
// endpoint then reports unavailable.
func NewServer(addr string, store storage.Store, w writer.Writer, webhookSecret string, checkout *billing.CheckoutClient) *Server {
	s := &Server{
		store:    store,
		writer:   w,
		checkout: checkout,
	}
	if webhookSecret != "" {
		s.webhook = billing.NewWebhookHandler(store, webhookSecret)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /outline/generate", s.handleGenerateOutline)
	mux.HandleFunc("POST /outline/save", s.handleSaveOutline)
	mux.HandleFunc("GET /outline/{id}", s.handleGetOutline)
	mux.HandleFunc("GET /outline/{id}/sections", s.handleListSections)
	mux.HandleFunc("POST /outline/complete", s.handleCompleteOutline)
	mux.HandleFunc("POST /outline/section/content", s.handleSectionContent)
	mux.HandleFunc("POST /billing/checkout", s.handleCheckout)
	mux.HandleFunc("POST /billing/webhook", s.handleWebhook)
	mux.HandleFunc("GET /billing/entitlements/{userID}/{priceID}", s.handleEntitlement)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. It returns once the listener is bound, so Addr
// is valid afterwards; serving continues in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully and waits for in-flight background
// completion work, up to ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// Handler exposes the routing mux, for tests that drive the server
// through httptest instead of a real listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
