// Package server is the HTTP harness: it binds the WAF port, builds the
// gate/proxy/admin graph from config, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/admin"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/config"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/eventlog"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/gate"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/proxy"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/runtime"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/ssrf"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/state"
)

// sweepInterval mirrors the recommendation in the design notes: sweep
// dead per-IP entries roughly as often as the rate-limit window turns over.
const sweepInterval = 60 * time.Second

// WAF bundles the long-lived components the harness owns: the state
// store (for flush-on-shutdown) and the bound http.Server.
type WAF struct {
	httpServer *http.Server
	store      *state.Store
}

// Build constructs the full request-handling graph from cfg and
// configPath (used by the admin config endpoints for persistence).
func Build(cfg *config.Config, configPath string) *WAF {
	store := state.New(
		cfg.BannedIPsPath,
		cfg.MaxRequests,
		time.Duration(cfg.TimeWindowSeconds)*time.Second,
		cfg.MaxViolations,
		time.Duration(cfg.ViolationWindowSeconds)*time.Second,
	)
	store.Load()

	sink := eventlog.New(cfg.LogPath)
	resolver := ssrf.New()
	p := proxy.New(cfg.BackendURL)
	cfgHolder := runtime.NewConfigHolder(cfg)

	onUpdate := func(next *config.Config) {
		store.UpdateLimits(
			next.MaxRequests,
			time.Duration(next.TimeWindowSeconds)*time.Second,
			next.MaxViolations,
			time.Duration(next.ViolationWindowSeconds)*time.Second,
		)
		p.BackendURL = next.BackendURL
	}

	adminSurface := admin.New(store, sink, cfgHolder, configPath, onUpdate)
	g := gate.New(store, resolver, sink, p, adminSurface, cfgHolder)

	sweepDone := make(chan struct{})
	store.RunSweeper(sweepDone, sweepInterval)

	mux := http.NewServeMux()
	mux.Handle("/", g)

	return &WAF{
		httpServer: &http.Server{
			Addr:    cfg.WAFPort,
			Handler: mux,
		},
		store: store,
	}
}

// Run binds and serves until ctx is cancelled, then drains in-flight
// requests and flushes the banned set before returning.
func (w *WAF) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("WAF listening on %s", w.httpServer.Addr)
		if err := w.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := w.store.Save(); err != nil {
		log.Printf("failed to flush banned set: %v", err)
	}
	return nil
}
