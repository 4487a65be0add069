// Package server provides HTTP server initialization and lifecycle
// management for the memory service's REST API and WebSocket stream.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prosperitypirate/opencode-memory/internal/config"
	"github.com/prosperitypirate/opencode-memory/internal/engine"
	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server. Returns the actual address
// being listened on (useful for testing with port 0) and the WebSocketHub
// so callers can observe or stop it directly.
func Start(ctx context.Context, cfg *config.Config, store storage.Store, eng *engine.Engine, wsHub *handlers.WebSocketHub) (string, *handlers.WebSocketHub) {
	mux := http.NewServeMux()

	rateLimiter := handlers.NewRateLimiter(10.0, 20)
	apiHandlers := handlers.NewAPIHandlers(eng, cfg, wsHub)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/memories", apiHandlers.Memories)
	apiMux.HandleFunc("/memories/search", apiHandlers.Search)
	apiMux.HandleFunc("/memories/{memory_id}", apiHandlers.DeleteMemory)

	// Health is unauthenticated: it is the probe operators use to decide
	// whether the service is ready to take authenticated traffic at all.
	mux.HandleFunc("/system/health", apiHandlers.Health)

	mux.Handle("/memories", handlers.RequireAuth(apiMux, cfg))
	mux.Handle("/memories/", handlers.RequireAuth(apiMux, cfg))

	// The lifecycle stream shares origin validation with the rest of the
	// WebSocket hub; no bearer auth since the browser client can't set
	// custom headers on the upgrade request.
	mux.Handle("/memories/stream", wsHub)

	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub
}
