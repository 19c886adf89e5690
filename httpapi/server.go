// Package httpapi exposes the engine facade's query and subscription
// operations to a host over HTTP, plus a WebSocket upgrade path for live
// subscriptions.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/embertrace/engine/engine"
)

// maxQueryLimit caps the limit a caller may request per query.
const maxQueryLimit = 10000

// maxLoggedBodyBytes caps request body logging to avoid large allocations.
const maxLoggedBodyBytes = 64 * 1024

// Server serves the query HTTP API.
type Server struct {
	engine *engine.Engine
	logger *zap.Logger
	router chi.Router
}

// New builds a Server with routes registered.
func New(eng *engine.Engine, logger *zap.Logger) *Server {
	s := &Server{engine: eng, logger: logger}

	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)

	r.Get("/instances", s.handleQueryInstances)
	r.Get("/spans", s.handleQuerySpans)
	r.Get("/events", s.handleQueryEvents)
	r.Get("/events/count", s.handleQueryEventCount)
	r.Get("/stats", s.handleQueryStats)
	r.Get("/subscribe/events", s.handleSubscribeEvents)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// clampLimit caps limit at maxQueryLimit. 0 is returned as-is — an explicit
// limit=0 means "return nothing" and must not be confused with "absent".
// Only a negative limit, which no caller can have meant deliberately, falls
// back to defaultLimit.
func clampLimit(limit, defaultLimit int) int {
	if limit < 0 {
		return defaultLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, err error, status int) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Warn(msg, zap.Error(err))
	}
	http.Error(w, msg, status)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var bodyStr string
		if r.Method == http.MethodPost && r.Body != nil && s.logger.Core().Enabled(zap.DebugLevel) {
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBodyBytes+1))
			if err == nil {
				bodyStr = string(bodyBytes)
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
		if bodyStr != "" {
			s.logger.Debug("http request body", zap.String("path", r.URL.Path), zap.String("body", bodyStr))
		}
	})
}

// ListenAndServe serves the API at addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http api listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
