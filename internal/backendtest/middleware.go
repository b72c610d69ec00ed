package backendtest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "userID"

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Debug("backend request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != s.AnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "Invalid API key",
				"hint":    "Double check your Supabase `anon` or `service_role` API key.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// track counts the request and serves any queued fault for route.
func (s *Server) track(route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.calls[route]++
			var f *fault
			if q := s.faults[route]; len(q) > 0 {
				f = &q[0]
				s.faults[route] = q[1:]
			}
			s.mu.Unlock()

			if f != nil {
				if strings.HasPrefix(r.URL.Path, "/auth/") {
					writeAuthError(w, f.status, "injected", f.message)
				} else {
					writeRestError(w, f.status, "PGRST000", f.message)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireJWT admits table requests that carry a valid access token and
// records the caller's id for the row policy.
func (s *Server) requireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.verify(bearerToken(r))
		if err != nil {
			msg := "JWT expired"
			if !strings.Contains(err.Error(), "expired") {
				msg = "JWSError (CompactDecodeError Invalid number of parts: Expected 3 parts; got 1)"
			}
			writeRestError(w, http.StatusUnauthorized, "PGRST301", msg)
			return
		}
		uid, err := uuid.Parse(claims.Subject)
		if err != nil {
			writeRestError(w, http.StatusUnauthorized, "PGRST301", "JWT subject is not a uuid")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, uid)))
	})
}

func callerID(r *http.Request) uuid.UUID {
	uid, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return uid
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "error_code": code, "msg": msg})
}

func writeOAuthError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": desc})
}

func writeRestError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": code, "message": msg, "details": nil, "hint": nil})
}
