package fleet_api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

type ctxKey struct{}

func withActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// actorFrom returns the zero Actor for unauthenticated requests.
func actorFrom(ctx context.Context) models.Actor {
	a, _ := ctx.Value(ctxKey{}).(models.Actor)
	return a
}

// authenticate expects "Authorization: Bearer <jwt>".
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeErrorCode(w, http.StatusUnauthorized, codeUnauthenticated, "bearer token required")
			return
		}
		actor, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			writeErrorCode(w, http.StatusUnauthorized, codeUnauthenticated, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

// rateLimitByActor is a per-minute fixed window shared through redis.
// A limiter outage lets the request through.
func (s *Server) rateLimitByActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.rateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		actor := actorFrom(r.Context())
		key := fmt.Sprintf("rl:actor:%d:%s", actor.ID, time.Now().UTC().Format("200601021504"))
		allowed, n, err := s.limiter.Allow(r.Context(), key, s.rateLimit, 70*time.Second)
		if err != nil {
			s.log.WarnContext(r.Context(), "rate limiter unavailable", "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", "60")
			writeErrorCode(w, http.StatusTooManyRequests, codeRateLimited,
				fmt.Sprintf("rate limit of %d requests per minute exceeded (%d)", s.rateLimit, n))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// newSlogLogger logs one line per request. Wire it after
// chimiddleware.RequestID so the request id is available.
func newSlogLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}

func newCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "If-Match"},
		ExposedHeaders: []string{"ETag", "Retry-After"},
	})
	return c.Handler
}

func maxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeErrorCode(w, http.StatusRequestEntityTooLarge, codeValidation, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
