package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/unearthedapp/unearthed-server/internal/auth"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/http/response"
)

type contextKey string

const callerContextKey contextKey = "caller"

// callerFromContext returns the authenticated caller set by requireUser
// or requireCron.
func callerFromContext(ctx context.Context) (domain.Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(domain.Caller)
	return caller, ok
}

// userCaller extracts the authenticated user from the request context,
// writing a 401 when absent.
func (s *Server) userCaller(w http.ResponseWriter, r *http.Request) (domain.Caller, bool) {
	caller, ok := callerFromContext(r.Context())
	if !ok || !caller.IsUser() {
		response.Unauthorized(w, "Authentication required", s.logger)
		return domain.Caller{}, false
	}
	return caller, true
}

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireUser authenticates the request as a user. Compound API
// credentials carry a separator that access tokens never contain, so
// the credential shape picks the resolution path.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			response.Unauthorized(w, "Missing or invalid authorization header", s.logger)
			return
		}

		var (
			caller domain.Caller
			err    error
		)
		if strings.Contains(token, auth.CompoundSeparator) {
			caller, err = s.services.Auth.ResolveAPIKey(r.Context(), token)
		} else {
			caller, err = s.services.Auth.ResolveAccessToken(r.Context(), token)
		}
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireCron guards webhook and scheduled-job endpoints with the
// shared cron secret.
func (s *Server) requireCron(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			response.Unauthorized(w, "Missing or invalid authorization header", s.logger)
			return
		}

		caller, err := s.services.Auth.ResolveCronSecret(token)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimitByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.Allow(r.RemoteAddr) {
			response.TooManyRequests(w, "Too many requests, slow down", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
