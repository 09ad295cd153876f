package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"momolearn-backend/internal/services"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// TokenAuthenticator resolves an opaque session token to its user.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

// SessionAuth guards the /users/{userId} subtree: the bearer token must
// belong to the user named in the path.
type SessionAuth struct {
	auth TokenAuthenticator
	log  *zap.Logger
}

func NewSessionAuth(auth TokenAuthenticator, log *zap.Logger) *SessionAuth {
	return &SessionAuth{auth: auth, log: log.Named("auth")}
}

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware validates the session and attaches user_id to context.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Preflight requests carry no credentials
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("Authorization") == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}
		token, ok := BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		userID, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			var uerr *services.UnauthorizedError
			if errors.As(err, &uerr) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", uerr.Message, r)
				return
			}
			a.log.Error("session lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", r)
			return
		}

		if raw := chi.URLParam(r, "userId"); raw != "" {
			pathID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid user ID", r)
				return
			}
			if pathID != userID {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Token does not belong to this user", r)
				return
			}
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts user_id from request context
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
