// Package middleware provides HTTP middleware for the bets API.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/lotterybets/internal/httputil"
	"github.com/R3E-Network/lotterybets/pkg/logger"
)

const (
	// UserIDHeader identifies the caller when running without a JWT secret.
	UserIDHeader = "X-User-ID"
	// UserEmailHeader carries the caller's e-mail in dev mode.
	UserEmailHeader = "X-User-Email"
)

// Claims are the JWT claims issued by the account service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

type contextKey string

const identityKey contextKey = "identity"

// AuthMiddleware validates HS256 bearer tokens. With an empty secret it trusts the
// X-User-ID and X-User-Email headers instead.
type AuthMiddleware struct {
	secret    []byte
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(secret []byte, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDiscard()
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{
		secret:    secret,
		logger:    log,
		skipPaths: skip,
	}
}

// DevMode reports whether tokens are bypassed.
func (m *AuthMiddleware) DevMode() bool {
	return len(m.secret) == 0
}

// Handler returns the auth middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		var (
			id  Identity
			err error
		)
		if m.DevMode() {
			id, err = identityFromHeaders(r)
		} else {
			id, err = m.identityFromToken(r)
		}
		if err != nil {
			m.logger.WithField("path", r.URL.Path).
				WithField("remote_addr", r.RemoteAddr).
				WithError(err).
				Warn("authentication failed")
			httputil.Unauthorized(w, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// skip matches exact paths; entries ending in "/" match whole subtrees.
func (m *AuthMiddleware) skip(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for prefix := range m.skipPaths {
		if strings.HasSuffix(prefix, "/") && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) identityFromToken(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return Identity{}, errors.New("invalid authorization header format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.New("token expired")
		}
		return Identity{}, errors.New("invalid token")
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return Identity{UserID: userID, Email: claims.Email}, nil
}

func identityFromHeaders(r *http.Request) (Identity, error) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		return Identity{}, errors.New("missing " + UserIDHeader + " header")
	}
	return Identity{
		UserID: userID,
		Email:  strings.TrimSpace(r.Header.Get(UserEmailHeader)),
	}, nil
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// GetUserID returns the authenticated user id or "".
func GetUserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// GetUserEmail returns the authenticated user's e-mail or "".
func GetUserEmail(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Email
}
