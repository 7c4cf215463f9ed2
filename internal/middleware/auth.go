// file: internal/middleware/auth.go
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coachhub/internal/config"
	"coachhub/internal/contextutils"
	"coachhub/internal/response"
	"coachhub/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Claims is the bearer token payload issued by the coaching platform
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// AuthContext holds authentication context for requests
type AuthContext struct {
	Subject    string    `json:"subject"`
	Roles      []string  `json:"roles"`
	AuthMethod string    `json:"auth_method"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// HasAnyRole reports whether the caller holds at least one of roles
func (a *AuthContext) HasAnyRole(roles []string) bool {
	return slices.ContainsFunc(a.Roles, func(r string) bool {
		return slices.Contains(roles, r)
	})
}

// AuthMiddleware validates HS256 bearer tokens on the trigger endpoints.
// Token issuance belongs to the platform's identity service.
type AuthMiddleware struct {
	config *config.AuthConfig
	logger *zap.Logger
	parser *jwt.Parser
}

// NewAuthMiddleware creates the bearer token middleware
func NewAuthMiddleware(cfg *config.AuthConfig, logger *zap.Logger) *AuthMiddleware {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	return &AuthMiddleware{
		config: cfg,
		logger: logger,
		parser: jwt.NewParser(opts...),
	}
}

// RequireCoach admits callers holding one of the configured coach roles
func (am *AuthMiddleware) RequireCoach() func(http.Handler) http.Handler {
	return am.RequireRole(am.config.CoachRoles...)
}

// RequireAdmin admits callers holding one of the configured admin roles
func (am *AuthMiddleware) RequireAdmin() func(http.Handler) http.Handler {
	return am.RequireRole(am.config.AdminRoles...)
}

// RequireRole rejects requests without a valid token (401) or whose token
// carries none of roles (403)
func (am *AuthMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if am.config.DisableAuth {
				authCtx := &AuthContext{Subject: "anonymous", Roles: roles, AuthMethod: "disabled"}
				next.ServeHTTP(w, r.WithContext(withAuthContext(r.Context(), authCtx)))
				return
			}

			authCtx, err := am.authenticate(r)
			if err != nil {
				GetRequestLogger(r.Context()).Debug("Authentication failed", zap.Error(err))
				w.Header().Set("WWW-Authenticate", `Bearer realm="coachhub"`)
				response.QuickError(w, r, services.NewUnauthorizedError("a valid bearer token is required"))
				return
			}

			if !authCtx.HasAnyRole(roles) {
				GetRequestLogger(r.Context()).Warn("Insufficient role",
					zap.String("subject", authCtx.Subject),
					zap.Strings("roles", authCtx.Roles),
					zap.Strings("required", roles),
				)
				response.QuickError(w, r, services.NewForbiddenError("insufficient role for this operation"))
				return
			}

			next.ServeHTTP(w, r.WithContext(withAuthContext(r.Context(), authCtx)))
		})
	}
}

func (am *AuthMiddleware) authenticate(r *http.Request) (*AuthContext, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("no authorization header")
	}

	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	claims := &Claims{}
	_, err := am.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(am.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	authCtx := &AuthContext{
		Subject:    claims.Subject,
		Roles:      claims.Roles,
		AuthMethod: "jwt",
	}
	if claims.ExpiresAt != nil {
		authCtx.ExpiresAt = claims.ExpiresAt.Time
	}
	return authCtx, nil
}

// ===============================
// CONTEXT HELPERS
// ===============================

type contextKey string

// AuthContextKey is the context key for the caller's AuthContext
const AuthContextKey contextKey = "auth_context"

func withAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	ctx = context.WithValue(ctx, AuthContextKey, authCtx)
	return contextutils.WithActor(ctx, authCtx.Subject)
}

// GetAuthContext extracts auth context from request context
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}
