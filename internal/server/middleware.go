package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/config"
	"github.com/authz-engine/pep-core/pkg/types"
)

const securityContextKey = "security_context"

// AuthMiddleware verifies the bearer token and attaches a SecurityContext to
// the request. Verification here only establishes identity; every
// authorization decision still goes through the PDP. With no configured
// secret the middleware runs requests as anonymous, which is only useful in
// development against a permissive PDP.
func AuthMiddleware(cfg config.AuthConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" || cfg.JWTSecret == "" {
			c.Set(securityContextKey, types.Anonymous())
			c.Next()
			return
		}

		sec, err := parseToken(raw, cfg)
		if err != nil {
			logger.Warn("Rejected bearer token",
				zap.String("remote_addr", c.ClientIP()),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(securityContextKey, sec.WithBearerToken(raw))
		c.Next()
	}
}

// SecurityContextFrom extracts the authenticated context set by
// AuthMiddleware, defaulting to anonymous.
func SecurityContextFrom(c *gin.Context) types.SecurityContext {
	if v, ok := c.Get(securityContextKey); ok {
		if sec, ok := v.(types.SecurityContext); ok {
			return sec
		}
	}
	return types.Anonymous()
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func parseToken(raw string, cfg config.AuthConfig) (types.SecurityContext, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return types.SecurityContext{}, err
	}

	sec := types.SecurityContext{SubjectType: "user"}

	if sub, err := claims.GetSubject(); err == nil {
		if id, err := uuid.Parse(sub); err == nil {
			sec.SubjectID = id
		}
	}
	if raw, ok := claims["tenant_id"].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			sec.SubjectTenantID = id
		}
	}
	if raw, ok := claims["subject_type"].(string); ok {
		sec.SubjectType = raw
	}
	if raw, ok := claims["scope"].(string); ok && raw != "" {
		sec.TokenScopes = strings.Fields(raw)
	}

	return sec, nil
}
