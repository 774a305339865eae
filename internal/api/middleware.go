package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fra-engine/internal/common/auth"
	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
)

const principalKey = "principal"

// Authenticator resolves a bearer token to a caller.
type Authenticator interface {
	Verify(ctx context.Context, token string) (*auth.Principal, error)
}

// RequireAuth rejects requests without a verifiable bearer token.
func (h *Handler) RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			h.fail(c, "", apperrors.NewUnauthenticatedError("missing bearer token"))
			return
		}

		p, err := a.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			h.fail(c, "", err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// PrincipalFrom returns the caller stored by RequireAuth.
func PrincipalFrom(c *gin.Context) *auth.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}

// RequestLogger logs each request once it completes.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	log = logger.Component(log, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if p := PrincipalFrom(c); p != nil {
			fields["sub"] = p.Subject
		}
		if c.Writer.Status() >= 500 {
			log.Warn("Request completed with server error", fields)
			return
		}
		log.Debug("Request completed", fields)
	}
}
