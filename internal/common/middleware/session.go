package middleware

import (
	"strings"

	"github.com/ahwlsqja/chainauth/internal/common/errors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SessionIdentityKey is the gin context key for the primary session subject
const SessionIdentityKey = "session_identity"

// SessionConfig configures validation of primary-factor session tokens
type SessionConfig struct {
	Secret string
	Issuer string
}

// PrimarySession requires an HS256 bearer token issued by the primary login
// and stores its subject as the session identity.
func PrimarySession(cfg SessionConfig, logger *zap.Logger) gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(cfg.Secret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			RespondError(c, errors.Unauthorized("Primary session token is required"))
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || claims.Subject == "" {
			logger.Debug("primary session rejected",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			RespondError(c, errors.Unauthorized("Primary session token is invalid or expired"))
			return
		}

		c.Set(SessionIdentityKey, claims.Subject)
		c.Next()
	}
}

// SessionIdentity returns the primary session subject when a session was validated
func SessionIdentity(c *gin.Context) (string, bool) {
	id := c.GetString(SessionIdentityKey)
	return id, id != ""
}
