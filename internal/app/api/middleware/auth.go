package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/pkg/config"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/response"
)

var errMissingToken = errors.New("missing bearer token")

// AuthMiddleware authenticates "Authorization: Bearer <jwt>" (HS256). The
// token subject is the internal account id; it is attached to gin.Context, the
// request context and the request logger under "account_id".
func AuthMiddleware(cfg *config.Config, base *zap.SugaredLogger) gin.HandlerFunc {
	secret := []byte(cfg.Auth.JWTSecret)
	issuer := cfg.Auth.Issuer
	return func(c *gin.Context) {
		accountID, err := authenticate(c.GetHeader("Authorization"), secret, issuer)
		if err != nil {
			logctx.FromGin(c, base).Infow("auth_rejected", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, err.Error()))
			return
		}

		c.Set(logctx.KeyAccountID, accountID)
		ctx := context.WithValue(c.Request.Context(), logctx.KeyAccountID, accountID)
		c.Request = c.Request.WithContext(ctx)
		setLogger(c, logctx.FromGin(c, base).With("account_id", accountID))

		c.Next()
	}
}

func authenticate(header string, secret []byte, issuer string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}
	if len(secret) == 0 {
		return "", errors.New("authentication is not configured")
	}

	var claims jwt.StandardClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if issuer != "" && !claims.VerifyIssuer(issuer, true) {
		return "", errors.New("invalid token issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// AccountID returns the authenticated account id, or "" outside AuthMiddleware.
func AccountID(c *gin.Context) string {
	return c.GetString(logctx.KeyAccountID)
}
