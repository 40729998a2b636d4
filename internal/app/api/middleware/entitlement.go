package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/internal/app/service/entitlement"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/response"
)

const KeyEntitlement = "entitlement"

// MsgSubscriptionRequired is the 403 message of RequireUnrestricted.
const MsgSubscriptionRequired = "subscription required"

// EntitlementGate evaluates the authenticated account and either rejects the
// request with 403 or attaches the decision for downstream handlers. It must
// run after AuthMiddleware.
func EntitlementGate(svc *entitlement.Service, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := svc.Evaluate(c.Request.Context(), AccountID(c))
		if err != nil {
			if entitlement.IsDenial(err) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeForbidden, err.Error()))
				return
			}
			logctx.FromGin(c, base).Errorw("entitlement_gate_error", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, "entitlement unavailable"))
			return
		}
		c.Set(KeyEntitlement, d)
		c.Next()
	}
}

// RequireUnrestricted blocks mutations for restricted accounts. Reads stay
// open; mount it only on mutating routes.
func RequireUnrestricted() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := Decision(c)
		if d == nil || d.Restricted {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeForbidden, MsgSubscriptionRequired))
			return
		}
		c.Next()
	}
}

// Decision returns the decision attached by EntitlementGate.
func Decision(c *gin.Context) *entitlement.Decision {
	v, ok := c.Get(KeyEntitlement)
	if !ok {
		return nil
	}
	d, _ := v.(*entitlement.Decision)
	return d
}
