package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mw "github.com/fatflowers/craftbill/internal/app/api/middleware"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	"github.com/fatflowers/craftbill/internal/app/service/entitlement"
	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/internal/platform/db/dbtest"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/response"
)

func TestRegisterRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r)
	RegisterWebhookRoutes(r, nil, nil)
	RegisterCustomerRoutes(r.Group("/api/v1"), nil)
	RegisterAdminRoutes(r.Group("/api/v1/admin"), AdminServices{})

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	for _, want := range []string{
		"GET /healthz",
		"POST /",
		"GET /api/v1/entitlement",
		"PUT /api/v1/customer/profile",
		"POST /api/v1/orders/check",
		"DELETE /api/v1/admin/accounts/:account_id",
		"POST /api/v1/admin/reconcile/:subscription_id",
		"POST /api/v1/admin/invoices/list",
		"POST /api/v1/admin/get_subscription_statistic",
		"GET /api/v1/admin/customers/:account_id/failed_transactions",
		"GET /api/v1/admin/webhooks/:event_id/deliveries",
	} {
		require.True(t, contains(want), want)
	}
}

// withDecision stands in for AuthMiddleware and EntitlementGate.
func withDecision(accountID string, restricted bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(logctx.KeyAccountID, accountID)
		c.Set(mw.KeyEntitlement, &entitlement.Decision{AccountID: accountID, CustomerID: "cus_1", Restricted: restricted})
		c.Next()
	}
}

func TestApiCheckOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, restricted := range []bool{false, true} {
		r := gin.New()
		r.POST("/orders/check", withDecision("acct_1", restricted), ApiCheckOrder)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/check", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body response.APIResponse[CheckOrderResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, !restricted, body.Data.Allowed)
	}
}

func TestApiUpdateProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := customer.NewService(dbtest.New(t), zap.NewNop().Sugar())
	_, _, err := svc.EnsureLink(context.Background(), nil, "acct_1", "cus_1", models.ContactFields{Email: "old@example.com"})
	require.NoError(t, err)

	put := func(restricted bool, body string) *httptest.ResponseRecorder {
		r := gin.New()
		g := r.Group("/", withDecision("acct_1", restricted))
		RegisterCustomerRoutes(g, svc)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/customer/profile", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := put(true, `{"name":"Maker"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = put(false, `{"email":"not-an-email"}`)
	var bad response.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bad))
	require.Equal(t, response.APIResponseCodeBadRequest, bad.Code)

	w = put(false, `{"name":"Maker"}`)
	var ok response.APIResponse[models.Customer]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	require.Equal(t, response.APIResponseCodeOK, ok.Code)
	require.Equal(t, "Maker", ok.Data.Name)
	require.Equal(t, "old@example.com", ok.Data.Email)
}
