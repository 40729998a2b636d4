package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	"github.com/fatflowers/craftbill/internal/app/service/entitlement"
	"github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/internal/platform/db/dbtest"
	"github.com/fatflowers/craftbill/pkg/config"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/response"
	"github.com/fatflowers/craftbill/pkg/types"
)

const jwtSecret = "jwt-test-secret"

func token(t *testing.T, claims jwt.StandardClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func authEngine(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(log), AuthMiddleware(cfg, log))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"account_id": AccountID(c),
			"ctx":        c.Request.Context().Value(logctx.KeyAccountID),
			"trace":      logctx.TraceID(c.Request.Context()),
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: jwtSecret, Issuer: "craft"}}
	r := authEngine(cfg)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token(t, jwt.StandardClaims{Subject: "acct_1", Issuer: "craft", ExpiresAt: time.Now().Add(time.Hour).Unix()}, jwtSecret), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + token(t, jwt.StandardClaims{Subject: "acct_1", Issuer: "craft"}, "other"), http.StatusUnauthorized},
		{"expired", "Bearer " + token(t, jwt.StandardClaims{Subject: "acct_1", Issuer: "craft", ExpiresAt: time.Now().Add(-time.Hour).Unix()}, jwtSecret), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + token(t, jwt.StandardClaims{Subject: "acct_1", Issuer: "else"}, jwtSecret), http.StatusUnauthorized},
		{"no subject", "Bearer " + token(t, jwt.StandardClaims{Issuer: "craft"}, jwtSecret), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("X-Request-ID", "tr-1")
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
			require.Equal(t, "tr-1", w.Header().Get("X-Request-ID"))
			if tc.status == http.StatusOK {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				require.Equal(t, "acct_1", body["account_id"])
				require.Equal(t, "acct_1", body["ctx"])
				require.Equal(t, "tr-1", body["trace"])
			}
		})
	}
}

func TestAuthMiddleware_RejectsWhenUnconfigured(t *testing.T) {
	r := authEngine(&config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, jwt.StandardClaims{Subject: "acct_1"}, ""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

type gateEnv struct {
	customers *customer.Service
	subs      *subscription.Service
	engine    *gin.Engine
}

func newGateEnv(t *testing.T) *gateEnv {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	db := dbtest.New(t)
	e := &gateEnv{customers: customer.NewService(db, log), subs: subscription.NewService(db, log)}
	svc := entitlement.NewService(e.customers, e.subs, billing.NewService(db, log), nil, log)

	r := gin.New()
	withAccount := func(c *gin.Context) { c.Set(logctx.KeyAccountID, c.GetHeader("X-Account")); c.Next() }
	g := r.Group("/", withAccount, EntitlementGate(svc, log))
	g.GET("/read", func(c *gin.Context) { c.JSON(http.StatusOK, response.OKT(Decision(c))) })
	g.POST("/write", RequireUnrestricted(), func(c *gin.Context) { c.JSON(http.StatusOK, response.OKT[any](nil)) })
	e.engine = r
	return e
}

func (e *gateEnv) do(method, path, account string) (*httptest.ResponseRecorder, *response.APIResponse[*entitlement.Decision]) {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Account", account)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var body response.APIResponse[*entitlement.Decision]
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, &body
}

func TestEntitlementGate_Denials(t *testing.T) {
	e := newGateEnv(t)
	ctx := context.Background()

	w, _ := e.do(http.MethodGet, "/read", "acct_1")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), entitlement.ErrNotCustomer.Error())

	_, _, err := e.customers.EnsureLink(ctx, nil, "acct_1", "cus_1", models.ContactFields{})
	require.NoError(t, err)
	w, _ = e.do(http.MethodGet, "/read", "acct_1")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), entitlement.ErrUnconfirmed.Error())

	require.NoError(t, e.customers.MarkConfirmed(ctx, nil, "cus_1"))
	w, _ = e.do(http.MethodGet, "/read", "acct_1")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), entitlement.ErrNoSubscription.Error())
}

func TestEntitlementGate_RestrictedReadsButCannotWrite(t *testing.T) {
	e := newGateEnv(t)
	ctx := context.Background()
	_, _, err := e.customers.EnsureLink(ctx, nil, "acct_1", "cus_1", models.ContactFields{})
	require.NoError(t, err)
	require.NoError(t, e.customers.MarkConfirmed(ctx, nil, "cus_1"))

	// active flag but lapsed period: soft restriction
	_, err = e.subs.Upsert(ctx, nil, &models.Subscription{
		CustomerID: "cus_1", SubscriptionID: "sub_1", IsActive: true, Status: types.SubscriptionStatusActive,
		SubscriptionEndDate: lo.ToPtr(time.Now().Add(-time.Hour)),
	}, types.SubscriptionChangeReasonReconciled, nil)
	require.NoError(t, err)

	w, body := e.do(http.MethodGet, "/read", "acct_1")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, body.Data.Restricted)
	require.Equal(t, "cus_1", body.Data.CustomerID)

	w, _ = e.do(http.MethodPost, "/write", "acct_1")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), MsgSubscriptionRequired)

	_, err = e.subs.Upsert(ctx, nil, &models.Subscription{
		CustomerID: "cus_1", SubscriptionID: "sub_1", IsActive: true, Status: types.SubscriptionStatusActive,
		SubscriptionEndDate: lo.ToPtr(time.Now().Add(24 * time.Hour)),
	}, types.SubscriptionChangeReasonReconciled, nil)
	require.NoError(t, err)
	w, _ = e.do(http.MethodPost, "/write", "acct_1")
	require.Equal(t, http.StatusOK, w.Code)
}
