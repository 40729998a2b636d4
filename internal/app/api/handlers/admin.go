package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/craftbill/internal/app/service/account"
	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/customer"
	deliverylog "github.com/fatflowers/craftbill/internal/app/service/delivery_log"
	"github.com/fatflowers/craftbill/internal/app/service/reconcile"
	"github.com/fatflowers/craftbill/internal/app/service/statistics"
	subsvc "github.com/fatflowers/craftbill/internal/app/service/subscription"
	"github.com/fatflowers/craftbill/pkg/response"
	"github.com/fatflowers/craftbill/pkg/types"
)

type ListInvoicesRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// @Summary      Delete Account (Admin)
// @Description  Deletes an account from the identity provider, Stripe and the local store. Remote failures are reported per step.
// @Tags         Admin
// @Produce      json
// @Param        account_id path string true "Internal account id"
// @Success      200  {object}  handlers.RespDeleteAccount
// @Router       /api/v1/admin/accounts/{account_id} [delete]
func ApiDeleteAccount(svc *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.Delete(c.Request.Context(), c.Param("account_id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

// @Summary      Reconcile Subscription (Admin)
// @Description  Re-fetches a subscription from Stripe and overwrites the local row.
// @Tags         Admin
// @Produce      json
// @Param        subscription_id path string true "Stripe subscription id"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/reconcile/{subscription_id} [post]
func ApiReconcileSubscription(rec *reconcile.Service, sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := rec.Reconcile(c.Request.Context(), c.Param("subscription_id"))
		if errors.Is(err, reconcile.ErrSubscriptionNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		row, err := sub.Upsert(c.Request.Context(), nil, res.ToModel(res.Label()), types.SubscriptionChangeReasonReconciled, map[string]any{"source": "admin"})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(row))
	}
}

// @Summary      List Invoices (Admin)
// @Description  Retrieves a paginated and filterable list of invoices.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListInvoicesRequest true "List invoice request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListInvoices
// @Router       /api/v1/admin/invoices/list [post]
func ApiListInvoices(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListInvoicesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanInvoices(c.Request.Context(), &billing.ScanInvoicesRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Subscription Statistics (Admin)
// @Description  Retrieves subscription, invoice and failed payment statistics.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.SubscriptionStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespSubscriptionStatistic
// @Router       /api/v1/admin/get_subscription_statistic [post]
func ApiGetSubscriptionStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.SubscriptionStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetSubscriptionStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Failed Transactions (Admin)
// @Description  Returns the failed payment audit trail of an account.
// @Tags         Admin
// @Produce      json
// @Param        account_id path string true "Internal account id"
// @Success      200  {object}  handlers.RespFailedTransactions
// @Router       /api/v1/admin/customers/{account_id}/failed_transactions [get]
func ApiListFailedTransactions(links *customer.Service, bill *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := links.GetByAccountID(c.Request.Context(), c.Param("account_id"))
		if errors.Is(err, customer.ErrNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		rows, err := bill.ListFailedTransactions(c.Request.Context(), link.CustomerID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      List Webhook Deliveries (Admin)
// @Description  Returns every recorded delivery attempt of one Stripe event, oldest first.
// @Tags         Admin
// @Produce      json
// @Param        event_id path string true "Stripe event id"
// @Success      200  {object}  handlers.RespDeliveryLogs
// @Router       /api/v1/admin/webhooks/{event_id}/deliveries [get]
func ApiListWebhookDeliveries(svc *deliverylog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListByEvent(c.Request.Context(), c.Param("event_id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

type AdminServices struct {
	Accounts   *account.Service
	Reconciler *reconcile.Service
	Subs       *subsvc.Service
	Billing    *billing.Service
	Customers  *customer.Service
	Stats      *statistics.Service
	Deliveries *deliverylog.Service
}

func RegisterAdminRoutes(r gin.IRouter, s AdminServices) {
	r.DELETE("/accounts/:account_id", ApiDeleteAccount(s.Accounts))
	r.POST("/reconcile/:subscription_id", ApiReconcileSubscription(s.Reconciler, s.Subs))
	r.POST("/invoices/list", ApiListInvoices(s.Billing))
	r.POST("/get_subscription_statistic", ApiGetSubscriptionStatistic(s.Stats))
	r.GET("/customers/:account_id/failed_transactions", ApiListFailedTransactions(s.Customers, s.Billing))
	r.GET("/webhooks/:event_id/deliveries", ApiListWebhookDeliveries(s.Deliveries))
}
