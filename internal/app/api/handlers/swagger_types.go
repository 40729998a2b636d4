package handlers

import (
	"github.com/fatflowers/craftbill/internal/app/service/account"
	"github.com/fatflowers/craftbill/internal/app/service/billing"
	"github.com/fatflowers/craftbill/internal/app/service/entitlement"
	"github.com/fatflowers/craftbill/internal/app/service/statistics"
	"github.com/fatflowers/craftbill/internal/app/service/webhook"
	"github.com/fatflowers/craftbill/internal/models"
	"github.com/fatflowers/craftbill/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespWebhookOutcome struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    webhook.Outcome          `json:"data"`
}

type RespEntitlement struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    entitlement.Decision     `json:"data"`
}

type RespCustomer struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Customer          `json:"data"`
}

type RespCheckOrder struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    CheckOrderResponse       `json:"data"`
}

type RespDeleteAccount struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    account.Report           `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

// RespListInvoices wraps ScanInvoicesResponse in the standard envelope.
type RespListInvoices struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    billing.ScanInvoicesResponse `json:"data"`
}

// RespSubscriptionStatistic wraps SubscriptionStatisticResponse in the standard envelope.
type RespSubscriptionStatistic struct {
	Code    response.APIResponseCode                 `json:"code"`
	Message string                                   `json:"message"`
	Data    statistics.SubscriptionStatisticResponse `json:"data"`
}

type RespFailedTransactions struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    []*models.FailedTransaction `json:"data"`
}

type RespDeliveryLogs struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    []*models.WebhookDeliveryLog `json:"data"`
}
