package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/internal/app/service/webhook"
	"github.com/fatflowers/craftbill/pkg/logctx"
	"github.com/fatflowers/craftbill/pkg/response"
)

// maxWebhookBody caps a delivery; Stripe events are far smaller.
const maxWebhookBody = 1 << 20

// @Summary      Stripe Webhook
// @Description  Receives Stripe event deliveries. The raw body is verified against the Stripe-Signature header. 200 means accepted or duplicate; any non-2xx makes Stripe redeliver.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Stripe signature header"
// @Param        payload body object true "Stripe event"
// @Success      200  {object}  handlers.RespWebhookOutcome
// @Failure      400  {object}  handlers.RespOK
// @Failure      500  {object}  handlers.RespOK
// @Router       / [post]
// ApiStripeWebhook handles Stripe webhook deliveries
func ApiStripeWebhook(ing *webhook.Ingestor, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			log.Warnw("webhook_body_rejected", "error", err.Error())
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}

		out, err := ing.Ingest(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		switch {
		case errors.Is(err, webhook.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid signature"))
		case err != nil:
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
		default:
			c.JSON(http.StatusOK, response.OKT(out))
		}
	}
}

func RegisterWebhookRoutes(r gin.IRouter, ing *webhook.Ingestor, log *zap.SugaredLogger) {
	r.POST("/", ApiStripeWebhook(ing, log))
}
