package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/craftbill/pkg/config"
)

var (
	ErrNotConfigured = errors.New("stripe secret key is not configured")
	ErrNotFound      = errors.New("stripe resource not found")
)

// Client wraps the per-resource stripe clients with one explicitly configured
// backend and key. Nothing here touches stripe.Key.
type Client struct {
	key           string
	subscriptions subscription.Client
	customers     customer.Client
	log           *zap.SugaredLogger
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger) *Client {
	key := strings.TrimSpace(cfg.Stripe.SecretKey)
	backend := stripelib.GetBackend(stripelib.APIBackend)
	if key == "" {
		log.Warnw("stripe secret key empty; reconciliation and customer deletion will fail")
	}
	return &Client{
		key:           key,
		subscriptions: subscription.Client{B: backend, Key: key},
		customers:     customer.Client{B: backend, Key: key},
		log:           log,
	}
}

// RetrieveSubscription fetches the live subscription object.
func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripelib.Subscription, error) {
	if c.key == "" {
		return nil, ErrNotConfigured
	}
	params := &stripelib.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, wrapError(err)
	}
	return sub, nil
}

// DeleteCustomer deletes the customer on the provider. A customer that is
// already gone counts as deleted.
func (c *Client) DeleteCustomer(ctx context.Context, customerID string) error {
	if c.key == "" {
		return ErrNotConfigured
	}
	params := &stripelib.CustomerParams{}
	params.Context = ctx
	if _, err := c.customers.Del(customerID, params); err != nil {
		err = wrapError(err)
		if errors.Is(err, ErrNotFound) {
			c.log.Infow("stripe customer already deleted", "customer_id", customerID)
			return nil
		}
		return err
	}
	return nil
}

func wrapError(err error) error {
	var se *stripelib.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode == http.StatusNotFound || se.Code == stripelib.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %s", ErrNotFound, se.Msg)
		}
		return fmt.Errorf("stripe api error (status=%d code=%s): %s", se.HTTPStatusCode, se.Code, se.Msg)
	}
	return fmt.Errorf("stripe request failed: %w", err)
}

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(NewVerifier),
)
