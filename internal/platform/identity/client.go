package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/fx"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fatflowers/craftbill/pkg/config"
)

var ErrNotConfigured = errors.New("identity provider is not configured")

// Client talks to the identity provider's management API using a
// client-credentials token.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return newClient(context.Background(), cfg.Identity)
}

func newClient(ctx context.Context, ic config.IdentityConfig) *Client {
	base := &http.Client{Timeout: 15 * time.Second}
	c := &Client{baseURL: strings.TrimRight(ic.BaseURL, "/"), http: base}
	if ic.TokenURL == "" {
		return c
	}
	cc := clientcredentials.Config{
		ClientID:     ic.ClientID,
		ClientSecret: ic.ClientSecret,
		TokenURL:     ic.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if ic.Audience != "" {
		cc.EndpointParams = url.Values{"audience": {ic.Audience}}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	c.http = cc.Client(ctx)
	return c
}

// DeleteUser removes the user record. A user that no longer exists counts as
// deleted.
func (c *Client) DeleteUser(ctx context.Context, accountID string) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	endpoint := c.baseURL + "/api/v2/users/" + url.PathEscape(accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete identity user: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("delete identity user: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
