// Package ties talks to the relationship graph service.
package ties

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client removes partner ties over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// DetachPartner deletes the caller's tie to partnerID, acting with the
// caller's credentials. A tie that is already gone counts as detached.
func (c *Client) DetachPartner(ctx context.Context, authToken, partnerID string) error {
	if c.baseURL == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/ties/partners/%s", c.baseURL, url.PathEscape(partnerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	if authToken != "" {
		if !strings.HasPrefix(strings.ToLower(authToken), "bearer ") {
			authToken = "Bearer " + authToken
		}
		req.Header.Set("Authorization", authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("detach partner %s: %w", partnerID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return nil
	}
	return fmt.Errorf("detach partner %s: unexpected status %d", partnerID, resp.StatusCode)
}
