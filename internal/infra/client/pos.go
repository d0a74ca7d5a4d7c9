// Package client holds HTTP clients for remote services.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
	"github.com/boddenberg/lavanderia-crm-go/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// POSClient fetches sales and orders from the remote point-of-sale API.
// Implements port.POSFetcher.
type POSClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewPOSClient creates a new POSClient.
func NewPOSClient(httpClient *http.Client, baseURL, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *POSClient {
	return &POSClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		cb:         cb,
		cfg:        cfg,
	}
}

// FetchSales returns sales recorded at or after since.
func (c *POSClient) FetchSales(ctx context.Context, since time.Time) ([]domain.Sale, error) {
	ctx, span := tracer.Start(ctx, "POSClient.FetchSales")
	defer span.End()
	span.SetAttributes(attribute.String("pos.since", since.Format(time.RFC3339)))

	var sales []domain.Sale
	if err := c.get(ctx, "/v1/sales", since, &sales); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("pos.sales", len(sales)))
	return sales, nil
}

// FetchOrders returns orders started at or after since, tagged with source "api".
func (c *POSClient) FetchOrders(ctx context.Context, since time.Time) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "POSClient.FetchOrders")
	defer span.End()
	span.SetAttributes(attribute.String("pos.since", since.Format(time.RFC3339)))

	var orders []domain.Order
	if err := c.get(ctx, "/v1/orders", since, &orders); err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Source == "" {
			orders[i].Source = "api"
		}
	}
	span.SetAttributes(attribute.Int("pos.orders", len(orders)))
	return orders, nil
}

func (c *POSClient) get(ctx context.Context, path string, since time.Time, out any) error {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	return resilience.Call(ctx, c.cb, c.cfg, "pos", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return resilience.Permanent(&domain.ErrNotFound{Resource: "pos endpoint", ID: path})
		case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
			return resilience.Permanent(fmt.Errorf("pos API %s returned status %d", path, resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("pos API %s returned status %d", path, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resilience.Permanent(fmt.Errorf("decode %s: %w", path, err))
		}
		return nil
	})
}
