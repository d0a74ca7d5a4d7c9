// Package supabase persists sales, orders and the customer registry through
// the Supabase PostgREST API.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/lavanderia-crm-go/internal/infra/resilience"
)

var tracer = otel.Tracer("supabase")

// pageSize stays below PostgREST's default max-rows.
const pageSize = 1000

// Client wraps HTTP calls to Supabase PostgREST API.
// Implements port.SaleStore, port.OrderStore and port.CustomerRegistry.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	bulkhead       *resilience.Bulkhead
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:         logger,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
}

// doRequest executes an authenticated GET against PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		err := fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode < 500 {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// listAll pages through a table ordered by orderBy and decodes every row.
func listAll[T any](ctx context.Context, c *Client, table, orderBy string) ([]T, error) {
	ctx, span := tracer.Start(ctx, "Supabase.List")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.table", table))

	var out []T
	for offset := 0; ; offset += pageSize {
		var page []T
		err := resilience.Call(ctx, c.cb, c.cfg, "supabase/"+table, func() error {
			path := fmt.Sprintf("%s?select=*&order=%s&limit=%d&offset=%d", table, orderBy, pageSize, offset)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			page = page[:0]
			if len(body) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, &page); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s: %w", table, err))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			break
		}
	}
	span.SetAttributes(attribute.Int("supabase.rows", len(out)))
	return out, nil
}
