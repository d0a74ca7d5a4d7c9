package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/lavanderia-crm-go/internal/infra/resilience"
)

// upsertBatch bounds the request body of one POST.
const upsertBatch = 500

// upsert POSTs rows in batches with merge-duplicates resolution on the
// table's primary key.
func upsert[T any](ctx context.Context, c *Client, table string, rows []T) error {
	ctx, span := tracer.Start(ctx, "Supabase.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.table", table), attribute.Int("supabase.rows", len(rows)))

	for start := 0; start < len(rows); start += upsertBatch {
		end := min(start+upsertBatch, len(rows))
		body, err := json.Marshal(rows[start:end])
		if err != nil {
			return fmt.Errorf("encode %s: %w", table, err)
		}
		err = resilience.Call(ctx, c.cb, c.cfg, "supabase/"+table, func() error {
			return c.doPost(ctx, table, body)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) doPost(ctx context.Context, table string, jsonBody []byte) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return resilience.Permanent(err)
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: POST request failed",
			zap.String("table", table),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: POST non-2xx",
			zap.String("table", table),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		err := fmt.Errorf("supabase POST %s returned %d: %s", table, resp.StatusCode, string(body))
		if resp.StatusCode < 500 {
			return resilience.Permanent(err)
		}
		return err
	}

	c.logger.Debug("supabase: POST OK", zap.String("table", table), zap.Int("status", resp.StatusCode))
	return nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const dateLayout = "2006-01-02"

// parseDate reads a PostgreSQL date column; empty or malformed gives nil.
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
