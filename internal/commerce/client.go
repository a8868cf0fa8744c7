// Package commerce talks to the headless commerce backend and other product sources.
package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/catalog"
	"storefront/pkg/errors"
)

// ProductSource loads a product as priced for a region.
type ProductSource interface {
	GetProduct(ctx context.Context, id, regionID string) (*catalog.Product, error)
}

// RegionLister lists the regions configured in the backend.
type RegionLister interface {
	ListRegions(ctx context.Context) ([]catalog.Region, error)
}

// Client is a REST client for the commerce store API.
type Client struct {
	BaseURL        string
	PublishableKey string
	HTTP           *http.Client
	Retries        int
	Backoff        time.Duration
	Logger         zerolog.Logger
}

// NewClient creates a client with the given retry budget and per-request timeout.
func NewClient(baseURL, publishableKey string, retries int, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		PublishableKey: publishableKey,
		HTTP:           &http.Client{Timeout: timeout},
		Retries:        retries,
		Backoff:        200 * time.Millisecond,
		Logger:         logger,
	}
}

// GetProduct fetches and validates a product priced for regionID.
func (c *Client) GetProduct(ctx context.Context, id, regionID string) (*catalog.Product, error) {
	q := url.Values{}
	if regionID != "" {
		q.Set("region_id", regionID)
	}
	var body struct {
		Product *catalog.Product `json:"product"`
	}
	status, err := c.getJSON(ctx, "/store/products/"+url.PathEscape(id), q, &body)
	if err != nil {
		return nil, errors.NewUpstreamError(id, err)
	}
	switch {
	case status == http.StatusNotFound:
		return nil, errors.NewProductNotFoundError(id)
	case status != http.StatusOK:
		return nil, errors.NewUpstreamError(id, fmt.Errorf("store API returned status %d", status))
	case body.Product == nil:
		return nil, errors.NewUpstreamError(id, fmt.Errorf("response has no product"))
	}
	if err := catalog.Validate(body.Product); err != nil {
		return nil, err
	}
	return body.Product, nil
}

// ListRegions fetches all regions.
func (c *Client) ListRegions(ctx context.Context) ([]catalog.Region, error) {
	var body struct {
		Regions []catalog.Region `json:"regions"`
	}
	status, err := c.getJSON(ctx, "/store/regions", nil, &body)
	if err != nil {
		return nil, errors.NewUpstreamError("regions", err)
	}
	if status != http.StatusOK {
		return nil, errors.NewUpstreamError("regions", fmt.Errorf("store API returned status %d", status))
	}
	return body.Regions, nil
}

// getJSON issues a GET with retries and decodes a 200 response into out. Non-200 statuses are
// returned without decoding.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (int, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for i := 0; i <= c.Retries; i++ {
		if i > 0 {
			wait := time.Duration(1<<(i-1)) * c.Backoff
			c.Logger.Warn().Str("url", u).Int("attempt", i).Err(lastErr).Msg("store request failed, retrying")
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Accept", "application/json")
		if c.PublishableKey != "" {
			req.Header.Set("x-publishable-api-key", c.PublishableKey)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}

		err = nil
		if resp.StatusCode == http.StatusOK {
			err = json.NewDecoder(resp.Body).Decode(out)
		} else {
			io.Copy(io.Discard, resp.Body)
		}
		resp.Body.Close()
		if err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
		return resp.StatusCode, nil
	}
	return 0, fmt.Errorf("request failed after %d retries: %w", c.Retries, lastErr)
}
