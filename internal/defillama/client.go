// Package defillama fetches the raw protocol and pool datasets from DefiLlama.
// Records are returned undecoded beyond JSON so that validation happens in one
// place, the curator normalizers.
package defillama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rewired-gh/curator/internal/logger"
	"github.com/rewired-gh/curator/internal/models"
)

// Client provides access to the DefiLlama protocol and yield APIs
type Client struct {
	protocolsURL   string
	poolsURL       string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig tunes retries and connection pooling.
type ClientConfig struct {
	MaxRetries          int
	RetryDelayBase      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// poolsResponse is the envelope returned by the yields API.
type poolsResponse struct {
	Status string             `json:"status"`
	Data   []models.RawRecord `json:"data"`
}

// errClient marks 4xx responses, which are not retried.
var errClient = errors.New("client error")

// NewClient creates a new DefiLlama client
func NewClient(protocolsURL, poolsURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 5
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	return &Client{
		protocolsURL: protocolsURL,
		poolsURL:     poolsURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchProtocols retrieves the protocol list, a bare JSON array.
func (c *Client) FetchProtocols(ctx context.Context) ([]models.RawRecord, error) {
	var records []models.RawRecord
	if err := c.getJSON(ctx, c.protocolsURL, &records); err != nil {
		return nil, fmt.Errorf("failed to fetch protocols: %w", err)
	}
	logger.Debug("Fetched %d protocols from %s", len(records), c.protocolsURL)
	return records, nil
}

// FetchPools retrieves the yield pool list from its {"status", "data"} envelope.
func (c *Client) FetchPools(ctx context.Context) ([]models.RawRecord, error) {
	var response poolsResponse
	if err := c.getJSON(ctx, c.poolsURL, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch pools: %w", err)
	}
	if response.Status != "" && response.Status != "success" {
		return nil, fmt.Errorf("failed to fetch pools: upstream status %q", response.Status)
	}
	logger.Debug("Fetched %d pools from %s", len(response.Data), c.poolsURL)
	return response.Data, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	body, err := c.doRequest(ctx, url)
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(body)
	decoder.UseNumber()
	decodeErr := decoder.Decode(out)
	_ = body.Close()
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	return nil
}

// doRequest performs HTTP request with retry logic. Transport errors and 5xx
// responses are retried with linear backoff; 4xx responses fail immediately.
func (c *Client) doRequest(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			logger.Debug("Retrying request to %s (attempt %d/%d)", url, i+1, c.maxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: %d: %s", errClient, resp.StatusCode, string(snippet))
		}

		return resp.Body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
