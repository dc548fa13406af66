package discoveryapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
)

// ErrUnsupportedChain is returned when a provider does not list the configured chain
var ErrUnsupportedChain = errors.New("chain not supported by provider")

const maxResponseBytes = 10 << 20

// Client talks to the public DexScreener and GeckoTerminal APIs
type Client struct {
	http             *http.Client
	dexScreenerURL   string
	dexScreenerChain string
	geckoURL         string
	geckoNetwork     string
	logger           *zap.Logger
}

// NewClient creates a new discovery API client
func NewClient(cfg config.DiscoveryConfig, logger *zap.Logger) *Client {
	return &Client{
		http:             &http.Client{Timeout: cfg.HTTPTimeout},
		dexScreenerURL:   strings.TrimRight(cfg.DexScreenerURL, "/"),
		dexScreenerChain: cfg.DexScreenerChain,
		geckoURL:         strings.TrimRight(cfg.GeckoTerminalURL, "/"),
		geckoNetwork:     cfg.GeckoNetwork,
		logger:           logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// getJSON fetches url and decodes the body into dest
func (c *Client) getJSON(ctx context.Context, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrUnsupportedChain
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// decodeEach decodes every raw item independently; malformed items are
// logged and skipped so one bad entry does not drop the batch
func decodeEach[T any](logger *zap.Logger, source string, items []json.RawMessage, convert func(T) (T, bool)) []T {
	out := make([]T, 0, len(items))
	for i, raw := range items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			logger.Warn("Skipping malformed item",
				zap.String("source", source),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		if convert != nil {
			var ok bool
			if item, ok = convert(item); !ok {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

func parseUnixMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
