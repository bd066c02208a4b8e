package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrLookupUnavailable signals that the lookup service could not resolve the IP.
var ErrLookupUnavailable = errors.New("geo: lookup unavailable")

// Location describes the resolved geography of an IP address.
type Location struct {
	IP          string `json:"ip"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	City        string `json:"city"`
}

// Config holds the settings for the IP geolocation service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client resolves IP addresses to locations through an HTTP lookup service.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("geo: base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// Lookup resolves the given IP address. Private and unparsable addresses
// return ErrLookupUnavailable without a network call.
func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() {
		return nil, ErrLookupUnavailable
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + parsed.String()
	if c.cfg.APIKey != "" {
		url += "?apikey=" + c.cfg.APIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("geo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: service returned %d", ErrLookupUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("geo: read response: %w", err)
	}

	var loc Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, fmt.Errorf("geo: decode response: %w", err)
	}
	if loc.IP == "" {
		loc.IP = parsed.String()
	}
	return &loc, nil
}
