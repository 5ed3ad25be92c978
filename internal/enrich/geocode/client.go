// Package geocode resolves postal addresses to coordinates through a
// Nominatim-compatible search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/parse"
	"github.com/mkoziy/habitat/ingest/internal/ratelimit"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "habitat-ingest/1.0"
	defaultMinLength = 5
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Config configures the provider endpoint.
type Config struct {
	BaseURL          string        `yaml:"base_url"`
	UserAgent        string        `yaml:"user_agent"`
	Email            string        `yaml:"email"`
	CountryCodes     string        `yaml:"country_codes"`
	MinAddressLength int           `yaml:"min_address_length"`
	Timeout          time.Duration `yaml:"timeout"`
}

// StatusError is a non-200 provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocoder returned status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the provider may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client geocodes addresses. Every provider call waits on the shared limiter,
// so one Client serializes calls across all goroutines using it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	email      string
	countries  string
	minLength  int
	limiter    ratelimit.Limiter
	policy     ratelimit.Policy
	logger     *slog.Logger
}

// New creates a geocoding client. limiter is normally a fixed-delay limiter
// and policy a uniform-jitter retry policy.
func New(cfg Config, limiter ratelimit.Limiter, policy ratelimit.Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(firstNonEmpty(cfg.BaseURL, DefaultBaseURL), "/"),
		userAgent:  firstNonEmpty(cfg.UserAgent, defaultUserAgent),
		email:      cfg.Email,
		countries:  cfg.CountryCodes,
		minLength:  cfg.MinAddressLength,
		limiter:    limiter,
		policy:     policy,
		logger:     logger,
	}
	if c.minLength <= 0 {
		c.minLength = defaultMinLength
	}
	if c.policy.OnRetry == nil {
		c.policy.OnRetry = func(attempt int, err error, wait time.Duration) {
			c.logger.Debug("geocode retry", slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.String("error", err.Error()))
		}
	}
	return c
}

// Geocode returns the first hit over the query variants, or nil when no
// variant matched. Malformed input returns nil without calling the provider.
// An error means the provider kept failing after retries.
func (c *Client) Geocode(ctx context.Context, address, city, postalCode string) (*Coordinates, error) {
	queries := c.Variants(address, city, postalCode)
	for _, q := range queries {
		coords, err := ratelimit.Do(ctx, c.policy, func(ctx context.Context, attempt int) (*Coordinates, error) {
			return c.search(ctx, q)
		})
		if err != nil {
			return nil, fmt.Errorf("geocode %q: %w", q, err)
		}
		if coords != nil {
			return coords, nil
		}
	}
	return nil, nil
}

// Variants lists the queries tried in order: full address, address with city,
// then postal code alone. Duplicates and blank parts are dropped.
func (c *Client) Variants(address, city, postalCode string) []string {
	address = parse.CleanText(address)
	city = parse.CleanText(city)
	postal, _ := parse.PostalCode(postalCode)
	if len([]rune(address)) < c.minLength {
		return nil
	}

	var out []string
	add := func(parts ...string) {
		q := strings.Join(nonBlank(parts), ", ")
		for _, existing := range out {
			if existing == q {
				return
			}
		}
		if q != "" {
			out = append(out, q)
		}
	}
	add(address, city, parse.Deref(postal))
	add(address, city)
	if postal != nil {
		add(*postal)
	}
	return out
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (c *Client) search(ctx context.Context, query string) (*Coordinates, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ratelimit.Permanent(err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	if c.countries != "" {
		params.Set("countrycodes", c.countries)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, ratelimit.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ratelimit.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if serr.Retryable() {
			return nil, serr
		}
		return nil, ratelimit.Permanent(serr)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, ratelimit.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(places) == 0 {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(places[0].Lon, 64)
	if err := errors.Join(errLat, errLng); err != nil {
		return nil, ratelimit.Permanent(fmt.Errorf("parse coordinates: %w", err))
	}
	return &Coordinates{Lat: lat, Lng: lng}, nil
}

func nonBlank(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
