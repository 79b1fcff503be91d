// Package binlookup resolves BIN prefixes to issuer metadata through the
// public binlist.net API.
package binlookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
)

// Placeholder used for fields the upstream omits.
const Unknown = "Unknown"

var (
	// ErrNotFound indicates the upstream has no record for the BIN.
	ErrNotFound = errors.New("bin not found upstream")
	// ErrRateLimited indicates the upstream throttled the request.
	ErrRateLimited = errors.New("bin lookup rate limited")
)

type response struct {
	Scheme  string `json:"scheme"`
	Type    string `json:"type"`
	Brand   string `json:"brand"`
	Prepaid *bool  `json:"prepaid"`
	Country struct {
		Name     string `json:"name"`
		Alpha2   string `json:"alpha2"`
		Emoji    string `json:"emoji"`
		Currency string `json:"currency"`
	} `json:"country"`
	Bank struct {
		Name string `json:"name"`
	} `json:"bank"`
}

// Client fetches issuer metadata. Consecutive upstream failures open a circuit
// breaker so a failing upstream is not hammered.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[map[string]string]
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[map[string]string](st)
	}
}

// New creates a Client against baseURL.
func New(baseURL, userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/") + "/",
		userAgent: userAgent,
		http:      &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[map[string]string](gobreaker.Settings{
			Name:        "binlist",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
		}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch returns metadata for bin. Every documented key is present; missing
// values are "Unknown" except the country emoji, which is left empty.
// Failures other than ErrNotFound are reported as external API errors.
func (c *Client) Fetch(ctx context.Context, bin string) (map[string]string, error) {
	meta, err := c.breaker.Execute(func() (map[string]string, error) {
		return c.fetch(ctx, bin)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, apperrors.NewExternalAPIError("binlist", err)
	}
	return meta, err
}

// State reports the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) fetch(ctx context.Context, bin string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+bin, nil)
	if err != nil {
		return nil, fmt.Errorf("build bin request: %w", err)
	}
	req.Header.Set("Accept-Version", "3")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bin request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("bin lookup returned %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode bin response: %w", err)
	}

	return toMetadata(body), nil
}

func toMetadata(r response) map[string]string {
	prepaid := Unknown
	if r.Prepaid != nil {
		prepaid = strconv.FormatBool(*r.Prepaid)
	}

	brand := r.Brand
	if brand == "" {
		brand = r.Scheme
	}

	return map[string]string{
		domain.BinBrand:        orUnknown(strings.ToUpper(brand)),
		domain.BinScheme:       orUnknown(strings.ToUpper(r.Scheme)),
		domain.BinType:         orUnknown(strings.ToUpper(r.Type)),
		domain.BinPrepaid:      prepaid,
		domain.BinBankName:     orUnknown(r.Bank.Name),
		domain.BinCountryName:  orUnknown(r.Country.Name),
		domain.BinCountryCode:  orUnknown(r.Country.Alpha2),
		domain.BinCountryEmoji: r.Country.Emoji,
		domain.BinCurrency:     orUnknown(r.Country.Currency),
	}
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return Unknown
	}
	return v
}
