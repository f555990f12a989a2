// Package crm is the HTTP adapter for the taxi dispatch CRM.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/apperrors"
	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/logging"
	"github.com/ridewire/voice-engine/pkg/models"
	"github.com/ridewire/voice-engine/pkg/phone"
	"github.com/ridewire/voice-engine/pkg/retry"
)

// DefaultTimeout is a backstop; per-call contexts are normally much shorter.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 1 << 20

// StatusError is a non-2xx, non-404 response from the CRM.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm returned status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable marks server-side and rate-limit failures as transient.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the dispatch CRM. Every phone-keyed read probes the
// equivalent formats of the canonical number in a fixed order.
type Client struct {
	baseURL        string
	apiKey         string
	attemptTimeout time.Duration
	retry          *retry.Config
	httpClient     *http.Client
	logger         *zap.Logger
}

// NewClient creates a CRM client from configuration.
func NewClient(cfg *config.CRMConfig, logger *zap.Logger) *Client {
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		attemptTimeout: cfg.AttemptTimeout,
		retry:          rc,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logger.Named("crm"),
	}
}

// FindCustomer looks the caller up under each equivalent phone format and
// stops at the first match. A clean miss on every format is (zero, false,
// nil). Transport failure on every format returns an error wrapping
// apperrors.ErrSourceDegraded. A miss where only some formats failed wraps
// apperrors.ErrInconclusiveMiss.
func (c *Client) FindCustomer(ctx context.Context, canonical string) (models.CrmCustomer, bool, error) {
	return probe(ctx, c, "find customer", canonical, func(ctx context.Context, format string) (models.CrmCustomer, bool, error) {
		endpoint, err := c.endpoint(url.Values{"phone": {format}}, "customers")
		if err != nil {
			return models.CrmCustomer{}, false, err
		}

		var resp struct {
			customersResponse
			Customer *wireCustomer `json:"customer"`
		}
		found, err := c.getJSON(ctx, endpoint, &resp)
		if err != nil || !found {
			return models.CrmCustomer{}, false, err
		}

		candidates := resp.Customers
		if resp.Customer != nil {
			candidates = append([]wireCustomer{*resp.Customer}, candidates...)
		}
		if len(candidates) == 0 {
			return models.CrmCustomer{}, false, nil
		}

		customer, err := candidates[0].toModel()
		if err != nil {
			return models.CrmCustomer{}, false, err
		}
		return customer, true, nil
	})
}

// GetAddressHistory returns the saved addresses for the caller.
func (c *Client) GetAddressHistory(ctx context.Context, canonical string) ([]models.CrmAddress, error) {
	addresses, _, err := probe(ctx, c, "address history", canonical, func(ctx context.Context, format string) ([]models.CrmAddress, bool, error) {
		endpoint, err := c.endpoint(nil, "customers", format, "addresses")
		if err != nil {
			return nil, false, err
		}

		var resp addressesResponse
		found, err := c.getJSONWithRetry(ctx, endpoint, &resp)
		if err != nil || !found || len(resp.Addresses) == 0 {
			return nil, false, err
		}

		out, err := convertAddresses(resp.Addresses)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	})
	return addresses, err
}

// GetUpcomingTrips returns trips the CRM considers upcoming or in progress.
func (c *Client) GetUpcomingTrips(ctx context.Context, canonical string) ([]models.CrmTrip, error) {
	trips, _, err := probe(ctx, c, "upcoming trips", canonical, func(ctx context.Context, format string) ([]models.CrmTrip, bool, error) {
		endpoint, err := c.endpoint(url.Values{"upcoming": {"true"}}, "customers", format, "trips")
		if err != nil {
			return nil, false, err
		}

		var resp tripsResponse
		found, err := c.getJSONWithRetry(ctx, endpoint, &resp)
		if err != nil || !found || len(resp.Trips) == 0 {
			return nil, false, err
		}

		out, err := convertTrips(resp.Trips)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	})
	return trips, err
}

// CreateCustomer registers a new customer under the canonical phone. It is
// not retried: a timed-out create may still have succeeded upstream.
func (c *Client) CreateCustomer(ctx context.Context, canonical, firstName, lastName string) (models.CrmCustomer, error) {
	endpoint, err := c.endpoint(nil, "customers")
	if err != nil {
		return models.CrmCustomer{}, fmt.Errorf("failed to build URL: %w", err)
	}

	payload, err := json.Marshal(createCustomerRequest{Phone: canonical, FirstName: firstName, LastName: lastName})
	if err != nil {
		return models.CrmCustomer{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.CrmCustomer{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	c.logger.Info("Creating CRM customer", zap.String("phone", logging.MaskPhone(canonical)))

	body, status, err := c.do(req)
	if err != nil {
		return models.CrmCustomer{}, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return models.CrmCustomer{}, &StatusError{StatusCode: status, Body: logging.TruncateString(string(body), logging.MaxBodyLogLength)}
	}

	// Some deployments wrap the record, others return it bare.
	var wrapped customerResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return models.CrmCustomer{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidUpstreamData, err)
	}
	w := wrapped.Customer
	if w.ID == "" {
		if err := json.Unmarshal(body, &w); err != nil {
			return models.CrmCustomer{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidUpstreamData, err)
		}
	}

	customer, err := w.toModel()
	if err != nil {
		return models.CrmCustomer{}, err
	}
	c.logger.Info("Created CRM customer",
		zap.String("customer_id", customer.ID),
		zap.String("phone", logging.MaskPhone(canonical)))
	return customer, nil
}

// probe runs attempt once per equivalent format, each under its own
// timeout, and returns the first result that reports found.
func probe[T any](
	ctx context.Context,
	c *Client,
	op string,
	canonical string,
	attempt func(ctx context.Context, format string) (T, bool, error),
) (T, bool, error) {
	var zero T
	formats := phone.EquivalentFormats(canonical)
	if len(formats) == 0 {
		return zero, false, fmt.Errorf("%s: %w", op, apperrors.ErrUnresolvablePhone)
	}

	var lastErr error
	failures := 0
	for _, format := range formats {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		v, found, err := attempt(attemptCtx, format)
		cancel()

		if err != nil {
			failures++
			lastErr = err
			c.logger.Warn("CRM attempt failed",
				zap.String("op", op),
				zap.String("format", logging.MaskPhone(format)),
				zap.String("error", logging.SanitizeError(err)))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if found {
			c.logger.Debug("CRM match",
				zap.String("op", op),
				zap.String("format", logging.MaskPhone(format)))
			return v, true, nil
		}
	}

	if failures > 0 && failures == len(formats) {
		return zero, false, fmt.Errorf("%w: crm %s failed for all %d formats: %w",
			apperrors.ErrSourceDegraded, op, failures, lastErr)
	}
	if ctx.Err() != nil {
		return zero, false, fmt.Errorf("%w: crm %s: %w", apperrors.ErrSourceDegraded, op, ctx.Err())
	}
	if failures > 0 {
		return zero, false, fmt.Errorf("%w: crm %s: %d of %d formats failed: %w",
			apperrors.ErrInconclusiveMiss, op, failures, len(formats), lastErr)
	}
	return zero, false, nil
}

func (c *Client) getJSONWithRetry(ctx context.Context, endpoint string, out any) (bool, error) {
	return retry.DoWithResultIfRetryable(ctx, c.retry, func() (bool, error) {
		return c.getJSON(ctx, endpoint, out)
	})
}

// getJSON decodes a 200 response into out. 404 is a clean miss.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	body, status, err := c.do(req)
	if err != nil {
		return false, err
	}

	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status != http.StatusOK:
		return false, &StatusError{StatusCode: status, Body: logging.TruncateString(string(body), logging.MaxBodyLogLength)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrInvalidUpstreamData, err)
	}
	return true, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call crm: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// endpoint joins path segments onto the base URL.
func (c *Client) endpoint(query url.Values, pathSegments ...string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}
