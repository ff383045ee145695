package dependency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/angeloszaimis/item-enricher/internal/correlation"
	"github.com/angeloszaimis/item-enricher/internal/record"
)

const (
	DefaultConnectTimeout = 1 * time.Second
	DefaultTimeout        = 2 * time.Second

	infoPath     = "/external/info/"
	maxBodyBytes = 1 << 20
)

// StatusError is returned for a non-2xx response. It unwraps to
// record.ErrDependencyUnavailable.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dependency responded with status %d", e.Code)
}

func (e *StatusError) StatusCode() int { return e.Code }

func (e *StatusError) Unwrap() error { return record.ErrDependencyUnavailable }

type Options struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

type infoResponse struct {
	ID          *int64 `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func New(baseURL string, opts Options, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid dependency base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid dependency base url %q: scheme must be http or https", baseURL)
	}

	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		logger: logger,
	}, nil
}

// Fetch returns the live EnrichmentInfo for id. A successful result always
// carries record.StatusSuccess.
func (c *Client) Fetch(ctx context.Context, id int64) (record.EnrichmentInfo, error) {
	target := c.baseURL.JoinPath(infoPath, strconv.FormatInt(id, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return record.EnrichmentInfo{}, fmt.Errorf("%w: %v", record.ErrDependencyUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if cid, ok := correlation.FromContext(ctx); ok {
		req.Header.Set(correlation.Header, cid)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return record.EnrichmentInfo{}, classify(err)
	}
	defer res.Body.Close()

	c.logger.Debug("Dependency responded",
		correlation.Attr(ctx),
		slog.Int64("id", id),
		slog.Int("status", res.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		return record.EnrichmentInfo{}, &StatusError{Code: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return record.EnrichmentInfo{}, classify(err)
	}

	return decode(id, body)
}

func decode(id int64, body []byte) (record.EnrichmentInfo, error) {
	var payload infoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return record.EnrichmentInfo{}, fmt.Errorf("%w: %v", record.ErrDependencyMalformedResponse, err)
	}

	switch {
	case payload.ID == nil:
		return record.EnrichmentInfo{}, fmt.Errorf("%w: missing id", record.ErrDependencyMalformedResponse)
	case *payload.ID != id:
		return record.EnrichmentInfo{}, fmt.Errorf("%w: id %d does not match requested %d",
			record.ErrDependencyMalformedResponse, *payload.ID, id)
	case payload.Description == "":
		return record.EnrichmentInfo{}, fmt.Errorf("%w: missing description", record.ErrDependencyMalformedResponse)
	case payload.Status != "" && record.Status(payload.Status) != record.StatusSuccess:
		return record.EnrichmentInfo{}, fmt.Errorf("%w: unexpected status %q",
			record.ErrDependencyMalformedResponse, payload.Status)
	}

	return record.EnrichmentInfo{
		ID:          id,
		Description: payload.Description,
		Status:      record.StatusSuccess,
	}, nil
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", record.ErrDependencyTimeout, err)
	}
	return fmt.Errorf("%w: %v", record.ErrDependencyUnavailable, err)
}
