// Package tika extracts text from whole documents through an Apache Tika server.
package tika

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

const defaultBaseURL = "http://localhost:9998"

// Client performs PUT /tika with Accept: text/plain. It implements domain.TextExtractor.
// See https://tika.apache.org/server/ for the API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Tika client. A zero timeout defaults to 30s.
func New(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ExtractBytes returns the plain text Tika extracts from data. The text is
// returned as Tika produced it; callers clean it.
func (c *Client) ExtractBytes(ctx context.Context, data []byte, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractBytes: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return "", fmt.Errorf("op=tika.ExtractBytes: %w: %v", domain.ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("op=tika.ExtractBytes: %w: %v", domain.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusUnsupportedMediaType {
		return "", fmt.Errorf("op=tika.ExtractBytes: %w: tika status %d", domain.ErrExtraction, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("op=tika.ExtractBytes: %w: tika status %d", domain.ErrUpstream, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractBytes: %w: %v", domain.ErrUpstream, err)
	}
	return string(b), nil
}

// Ping checks that the server answers GET /version.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tika status %d", resp.StatusCode)
	}
	return nil
}
