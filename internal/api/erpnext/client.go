// Package erpnext is a custom HTTP client for the ERPNext resource API,
// the upstream record system that holds invoices, orders, and customers.
package erpnext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/replaystack/incident-replay/internal/domain"
)

const defaultTimeout = 10 * time.Second

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client talks to an ERPNext instance over its REST resource API.
type Client struct {
	baseURL    string
	apiToken   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a new ERPNext API client. The token is the
// "API_KEY:API_SECRET" pair ERPNext expects in the Authorization header.
func NewClient(baseURL, apiToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiToken:   apiToken,
		timeout:    defaultTimeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetInvoice fetches a Sales Invoice by name. A 404 returns (nil, nil).
func (c *Client) GetInvoice(ctx context.Context, name string) (*Invoice, error) {
	return getDoc[Invoice](ctx, c, "Sales Invoice", name)
}

// GetSalesOrder fetches a Sales Order by name. A 404 returns (nil, nil).
func (c *Client) GetSalesOrder(ctx context.Context, name string) (*SalesOrder, error) {
	return getDoc[SalesOrder](ctx, c, "Sales Order", name)
}

// GetCustomer fetches a Customer by name. A 404 returns (nil, nil).
func (c *Client) GetCustomer(ctx context.Context, name string) (*Customer, error) {
	return getDoc[Customer](ctx, c, "Customer", name)
}

func getDoc[T any](ctx context.Context, c *Client, doctype, name string) (*T, error) {
	if name == "" {
		return nil, domain.NewResolutionError(domain.StageExtraction, domain.ErrorKindValidation,
			fmt.Sprintf("empty %s reference", doctype))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/resource/%s/%s",
		c.baseURL, url.PathEscape(doctype), url.PathEscape(name))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewResolutionError(domain.StageExtraction, domain.ErrorKindValidation,
			"failed to create request").WithCause(err)
	}
	httpReq.Header.Set("Authorization", "token "+c.apiToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(doctype, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewResolutionError(domain.StageExtraction, domain.ErrorKindConnectivity,
			fmt.Sprintf("failed to read %s response", doctype)).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewResolutionError(domain.StageExtraction, domain.ErrorKindNonSuccessStatus,
			fmt.Sprintf("%s fetch returned status %d: %s", doctype, resp.StatusCode, truncate(string(body), 200)))
	}

	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.NewResolutionError(domain.StageExtraction, domain.ErrorKindMalformedBody,
			fmt.Sprintf("%s response is not valid JSON", doctype)).WithCause(err)
	}
	if env.Data == nil {
		return nil, nil
	}
	return env.Data, nil
}

// classifyTransportError distinguishes timeouts from connection failures.
func classifyTransportError(doctype string, err error) error {
	kind := domain.ErrorKindConnectivity
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		kind = domain.ErrorKindTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.ErrorKindTimeout
	}
	return domain.NewResolutionError(domain.StageExtraction, kind,
		fmt.Sprintf("%s request failed", doctype)).WithCause(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
