package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sellsync/pkg/domain"
)

const (
	ebayProdBase    = "https://api.ebay.com"
	ebaySandboxBase = "https://api.sandbox.ebay.com"
	ebayAPIPath     = "/ws/api.dll"

	ebaySiteID      = "0"
	ebayCompatLevel = "967"
)

// Client is the uniform request surface shared by both platform protocols.
// For the SOAP variant the path argument carries the Trading API call name
// instead of a URL path.
type Client interface {
	Get(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error)
	Post(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error)
	Put(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error)
	Delete(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error)
	InvalidateCredential()
}

// Config holds the shared construction knobs for platform clients.
type Config struct {
	Tokens  *TokenCache
	OwnerID string
	// BaseURL overrides the platform endpoint, primarily for tests.
	BaseURL string
	Sandbox bool
	Timeout time.Duration
	// RequestsPerSecond caps the sustained request rate per client.
	// Zero disables client-side throttling.
	RequestsPerSecond float64
	Burst             int
}

func (cfg Config) httpClient() *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (cfg Config) rateLimiter() *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// baseClient owns lazy credential resolution. The credential is resolved on
// first use and kept for the lifetime of the client instance; a fresh client
// must be built to force a re-read of the token cache.
type baseClient struct {
	platform domain.Platform
	ownerID  string
	tokens   *TokenCache
	http     *http.Client
	limiter  *rate.Limiter

	mu      sync.Mutex
	authKey string
}

func (c *baseClient) credential(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authKey != "" {
		return c.authKey, nil
	}
	token, err := c.tokens.Resolve(ctx, c.platform, c.ownerID)
	if err != nil {
		return "", err
	}
	c.authKey = token
	return token, nil
}

// InvalidateCredential drops the cached credential so the next request
// re-reads the token cache.
func (c *baseClient) InvalidateCredential() {
	c.mu.Lock()
	c.authKey = ""
	c.mu.Unlock()
}

func (c *baseClient) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.platform, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: data}
	}
	return data, nil
}

func (c *baseClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// RESTClient issues JSON requests against per-resource paths with a
// credential header attached.
type RESTClient struct {
	baseClient
	baseURL string
	static  map[string]string
	setAuth func(http.Header, string)
}

// NewEbayREST builds a client for the eBay REST/Shopping surface.
func NewEbayREST(cfg Config) *RESTClient {
	base := cfg.BaseURL
	if base == "" {
		base = ebayProdBase
		if cfg.Sandbox {
			base = ebaySandboxBase
		}
	}
	return &RESTClient{
		baseClient: baseClient{
			platform: domain.PlatformEbay,
			ownerID:  cfg.OwnerID,
			tokens:   cfg.Tokens,
			http:     cfg.httpClient(),
			limiter:  cfg.rateLimiter(),
		},
		baseURL: strings.TrimRight(base, "/"),
		static: map[string]string{
			"User-Agent":              "sellsync ebay client",
			"Content-Type":            "application/json",
			"Accept":                  "application/json",
			"X-EBAY-C-MARKETPLACE-ID": "EBAY-US",
		},
		setAuth: func(h http.Header, token string) {
			if !strings.HasPrefix(token, "Bearer ") {
				token = "Bearer " + token
			}
			h.Set("Authorization", token)
		},
	}
}

// NewShopify builds a client for a Shopify store's admin API. The store name
// doubles as the owner id throughout the engine.
func NewShopify(cfg Config, storeName string) *RESTClient {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.myshopify.com", storeName)
	}
	owner := cfg.OwnerID
	if owner == "" {
		owner = storeName
	}
	return &RESTClient{
		baseClient: baseClient{
			platform: domain.PlatformShopify,
			ownerID:  owner,
			tokens:   cfg.Tokens,
			http:     cfg.httpClient(),
			limiter:  cfg.rateLimiter(),
		},
		baseURL: strings.TrimRight(base, "/"),
		static: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		setAuth: func(h http.Header, token string) {
			h.Set("X-Shopify-Access-Token", token)
		},
	}
}

func (c *RESTClient) Get(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, body)
}

func (c *RESTClient) Post(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, query, body)
}

func (c *RESTClient) Put(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, query, body)
}

func (c *RESTClient) Delete(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, query, body)
}

func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.credential(ctx)
	if err != nil {
		return nil, err
	}
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.platform, err)
	}
	for k, v := range c.static {
		req.Header.Set(k, v)
	}
	c.setAuth(req.Header, token)
	return c.send(req)
}

// SOAPClient issues XML envelopes against the single Trading API endpoint.
// The per-call operation name travels in a header rather than the path.
type SOAPClient struct {
	baseClient
	endpoint string
}

// NewEbaySOAP builds a client for the eBay SOAP/Trading surface.
func NewEbaySOAP(cfg Config) *SOAPClient {
	base := cfg.BaseURL
	if base == "" {
		base = ebayProdBase + ebayAPIPath
		if cfg.Sandbox {
			base = ebaySandboxBase + ebayAPIPath
		}
	}
	return &SOAPClient{
		baseClient: baseClient{
			platform: domain.PlatformEbay,
			ownerID:  cfg.OwnerID,
			tokens:   cfg.Tokens,
			http:     cfg.httpClient(),
			limiter:  cfg.rateLimiter(),
		},
		endpoint: base,
	}
}

func (c *SOAPClient) Get(ctx context.Context, call string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodGet, call, body)
}

func (c *SOAPClient) Post(ctx context.Context, call string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, call, body)
}

func (c *SOAPClient) Put(ctx context.Context, call string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPut, call, body)
}

func (c *SOAPClient) Delete(ctx context.Context, call string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, call, body)
}

func (c *SOAPClient) do(ctx context.Context, method, call string, body []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.credential(ctx)
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.platform, err)
	}
	req.Header.Set("X-EBAY-API-SITEID", ebaySiteID)
	req.Header.Set("X-EBAY-API-COMPATIBILITY-LEVEL", ebayCompatLevel)
	req.Header.Set("X-EBAY-API-CALL-NAME", call)
	req.Header.Set("X-EBAY-API-IAF-TOKEN", token)
	return c.send(req)
}
