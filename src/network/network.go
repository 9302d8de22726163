package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"

	"golang.org/x/time/rate"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %d %s", e.Code, e.Body)
}

// IsUnauthorized reports whether err is a 401/403 response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden)
}

// -----------------------------------------------------------------------------

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Limiter      *rate.Limiter
	Logger       *logger.Logger

	// RetryBaseDelay is the first backoff delay; later ones grow exponentially.
	RetryBaseDelay time.Duration

	mu     sync.RWMutex
	client *http.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	limit := rate.Inf
	burst := 1
	if cfg.Network.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Network.RequestsPerSecond)
		burst = cfg.Network.ConcurrentRequests
		if burst < 1 {
			burst = 1
		}
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent),
		Limiter:      rate.NewLimiter(limit, burst),
		Logger:       log,

		RetryBaseDelay: time.Second,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	c := nm.createClient()
	nm.mu.Lock()
	nm.client = c
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	return nm.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	})
}

// -----------------------------------------------------------------------------

// PostJSON performs a POST with a JSON body. Headers are applied after the defaults.
func (nm *AsyncNetworkManager) PostJSON(ctx context.Context, urlStr string, headers map[string]string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	return nm.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	attempt := 0
	body, err := helpers.RetryWithBackoff(ctx, "http request", nm.Config.Network.MaxRetries, nm.RetryBaseDelay, nm.Logger, func() ([]byte, error) {
		if attempt++; attempt > 1 {
			nm.rotateProxy()
		}

		if err := nm.Limiter.Wait(ctx); err != nil {
			return nil, helpers.Permanent(err)
		}

		req, err := build()
		if err != nil {
			return nil, helpers.Permanent(err)
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
		}

		nm.mu.RLock()
		client := nm.client
		nm.mu.RUnlock()

		body, err := nm.once(client, req)
		if err == nil {
			return body, nil
		}

		var se *StatusError
		if errors.As(err, &se) {
			switch {
			case se.Code == http.StatusTooManyRequests || se.Code == http.StatusForbidden:
				nm.Logger.Info("Request blocked (%d). Rotating proxy.", se.Code)
			case se.Code >= 400 && se.Code < 500:
				return nil, helpers.Permanent(err)
			}
		}
		return nil, err
	})
	if err == nil {
		return body, nil
	}

	var se *StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, err
	}
	return nil, helpers.NewNetworkError("max retries exceeded", err)
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) once(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
	}

	return body, nil
}
