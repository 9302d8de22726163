package helpers

import (
	"net/url"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------

// ProxyManager rotates over a fixed list of outbound proxies.
type ProxyManager struct {
	proxies   []string
	userAgent string
	index     int
	mu        sync.Mutex
}

// -----------------------------------------------------------------------------

func NewProxyManager(proxies []string, userAgent string) *ProxyManager {
	var valid []string
	for _, p := range proxies {
		if ValidateProxy(p) {
			valid = append(valid, FormatProxy(p))
		}
	}

	return &ProxyManager{
		proxies:   valid,
		userAgent: userAgent,
	}
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) GetCurrentProxy() (string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) == 0 {
		return "", nil
	}
	return pm.proxies[pm.index], nil
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) RotateProxy() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) <= 1 {
		return
	}
	pm.index = (pm.index + 1) % len(pm.proxies)
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) HasProxies() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.proxies) > 0
}

// -----------------------------------------------------------------------------

// GetUserAgent returns the browser User-Agent sent with every request.
// NSE archives reject the Go default.
func (pm *ProxyManager) GetUserAgent() string {
	return pm.userAgent
}

// -----------------------------------------------------------------------------

// FormatProxy adds an http:// scheme to bare host:port entries.
func FormatProxy(p string) string {
	p = strings.TrimSpace(p)
	if !strings.Contains(p, "://") {
		return "http://" + p
	}
	return p
}

// -----------------------------------------------------------------------------

func ValidateProxy(p string) bool {
	p = strings.TrimSpace(p)
	if p == "" {
		return false
	}
	u, err := url.Parse(FormatProxy(p))
	if err != nil {
		return false
	}
	return u.Host != "" && u.Port() != ""
}
