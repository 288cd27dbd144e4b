// File: internal/network/httpclient.go
package network

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/tanmaysk001/Browser-Agent/internal/config"
)

// Default transport settings for fetching files outside the browser.
const (
	DefaultDialTimeout           = 10 * time.Second
	DefaultKeepAliveInterval     = 15 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultRequestTimeout        = 5 * time.Minute
	DefaultMaxIdleConns          = 20
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultMaxRedirects          = 10
)

// ClientConfig holds the configuration for the HTTP client and transport layers.
type ClientConfig struct {
	// IgnoreTLSErrors skips certificate verification, matching a browser
	// started with its web security disabled.
	IgnoreTLSErrors bool
	// UserAgent is sent on every request so servers treat downloads like
	// the pages the agent browsed.
	UserAgent string

	RequestTimeout        time.Duration
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	MaxIdleConns          int
	IdleConnTimeout       time.Duration
	MaxRedirects          int
	ForceHTTP2            bool

	Logger *zap.Logger
}

// NewDefaultClientConfig creates a configuration suitable for file downloads.
func NewDefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		UserAgent:             config.DefaultUserAgent,
		RequestTimeout:        DefaultRequestTimeout,
		DialTimeout:           DefaultDialTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          DefaultMaxIdleConns,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		MaxRedirects:          DefaultMaxRedirects,
		ForceHTTP2:            true,
	}
}

// ClientConfigFromBrowser derives the download client settings from the
// browser settings.
func ClientConfigFromBrowser(cfg config.BrowserConfig, logger *zap.Logger) *ClientConfig {
	c := NewDefaultClientConfig()
	c.IgnoreTLSErrors = cfg.DisableSecurity
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		c.ResponseHeaderTimeout = cfg.Timeout
	}
	c.Logger = logger
	return c
}

// NewHTTPTransport creates and configures an http.Transport based on the provided configuration.
func NewHTTPTransport(cfg *ClientConfig) *http.Transport {
	if cfg == nil {
		cfg = NewDefaultClientConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       configureTLS(cfg),
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ForceAttemptHTTP2:     cfg.ForceHTTP2,
	}

	if cfg.ForceHTTP2 {
		// http2.ConfigureTransport modifies the transport in place to add HTTP/2 support.
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
		}
	}
	return transport
}

// NewClient creates the client the download tool fetches files with.
// Redirects are followed up to MaxRedirects.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = NewDefaultClientConfig()
	}
	maxRedirects := cfg.MaxRedirects

	return &http.Client{
		Transport: &userAgentTransport{base: NewHTTPTransport(cfg), userAgent: cfg.UserAgent},
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("stopped after too many redirects")
			}
			return nil
		},
	}
}

// userAgentTransport sets the User-Agent header unless the request already has one.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

func configureTLS(cfg *ClientConfig) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Enable a session resumption cache for performance on subsequent connections.
		ClientSessionCache: tls.NewLRUClientSessionCache(64),
		InsecureSkipVerify: cfg.IgnoreTLSErrors,
	}
}
