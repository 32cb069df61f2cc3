// Package httpclient configures the HTTP client used to download dataset
// files from a remote origin.
package httpclient

import (
	"net"
	"net/http"
	"time"

	mylog "github.com/mohammed-shakir/obras-dashboard/internal/logger"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "obras-dashboard"
)

type options struct {
	timeout   time.Duration
	userAgent string
}

type Option func(*options)

// WithTimeout bounds a whole download, body included.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// NewOutbound creates the client for dataset downloads: few hosts, large
// bodies, compressed transfer.
func NewOutbound(opts ...Option) *http.Client {
	o := options{timeout: DefaultTimeout, userAgent: DefaultUserAgent}
	for _, f := range opts {
		f(&o)
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: &headers{next: transport, userAgent: o.userAgent},
		Timeout:   o.timeout,
	}
}

// headers stamps the user agent and forwards the request id.
type headers struct {
	next      http.RoundTripper
	userAgent string
}

func (h *headers) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", h.userAgent)
	}
	if id := mylog.RequestID(r.Context()); id != "" && r.Header.Get("X-Request-ID") == "" {
		r.Header.Set("X-Request-ID", id)
	}
	return h.next.RoundTrip(r)
}
