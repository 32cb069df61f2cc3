package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/config"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/httpclient"
)

func init() {
	Register("http", func(cfg config.Config, _ *slog.Logger) (Source, error) {
		return NewHTTP(cfg.DataBaseURL, httpclient.NewOutbound(httpclient.WithTimeout(cfg.LoadTimeout)))
	})
}

// HTTP reads files relative to a base URL, e.g. the public data directory of
// the deployed dashboard.
type HTTP struct {
	base   *url.URL
	client *http.Client
}

func NewHTTP(base string, client *http.Client) (*HTTP, error) {
	if strings.TrimSpace(base) == "" {
		return nil, errors.New("DATA_BASE_URL is required for the http source")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme %q not supported", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = httpclient.NewOutbound()
	}
	return &HTTP{base: u, client: client}, nil
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) Fetch(ctx context.Context, p string) ([]byte, error) {
	rel, err := url.Parse(strings.TrimPrefix(p, "/"))
	if err != nil || rel.IsAbs() || rel.Host != "" || strings.Contains(p, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	target := h.base.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetching %s: status %d", target, resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", target, err)
	}
	if len(b) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, p)
	}
	return b, nil
}
