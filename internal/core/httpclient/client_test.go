package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mylog "github.com/mohammed-shakir/obras-dashboard/internal/logger"
)

func TestNewOutbound_StampsHeaders(t *testing.T) {
	var ua, reqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		reqID = r.Header.Get("X-Request-ID")
	}))
	defer srv.Close()

	c := NewOutbound(WithUserAgent("obras-test/1"), WithTimeout(2*time.Second))
	if c.Timeout != 2*time.Second {
		t.Fatalf("timeout=%v", c.Timeout)
	}
	ctx := mylog.WithRequestID(context.Background(), "abc123")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if ua != "obras-test/1" || reqID != "abc123" {
		t.Fatalf("ua=%q request_id=%q", ua, reqID)
	}
}

func TestNewOutbound_Defaults(t *testing.T) {
	c := NewOutbound(WithTimeout(0), WithUserAgent(""))
	if c.Timeout != DefaultTimeout {
		t.Fatalf("timeout=%v", c.Timeout)
	}
	if h, ok := c.Transport.(*headers); !ok || h.userAgent != DefaultUserAgent {
		t.Fatalf("transport=%T", c.Transport)
	}
}
