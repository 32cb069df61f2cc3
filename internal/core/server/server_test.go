package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/config"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/health"
)

type pingRoutes struct{}

func (pingRoutes) Routes(r chi.Router) {
	r.Get("/api/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })
	r.Get("/api/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestNewHandler_MountsProbesAndAPI(t *testing.T) {
	ready := false
	h := NewHandler(config.Config{MetricsEnabled: true}, nil, pingRoutes{}, map[string]health.ReadinessReporter{
		"datasets": health.ReporterFunc(func() (bool, any) { return ready, nil }),
	})

	if rr := get(h, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz=%d", rr.Code)
	}
	if rr := get(h, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before ready=%d", rr.Code)
	}
	ready = true
	if rr := get(h, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz=%d", rr.Code)
	}
	rr := get(h, "/api/ping")
	if rr.Code != http.StatusOK || rr.Body.String() != "pong" {
		t.Fatalf("ping=%d %q", rr.Code, rr.Body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	if rr := get(h, "/metrics"); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("metrics=%d", rr.Code)
	}
	if rr := get(h, "/api/boom"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("panic status=%d", rr.Code)
	}
}

func TestNewHandler_MetricsDisabled(t *testing.T) {
	h := NewHandler(config.Config{}, nil, pingRoutes{}, nil)
	if rr := get(h, "/metrics"); rr.Code != http.StatusNotFound {
		t.Fatalf("metrics=%d want 404", rr.Code)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, config.Config{Addr: "127.0.0.1:0"}, nil, pingRoutes{}, nil)
	}()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_ReturnsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	err = Run(context.Background(), config.Config{Addr: ln.Addr().String()}, nil, pingRoutes{}, nil)
	if err == nil {
		t.Fatal("want error for address in use")
	}
}
