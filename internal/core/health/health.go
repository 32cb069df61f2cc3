// Package health serves liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// ReadinessReporter is one component gating readiness. Detail is included
// in the probe body.
type ReadinessReporter interface {
	Readiness() (ready bool, detail any)
}

// ReporterFunc adapts a function to ReadinessReporter.
type ReporterFunc func() (bool, any)

func (f ReporterFunc) Readiness() (bool, any) { return f() }

// Readiness is ready when every reporter is.
func Readiness(reporters map[string]ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type check struct {
			Name   string `json:"name"`
			Ready  bool   `json:"ready"`
			Detail any    `json:"detail,omitempty"`
		}
		type resp struct {
			Status string  `json:"status"`
			Checks []check `json:"checks"`
		}
		names := make([]string, 0, len(reporters))
		for n := range reporters {
			names = append(names, n)
		}
		sort.Strings(names)

		out := resp{Status: "ready", Checks: make([]check, 0, len(names))}
		for _, n := range names {
			ok, detail := reporters[n].Readiness()
			if !ok {
				out.Status = "not_ready"
			}
			out.Checks = append(out.Checks, check{Name: n, Ready: ok, Detail: detail})
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
