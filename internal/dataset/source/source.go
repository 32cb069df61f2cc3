// Package source fetches raw dataset files from a local directory, an HTTP
// base URL or an S3-compatible bucket.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/config"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/observability"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidPath = errors.New("invalid file path")
	ErrTooLarge    = errors.New("file exceeds size limit")
)

// MaxFileSize caps a single dataset file.
const MaxFileSize = 64 << 20

type Source interface {
	// Fetch returns the bytes of the file at the slash-separated path p.
	Fetch(ctx context.Context, p string) ([]byte, error)
	Name() string
}

// Forgetter is implemented by sources that keep copies of fetched files.
type Forgetter interface {
	// Forget drops the copy of p.
	Forget(ctx context.Context, p string) error
	// ForgetAll drops every copy and reports how many were dropped.
	ForgetAll(ctx context.Context) (int, error)
}

type Factory func(cfg config.Config, logger *slog.Logger) (Source, error)

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

func Names() []string {
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func New(name string, cfg config.Config, logger *slog.Logger) (Source, error) {
	f, ok := reg[name]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q (have %v)", name, Names())
	}
	return f(cfg, logger)
}

// Instrumented records fetch latency per source.
func Instrumented(s Source) Source { return instrumented{s} }

type instrumented struct{ Source }

func (i instrumented) Fetch(ctx context.Context, p string) ([]byte, error) {
	start := time.Now()
	b, err := i.Source.Fetch(ctx, p)
	observability.ObserveSourceFetch(i.Name(), err, time.Since(start).Seconds())
	return b, err
}

type ctxKey struct{}

// WithBypass marks ctx so shared caches in front of a source are skipped and
// overwritten.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, true)
}

func bypass(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKey{}).(bool)
	return v
}
