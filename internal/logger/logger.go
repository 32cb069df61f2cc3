// Package logger builds the service's zerolog logger and carries
// request-scoped fields through context.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	SampleN   int
	Service   string
	Component string
}

type field int

const (
	fieldRequestID field = iota
	fieldClient
	fieldComponent
	fieldDataset
)

// fieldNames is also the order fields are written in.
var fieldNames = [...]string{
	fieldRequestID: "request_id",
	fieldClient:    "client_id",
	fieldComponent: "component",
	fieldDataset:   "dataset",
}

func with(ctx context.Context, f field, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, f, v)
}

func value(ctx context.Context, f field) string {
	s, _ := ctx.Value(f).(string)
	return s
}

// WithRequestID stores id, or a fresh one when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewID()
	}
	return with(ctx, fieldRequestID, id)
}

func RequestID(ctx context.Context) string { return value(ctx, fieldRequestID) }

func WithClient(ctx context.Context, client string) context.Context {
	return with(ctx, fieldClient, client)
}

func WithComponent(ctx context.Context, component string) context.Context {
	return with(ctx, fieldComponent, component)
}

func WithDataset(ctx context.Context, dataset string) context.Context {
	return with(ctx, fieldDataset, dataset)
}

func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level; anything unknown
// is info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Build configures zerolog's global field names and level and returns the
// root logger writing to out (stdout when nil).
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	zl := zerolog.New(out)
	if cfg.SampleN > 1 {
		n := uint32(math.MaxUint32)
		if int64(cfg.SampleN) < math.MaxUint32 {
			n = uint32(cfg.SampleN)
		}
		zl = zl.Sample(&zerolog.BasicSampler{N: n})
	}

	c := zl.With().Timestamp()
	if cfg.Service != "" {
		c = c.Str("service", cfg.Service)
	}
	if cfg.Component != "" {
		c = c.Str("component", cfg.Component)
	}
	return c.Logger()
}

// FromContext derives a child of parent carrying the context fields. A nil
// parent discards.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	base := zerolog.Nop()
	if parent != nil {
		base = *parent
	}
	c := base.With()
	for f, name := range fieldNames {
		if v := value(ctx, field(f)); v != "" {
			c = c.Str(name, v)
		}
	}
	l := c.Logger()
	return &l
}
