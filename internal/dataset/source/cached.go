package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/obras-dashboard/internal/cache/keys"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/observability"
)

// KV is the subset of redisstore.Client used for raw file sharing.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

// Shared puts a Redis-backed cache of raw file bytes in front of s so
// several replicas do not all hit the upstream source. Redis failures
// degrade to a direct fetch.
type Shared struct {
	next      Source
	kv        KV
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger
}

func NewShared(next Source, kv KV, ttl, opTimeout time.Duration, logger *slog.Logger) *Shared {
	if logger == nil {
		logger = slog.Default()
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &Shared{next: next, kv: kv, ttl: ttl, opTimeout: opTimeout, logger: logger}
}

func (s *Shared) Name() string { return s.next.Name() }

func (s *Shared) Fetch(ctx context.Context, p string) ([]byte, error) {
	key := keys.Raw(s.next.Name(), p)

	if !bypass(ctx) {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		b, ok, err := s.kv.Get(opCtx, key)
		cancel()
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "shared cache read failed", "key", key, "err", err)
		case ok:
			observability.IncCacheHit("redis")
			return b, nil
		default:
			observability.IncCacheMiss("redis")
		}
	}

	b, err := s.next.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.kv.Set(opCtx, key, b, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "shared cache write failed", "key", key, "err", err)
	}
	return b, nil
}

func (s *Shared) Forget(ctx context.Context, p string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.kv.Del(opCtx, keys.Raw(s.next.Name(), p))
}

func (s *Shared) ForgetAll(ctx context.Context) (int, error) {
	return s.kv.DelPrefix(ctx, keys.RawPrefix(s.next.Name()))
}
