package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service applies validated changes on top of reconciled preferences.
type Service struct {
	store    Store
	defaults Preferences
	logger   *slog.Logger
	now      func() time.Time
	// serializes read-modify-write per process
	mu sync.Mutex
}

func NewService(store Store, defaults Preferences, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, defaults: defaults, logger: logger, now: time.Now}
}

func (s *Service) Defaults() Preferences {
	d := s.defaults
	d.Layers = append([]Layer(nil), d.Layers...)
	return d
}

// Get returns the client's preferences, or defaults when nothing is stored
// or the stored document is unreadable.
func (s *Service) Get(ctx context.Context, client string) (Preferences, error) {
	stored, ok, err := s.store.Load(ctx, client)
	if err != nil {
		s.logger.WarnContext(ctx, "preferences load failed, using defaults", "client", client, "err", err)
		return s.Defaults(), nil
	}
	if !ok {
		return s.Defaults(), nil
	}
	return Reconcile(stored, s.defaults), nil
}

func (s *Service) UpdateLayer(ctx context.Context, client, id string, patch LayerPatch) (Preferences, error) {
	return s.modify(ctx, client, func(p *Preferences) error { return p.UpdateLayer(id, patch) })
}

func (s *Service) SetBaseMap(ctx context.Context, client, name string) (Preferences, error) {
	return s.modify(ctx, client, func(p *Preferences) error { return p.SetBaseMap(name) })
}

// Reset forgets the client's preferences and returns the defaults.
func (s *Service) Reset(ctx context.Context, client string) (Preferences, error) {
	if err := s.store.Reset(ctx, client); err != nil {
		return Preferences{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.Defaults(), nil
}

func (s *Service) modify(ctx context.Context, client string, fn func(*Preferences) error) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.current(ctx, client)
	if err != nil {
		return Preferences{}, err
	}
	if err := fn(&p); err != nil {
		return Preferences{}, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, client, p); err != nil {
		return Preferences{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return p, nil
}

// current is the base a change applies to. Only a corrupt document is
// replaced by defaults; a failed read aborts so nothing stored is lost.
func (s *Service) current(ctx context.Context, client string) (Preferences, error) {
	stored, ok, err := s.store.Load(ctx, client)
	switch {
	case errors.Is(err, ErrCorrupt):
		s.logger.WarnContext(ctx, "stored preferences unreadable, starting from defaults", "client", client, "err", err)
		return s.Defaults(), nil
	case err != nil:
		return Preferences{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case !ok:
		return s.Defaults(), nil
	}
	return Reconcile(stored, s.defaults), nil
}
