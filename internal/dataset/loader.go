package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/obras-dashboard/internal/cache/datacache"
	"github.com/mohammed-shakir/obras-dashboard/internal/cache/keys"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/observability"
	"github.com/mohammed-shakir/obras-dashboard/internal/dataset/source"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/coords"
	"github.com/mohammed-shakir/obras-dashboard/internal/logger"
)

const forgetTimeout = 2 * time.Second

// Dataset is one loaded file.
type Dataset struct {
	Entry Entry
	*Result
	Hash     string
	LoadedAt time.Time
	Duration time.Duration
}

type Options struct {
	Workers   int
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// Loader fetches, validates and normalizes catalog files and keeps the last
// good copy of each in a datacache.
type Loader struct {
	cat     *Catalog
	src     source.Source
	norm    Normalizer
	cache   *datacache.Cache[*Dataset]
	workers int
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	statuses map[string]model.DatasetStatus
	loaded   atomic.Bool

	mergeMu   sync.Mutex
	mergeKey  string
	merged    []model.ProjectUnit
	mergeStat MergeStats
}

func NewLoader(cat *Catalog, src source.Source, corr *coords.Corrector, opts Options) (*Loader, error) {
	if cat == nil || src == nil {
		return nil, errors.New("loader: catalog and source are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	l := &Loader{
		cat:      cat,
		src:      src,
		norm:     Normalizer{Corrector: corr},
		workers:  opts.Workers,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With("component", "dataset"),
		statuses: make(map[string]model.DatasetStatus),
	}
	for _, e := range cat.Entries() {
		l.statuses[e.ID] = model.DatasetStatus{ID: e.ID, Kind: string(e.Kind), State: model.StatePending}
	}
	c, err := datacache.New(opts.CacheSize, l.fetch,
		datacache.WithTTL[*Dataset](opts.CacheTTL),
		datacache.WithLogger[*Dataset](l.logger))
	if err != nil {
		return nil, err
	}
	l.cache = c
	return l, nil
}

func (l *Loader) Catalog() *Catalog { return l.cat }

// Source is the underlying file source.
func (l *Loader) Source() source.Source { return l.src }

// fetch is the datacache load function: fetch, validate, normalize.
func (l *Loader) fetch(ctx context.Context, id string) (*Dataset, error) {
	e, err := l.cat.Lookup(id)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithDataset(ctx, id)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	ds, err := l.parse(ctx, e)
	dur := time.Since(start)
	if err != nil {
		observability.ObserveDatasetLoad(id, err, 0)
		l.recordFailure(e, err, dur)
		l.logger.ErrorContext(ctx, "dataset load failed", "path", e.Path, "err", err)
		return nil, err
	}
	ds.Duration = dur
	observability.ObserveDatasetLoad(id, nil, ds.Len())
	observability.AddCoordOutcomes(id, ds.Coords.Swapped, ds.Coords.Unchanged, ds.Coords.Invalid)
	l.recordSuccess(ds)
	l.logger.InfoContext(ctx, "dataset loaded",
		"records", ds.Len(), "swapped", ds.Coords.Swapped,
		"invalid", ds.Coords.Invalid, "dropped", ds.Dropped, "took", dur)
	if ds.Coords.Invalid > 0 {
		l.logger.WarnContext(ctx, "invalid coordinates",
			"count", ds.Coords.Invalid, "sample", fmt.Sprint(ds.Coords.InvalidPairs))
	}
	return ds, nil
}

func (l *Loader) parse(ctx context.Context, e Entry) (*Dataset, error) {
	raw, err := l.src.Fetch(ctx, e.Path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", e.Path, err)
	}
	res, err := l.norm.Parse(e, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", e.Path, err)
	}
	return &Dataset{Entry: e, Result: res, Hash: keys.Content(raw), LoadedAt: time.Now()}, nil
}

func (l *Loader) recordSuccess(ds *Dataset) {
	st := model.DatasetStatus{
		ID:           ds.Entry.ID,
		Kind:         string(ds.Entry.Kind),
		State:        model.StateOK,
		Records:      ds.Len(),
		Swapped:      ds.Coords.Swapped,
		Invalid:      ds.Coords.Invalid,
		Fallbacks:    ds.Fallbacks,
		Dropped:      ds.Dropped,
		Hash:         ds.Hash,
		LoadedAt:     ds.LoadedAt,
		LoadDuration: ds.Duration.Round(time.Millisecond).String(),
	}
	l.mu.Lock()
	l.statuses[st.ID] = st
	l.mu.Unlock()
}

func (l *Loader) recordFailure(e Entry, err error, dur time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.statuses[e.ID]
	st.ID, st.Kind = e.ID, string(e.Kind)
	st.Error = err.Error()
	st.LoadDuration = dur.Round(time.Millisecond).String()
	if _, ok := l.cache.Peek(e.ID); ok {
		st.State = model.StateStale
	} else {
		st.State = model.StateError
		st.Records = 0
	}
	l.statuses[e.ID] = st
}

// Load fetches the given datasets (all catalog entries when none are named)
// with bounded parallelism. One file's failure never blocks the others; the
// returned statuses follow the order of ids.
func (l *Loader) Load(ctx context.Context, ids ...string) []model.DatasetStatus {
	if len(ids) == 0 {
		ids = l.cat.IDs()
	}
	var g errgroup.Group
	g.SetLimit(l.workers)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := l.cat.Lookup(id); err != nil {
				l.logger.WarnContext(ctx, "skipping unknown dataset", "dataset", id)
				return nil
			}
			_, _ = l.cache.Refresh(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	l.loaded.Store(true)

	out := make([]model.DatasetStatus, 0, len(ids))
	for _, id := range ids {
		if st, ok := l.Status(id); ok {
			out = append(out, st)
		}
	}
	return out
}

// Refresh reloads one dataset from its origin, skipping shared caches.
func (l *Loader) Refresh(ctx context.Context, id string) (model.DatasetStatus, error) {
	if _, err := l.cat.Lookup(id); err != nil {
		return model.DatasetStatus{}, err
	}
	_, err := l.cache.Refresh(source.WithBypass(ctx), id)
	st, _ := l.Status(id)
	return st, err
}

// RefreshAll reloads every catalog dataset from its origin.
func (l *Loader) RefreshAll(ctx context.Context) []model.DatasetStatus {
	return l.Load(source.WithBypass(ctx))
}

// Invalidate drops the cached copy, and the shared raw copy when the
// source keeps one; the next read loads it again.
func (l *Loader) Invalidate(id string) error {
	e, err := l.cat.Lookup(id)
	if err != nil {
		return err
	}
	l.drop(id)
	if f, ok := l.src.(source.Forgetter); ok {
		ctx, cancel := context.WithTimeout(context.Background(), forgetTimeout)
		defer cancel()
		if err := f.Forget(ctx, e.Path); err != nil {
			l.logger.Warn("shared copy not dropped", "dataset", id, "err", err)
		}
	}
	return nil
}

// InvalidateAll drops every cached and shared copy.
func (l *Loader) InvalidateAll() error {
	for _, id := range l.cat.IDs() {
		l.drop(id)
	}
	if f, ok := l.src.(source.Forgetter); ok {
		ctx, cancel := context.WithTimeout(context.Background(), forgetTimeout)
		defer cancel()
		n, err := f.ForgetAll(ctx)
		if err != nil {
			return fmt.Errorf("drop shared copies: %w", err)
		}
		l.logger.Info("shared copies dropped", "keys", n)
	}
	return nil
}

func (l *Loader) drop(id string) {
	l.cache.Invalidate(id)
	l.mu.Lock()
	st := l.statuses[id]
	st.State = model.StatePending
	l.statuses[id] = st
	l.mu.Unlock()
}

func (l *Loader) Status(id string) (model.DatasetStatus, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st, ok := l.statuses[id]
	return st, ok
}

// Statuses lists per-dataset status in catalog order.
func (l *Loader) Statuses() []model.DatasetStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.DatasetStatus, 0, len(l.statuses))
	for _, id := range l.cat.IDs() {
		out = append(out, l.statuses[id])
	}
	return out
}

// Ready is true once the first Load finished with at least one usable
// dataset.
func (l *Loader) Ready() bool {
	if !l.loaded.Load() {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, st := range l.statuses {
		if st.State == model.StateOK || st.State == model.StateStale {
			return true
		}
	}
	return false
}

// Get returns the dataset, loading it on first use.
func (l *Loader) Get(ctx context.Context, id string) (*Dataset, error) {
	if _, err := l.cat.Lookup(id); err != nil {
		return nil, err
	}
	ds, err := l.cache.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotLoaded, id, err)
	}
	return ds, nil
}

func (l *Loader) ofKind(ctx context.Context, k model.DatasetKind) []*Dataset {
	var out []*Dataset
	for _, id := range l.cat.OfKind(k) {
		ds, err := l.Get(ctx, id)
		if err != nil {
			l.logger.DebugContext(ctx, "dataset unavailable", "dataset", id, "err", err)
			continue
		}
		out = append(out, ds)
	}
	return out
}

// Units returns the merged project units of every available units dataset.
// The merge is recomputed only when a member dataset changed.
func (l *Loader) Units(ctx context.Context) []model.ProjectUnit {
	sets := l.ofKind(ctx, model.KindUnits)
	var kb strings.Builder
	parts := make([][]model.ProjectUnit, 0, len(sets))
	for _, ds := range sets {
		kb.WriteString(ds.Entry.ID)
		kb.WriteByte('=')
		kb.WriteString(ds.Hash)
		kb.WriteByte(';')
		parts = append(parts, ds.Units)
	}
	key := kb.String()

	l.mergeMu.Lock()
	defer l.mergeMu.Unlock()
	if key != l.mergeKey || l.merged == nil {
		l.merged, l.mergeStat = MergeUnits(parts...)
		l.mergeKey = key
		if l.mergeStat.DedupByID+l.mergeStat.DedupByGH > 0 {
			l.logger.InfoContext(ctx, "merged units", "in", l.mergeStat.In, "out", l.mergeStat.Out,
				"dedup_id", l.mergeStat.DedupByID, "dedup_geom", l.mergeStat.DedupByGH)
		}
	}
	return l.merged
}

// Unit finds a merged unit by ID.
func (l *Loader) Unit(ctx context.Context, id string) (model.ProjectUnit, bool) {
	for _, u := range l.Units(ctx) {
		if u.ID == id {
			return u, true
		}
	}
	return model.ProjectUnit{}, false
}

func (l *Loader) Incidents(ctx context.Context) []model.Incident {
	var out []model.Incident
	for _, ds := range l.ofKind(ctx, model.KindIncident) {
		out = append(out, ds.Incidents...)
	}
	return out
}

func (l *Loader) Budget(ctx context.Context) []model.BudgetMovement {
	var out []model.BudgetMovement
	for _, ds := range l.ofKind(ctx, model.KindBudget) {
		out = append(out, ds.Budget...)
	}
	return out
}

// Snapshot is the unified in-memory model at one point in time.
type Snapshot struct {
	Units      []model.ProjectUnit
	Boundaries []model.Boundary
	Incidents  []model.Incident
	Budget     []model.BudgetMovement
	Statuses   []model.DatasetStatus
	LoadedAt   time.Time
}

func (l *Loader) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		Units:     l.Units(ctx),
		Incidents: l.Incidents(ctx),
		Budget:    l.Budget(ctx),
		Statuses:  l.Statuses(),
	}
	for _, ds := range l.ofKind(ctx, model.KindBoundary) {
		s.Boundaries = append(s.Boundaries, ds.Boundaries...)
	}
	for _, st := range s.Statuses {
		if st.LoadedAt.After(s.LoadedAt) {
			s.LoadedAt = st.LoadedAt
		}
	}
	return s
}
