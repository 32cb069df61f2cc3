package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/config"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/dataset/source"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/coords"
	"github.com/mohammed-shakir/obras-dashboard/internal/invalidation"
)

type fakeTarget struct {
	mu          sync.Mutex
	cat         *dataset.Catalog
	refreshed   []string
	invalidated []string
	failRefresh int
}

func newFakeTarget() *fakeTarget { return &fakeTarget{cat: dataset.DefaultCatalog()} }

func (f *fakeTarget) Refresh(_ context.Context, id string) (model.DatasetStatus, error) {
	if _, err := f.cat.Lookup(id); err != nil {
		return model.DatasetStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRefresh > 0 {
		f.failRefresh--
		return model.DatasetStatus{ID: id, State: model.StateError}, errors.New("upstream down")
	}
	f.refreshed = append(f.refreshed, id)
	return model.DatasetStatus{ID: id, State: model.StateOK}, nil
}

func (f *fakeTarget) RefreshAll(_ context.Context) []model.DatasetStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, invalidation.AllDatasets)
	return nil
}

func (f *fakeTarget) InvalidateAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, invalidation.AllDatasets)
	return nil
}

func (f *fakeTarget) Invalidate(id string) error {
	if _, err := f.cat.Lookup(id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, id)
	return nil
}

type sess struct {
	ctx    context.Context
	claims map[string][]int32
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return s.claims }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "dataset-updates" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(op invalidation.Op, ds string, seq uint64) []byte {
	b, _ := json.Marshal(invalidation.Event{Version: 1, Op: op, Dataset: ds, TS: time.Now().UTC(), Seq: seq})
	return b
}

func msg(off int64, v []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "dataset-updates", Offset: off, Value: v}
}

func consume(t *testing.T, c *Consumer, msgs ...*sarama.ConsumerMessage) (*sess, error) {
	t.Helper()
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	err := c.handler().ConsumeClaim(s, &claim{msgs: ch})
	return s, err
}

func TestConsume_OrderAndCommitAfterWork(t *testing.T) {
	ft := newFakeTarget()
	c := New(Config{}, nil, nil, ft)

	s, err := consume(t, c,
		msg(10, eventBytes(invalidation.OpRefresh, "equipamientos", 1)),
		msg(11, eventBytes(invalidation.OpInvalidate, "comunas", 1)),
		msg(12, []byte(`{garbage`)),
		msg(13, eventBytes(invalidation.OpRefresh, "no-such", 1)),
	)
	if err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 4 || s.marked[0] != 10 || s.marked[3] != 13 {
		t.Fatalf("marked=%v want [10 11 12 13]", s.marked)
	}
	if len(ft.refreshed) != 1 || ft.refreshed[0] != "equipamientos" {
		t.Fatalf("refreshed=%v", ft.refreshed)
	}
	if len(ft.invalidated) != 1 || ft.invalidated[0] != "comunas" {
		t.Fatalf("invalidated=%v", ft.invalidated)
	}
}

func TestConsume_SkipsStaleSequences(t *testing.T) {
	ft := newFakeTarget()
	c := New(Config{}, nil, nil, ft)

	_, err := consume(t, c,
		msg(1, eventBytes(invalidation.OpRefresh, "equipamientos", 5)),
		msg(2, eventBytes(invalidation.OpRefresh, "equipamientos", 5)),
		msg(3, eventBytes(invalidation.OpRefresh, "equipamientos", 4)),
		msg(4, eventBytes(invalidation.OpRefresh, "comunas", 4)),
		msg(5, eventBytes(invalidation.OpRefresh, "equipamientos", 0)),
		msg(6, eventBytes(invalidation.OpRefresh, "equipamientos", 0)),
	)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"equipamientos", "comunas", "equipamientos", "equipamientos"}
	if len(ft.refreshed) != len(want) {
		t.Fatalf("refreshed=%v want %v", ft.refreshed, want)
	}
	for i := range want {
		if ft.refreshed[i] != want[i] {
			t.Fatalf("refreshed=%v want %v", ft.refreshed, want)
		}
	}
}

func TestConsume_FailedRefreshIsRetried(t *testing.T) {
	ft := newFakeTarget()
	ft.failRefresh = 1
	c := New(Config{}, nil, nil, ft)
	m := msg(5, eventBytes(invalidation.OpRefresh, "equipamientos", 9))

	s, err := consume(t, c, m)
	if err == nil || len(s.marked) != 0 {
		t.Fatalf("first attempt err=%v marked=%v", err, s.marked)
	}
	s, err = consume(t, c, m)
	if err != nil || len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("retry err=%v marked=%v", err, s.marked)
	}
	if len(ft.refreshed) != 1 {
		t.Fatalf("refreshed=%v", ft.refreshed)
	}
}

func TestConsume_Wildcards(t *testing.T) {
	ft := newFakeTarget()
	c := New(Config{}, nil, nil, ft)
	if _, err := consume(t, c,
		msg(1, eventBytes(invalidation.OpInvalidate, invalidation.AllDatasets, 0)),
		msg(2, eventBytes(invalidation.OpRefresh, invalidation.AllDatasets, 0)),
	); err != nil {
		t.Fatal(err)
	}
	if len(ft.invalidated) != 1 || ft.invalidated[0] != invalidation.AllDatasets {
		t.Fatalf("invalidated=%v", ft.invalidated)
	}
	if len(ft.refreshed) != 1 || ft.refreshed[0] != invalidation.AllDatasets {
		t.Fatalf("refreshed=%v", ft.refreshed)
	}
}

func TestReadiness_TracksAssignment(t *testing.T) {
	c := New(Config{}, nil, nil, newFakeTarget())
	if ok, _ := c.Readiness(); ok {
		t.Fatal("ready before assignment")
	}
	h := c.handler()
	s := &sess{ctx: t.Context(), claims: map[string][]int32{"dataset-updates": {2, 0}}}
	_ = h.Setup(s)
	ok, detail := c.Readiness()
	parts := detail.(map[string]any)["partitions"].([]int32)
	if !ok || len(parts) != 2 || parts[0] != 0 || parts[1] != 2 {
		t.Fatalf("ready=%v detail=%v", ok, detail)
	}
	_ = h.Cleanup(s)
	if ok, _ := c.Readiness(); ok {
		t.Fatal("ready after cleanup")
	}
}

func TestProcessOne_InvalidatesLoaderDataset(t *testing.T) {
	fsys := fstest.MapFS{
		"cartografia_base/comunas_corregimientos.geojson": {Data: []byte(`{"type":"FeatureCollection","features":[]}`)},
	}
	l, err := dataset.NewLoader(dataset.DefaultCatalog(), source.NewFS(fsys), coords.NewCali(), dataset.Options{})
	if err != nil {
		t.Fatal(err)
	}
	l.Load(context.Background(), "comunas")
	if st, _ := l.Status("comunas"); st.State != model.StateOK {
		t.Fatalf("state=%q", st.State)
	}

	c := New(Config{}, nil, nil, l)
	if err := c.ProcessOne(context.Background(), msg(1, eventBytes(invalidation.OpInvalidate, "comunas", 1))); err != nil {
		t.Fatal(err)
	}
	if st, _ := l.Status("comunas"); st.State != model.StatePending {
		t.Fatalf("state=%q want pending", st.State)
	}
	if err := c.ProcessOne(context.Background(), msg(2, eventBytes(invalidation.OpRefresh, "comunas", 2))); err != nil {
		t.Fatal(err)
	}
	if st, _ := l.Status("comunas"); st.State != model.StateOK {
		t.Fatalf("state=%q want ok", st.State)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(configFor("a:9092, b:9092,,"))
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" || cfg.Topic != "dataset-updates" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func configFor(brokers string) config.InvalidationCfg {
	return config.InvalidationCfg{Enabled: true, Brokers: brokers, Topic: "dataset-updates", GroupID: "g"}
}
