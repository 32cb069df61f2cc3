// Package kafkaconsumer applies dataset update events from Kafka to the
// dataset loader.
package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/model"
	obs "github.com/mohammed-shakir/obras-dashboard/internal/core/observability"
	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/invalidation"
	mylog "github.com/mohammed-shakir/obras-dashboard/internal/logger"
)

// Target is the part of the dataset loader events act on.
type Target interface {
	Refresh(ctx context.Context, id string) (model.DatasetStatus, error)
	RefreshAll(ctx context.Context) []model.DatasetStatus
	Invalidate(id string) error
	InvalidateAll() error
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	zlog   *zerolog.Logger
	target Target
	seq    *seqDedupe

	// partitions is nil while no session holds an assignment.
	partitions atomic.Pointer[[]int32]

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, logger *slog.Logger, zl *zerolog.Logger, target Target) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if zl == nil {
		nop := zerolog.Nop()
		zl = &nop
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		zlog:   zl,
		target: target,
		seq:    newSeqDedupe(1024),
	}
}

func (c *Consumer) handler() groupHandler { return groupHandler{c: c} }

// Start joins the consumer group and consumes in the background until ctx
// is done or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.target == nil {
		return errors.New("kafkaconsumer: missing target")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" {
		return errors.New("kafkaconsumer: brokers and topic are required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(mylog.WithComponent(ctx, "kafka_consumer"))
	c.cancel = cancel
	h := c.handler()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.logger.Error("kafka consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil {
				mylog.FromContext(ctx, c.zlog).Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			c.logger.Error("kafka group error", "err", err)
		}
	}()

	c.logger.Info("dataset update consumer started",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)
	return nil
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("dataset update consumer stopped")
}

// Readiness reports whether partitions are assigned, and which.
func (c *Consumer) Readiness() (bool, any) {
	p := c.partitions.Load()
	if p == nil {
		return false, map[string]any{"partitions": []int32{}}
	}
	return true, map[string]any{"partitions": slices.Clone(*p)}
}

// ProcessOne applies a single message. Malformed, duplicate and unknown
// dataset events are dropped; a failed refresh returns an error so the
// message is not marked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ev, err := invalidation.Decode(msg.Value)
	if err != nil {
		obs.IncInvalidation("decode", err)
		mylog.FromContext(ctx, c.zlog).Warn().Err(err).
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("dropping malformed event")
		return nil
	}
	ctx = mylog.WithDataset(ctx, ev.Dataset)

	if c.seq.seen(ev.Dataset, ev.Seq) {
		obs.IncInvalidation("duplicate", nil)
		c.logger.DebugContext(ctx, "skipping already applied event", "seq", ev.Seq)
		return nil
	}

	err = c.apply(ctx, ev)
	switch {
	case errors.Is(err, dataset.ErrUnknownDataset):
		obs.IncInvalidation(string(ev.Op), err)
		c.logger.WarnContext(ctx, "event for unknown dataset", "op", ev.Op)
		return nil
	case err != nil:
		obs.IncInvalidation(string(ev.Op), err)
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("op", string(ev.Op)).
			Uint64("seq", ev.Seq).
			Msg("dataset update failed")
		return err
	}
	c.seq.record(ev.Dataset, ev.Seq)
	obs.IncInvalidation(string(ev.Op), nil)
	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "dataset_update").
		Str("op", string(ev.Op)).
		Uint64("seq", ev.Seq).
		Msg("applied dataset update")
	return nil
}

func (c *Consumer) apply(ctx context.Context, ev invalidation.Event) error {
	switch ev.Op {
	case invalidation.OpRefresh:
		if ev.All() {
			failed := 0
			for _, st := range c.target.RefreshAll(ctx) {
				if st.State != model.StateOK {
					failed++
				}
			}
			if failed > 0 {
				c.logger.WarnContext(ctx, "refresh left datasets degraded", "failed", failed)
			}
			return nil
		}
		_, err := c.target.Refresh(ctx, ev.Dataset)
		return err
	case invalidation.OpInvalidate:
		if ev.All() {
			return c.target.InvalidateAll()
		}
		return c.target.Invalidate(ev.Dataset)
	}
	return fmt.Errorf("%w: op %q", invalidation.ErrInvalidEvent, ev.Op)
}
