package kafkaconsumer

import (
	"fmt"
	"slices"

	"github.com/IBM/sarama"
)

// groupHandler feeds one consumer-group session into its Consumer.
type groupHandler struct{ c *Consumer }

func (h groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	var parts []int32
	for _, ps := range s.Claims() {
		parts = append(parts, ps...)
	}
	slices.Sort(parts)
	parts = slices.Compact(parts)
	h.c.partitions.Store(&parts)
	return nil
}

func (h groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.c.partitions.Store(nil)
	return nil
}

// ConsumeClaim marks a message only after it was applied; a failure ends
// the claim so the message is redelivered after the next rebalance.
func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	msgs := claim.Messages()
	for {
		var msg *sarama.ConsumerMessage
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			msg = m
		}
		if err := h.c.ProcessOne(ctx, msg); err != nil {
			return fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
		}
		sess.MarkMessage(msg, "")
	}
}
