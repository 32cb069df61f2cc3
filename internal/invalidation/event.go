// Package invalidation defines the dataset update events published when the
// upstream files change.
package invalidation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Op string

const (
	OpRefresh    Op = "refresh"
	OpInvalidate Op = "invalidate"
)

// AllDatasets targets every catalog entry.
const AllDatasets = "*"

var ErrInvalidEvent = errors.New("invalid event")

type Event struct {
	Version int       `json:"version"`
	Op      Op        `json:"op"`
	Dataset string    `json:"dataset"`
	TS      time.Time `json:"ts"`
	// Seq orders events per dataset; 0 means unsequenced.
	Seq    uint64 `json:"seq,omitempty"`
	Source string `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("%w: version must be 1", ErrInvalidEvent)
	}
	switch e.Op {
	case OpRefresh, OpInvalidate:
	default:
		return fmt.Errorf("%w: op must be refresh|invalidate", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Dataset) == "" {
		return fmt.Errorf("%w: dataset is required", ErrInvalidEvent)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("%w: ts is required", ErrInvalidEvent)
	}
	return nil
}

// All reports whether the event targets every dataset.
func (e Event) All() bool { return e.Dataset == AllDatasets }

// Decode parses and validates one message payload.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	ev.Dataset = strings.TrimSpace(ev.Dataset)
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}
