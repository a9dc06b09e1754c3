package transport

import (
	"sync/atomic"
	"time"

	"github.com/flowrelay/marketdata/internal/codec"
)

// BoundaryValidator re-runs the Protocol V2 validated-mode checks before
// a message received from a remote transport is injected into the local
// registry, per spec §4.9. Invalid messages are counted and dropped
// rather than propagated.
type BoundaryValidator struct {
	limits  codec.Limits
	dropped atomic.Int64
}

func NewBoundaryValidator(limits codec.Limits) *BoundaryValidator {
	return &BoundaryValidator{limits: limits}
}

// Validate parses and validates a raw message; on success it returns the
// parsed message for the caller to hand to the registry. On failure it
// increments the dropped counter and returns the error.
func (v *BoundaryValidator) Validate(data []byte) (codec.ParsedMessage, error) {
	msg, err := codec.ParseValidated(data, v.limits, time.Now())
	if err != nil {
		v.dropped.Add(1)
		return codec.ParsedMessage{}, err
	}
	return msg, nil
}

func (v *BoundaryValidator) Dropped() int64 { return v.dropped.Load() }
