package ring

import (
	"context"
	"time"
)

// ReaderTier is the notification strategy a consumer uses to learn that
// new records are available, implementing spec §4.4's three-tier
// fallback. Wait blocks until data may be available or ctx is done.
type ReaderTier interface {
	Wait(ctx context.Context) error
	// Notify is called by the producer side after a successful publish,
	// waking any waiters. No-op for the legacy-polling tier.
	Notify()
	Name() string
}

// NewReaderTier picks the best tier the ring supports. In-process the
// semaphore tier is always available (it needs no OS resource beyond a
// buffered channel), so it is the default; NewLegacyPollingTier and
// NewEventDrivenTier remain exported for feeds that explicitly request a
// degraded tier (e.g. cross-process readers without the notify channel
// wired up).
func NewReaderTier(capacityHint int) ReaderTier {
	return NewSemaphoreTier(capacityHint)
}

// SemaphoreTier implements the "true zero-polling" tier: a counting
// semaphore (buffered channel of size 1, coalescing) posted on every
// publish, waited on by the consumer.
type SemaphoreTier struct {
	signal chan struct{}
}

func NewSemaphoreTier(_ int) *SemaphoreTier {
	return &SemaphoreTier{signal: make(chan struct{}, 1)}
}

func (s *SemaphoreTier) Wait(ctx context.Context) error {
	select {
	case <-s.signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SemaphoreTier) Notify() {
	select {
	case s.signal <- struct{}{}:
	default:
		// already has a pending wakeup; coalesce
	}
}

func (s *SemaphoreTier) Name() string { return "semaphore" }

// EventDrivenTier implements a futex/eventfd-style notification with a
// short spin before parking, for platforms where a true semaphore isn't
// wired (e.g. a cross-process ring reached over a transport that can
// only poll for new bytes rather than deliver a wakeup).
type EventDrivenTier struct {
	signal    chan struct{}
	spinCount int
	backoff   time.Duration
}

func NewEventDrivenTier() *EventDrivenTier {
	return &EventDrivenTier{
		signal:    make(chan struct{}, 1),
		spinCount: 100,
		backoff:   50 * time.Microsecond,
	}
}

func (e *EventDrivenTier) Wait(ctx context.Context) error {
	for i := 0; i < e.spinCount; i++ {
		select {
		case <-e.signal:
			return nil
		default:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	t := time.NewTimer(e.backoff)
	defer t.Stop()
	select {
	case <-e.signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil // wake up and let the caller re-check ReadAvailable
	}
}

func (e *EventDrivenTier) Notify() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

func (e *EventDrivenTier) Name() string { return "event-driven" }

// LegacyPollingTier is the last-resort tier: a fixed sleep loop, used
// only when neither a semaphore nor an event channel is reachable.
type LegacyPollingTier struct {
	interval time.Duration
}

func NewLegacyPollingTier() *LegacyPollingTier {
	return &LegacyPollingTier{interval: 100 * time.Microsecond}
}

func (l *LegacyPollingTier) Wait(ctx context.Context) error {
	t := time.NewTimer(l.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *LegacyPollingTier) Notify() {}

func (l *LegacyPollingTier) Name() string { return "legacy-polling" }
