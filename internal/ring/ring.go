package ring

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// OverflowPolicy selects writer behavior when a consumer has fallen more
// than the ring's capacity behind the write cursor.
type OverflowPolicy uint8

const (
	// OverwriteUnread drops the oldest unread record and increments the
	// dropped-record counter. Default for market-data feeds.
	OverwriteUnread OverflowPolicy = iota
	// Backpressure blocks the writer until the slowest consumer catches
	// up. Default for signal/execution feeds.
	Backpressure
)

// ErrNotPowerOfTwo is returned by New when capacity isn't a power of two.
var ErrNotPowerOfTwo = fmt.Errorf("ring: capacity must be a power of two")

// lagWarnThreshold is the slowest consumer's lag, in records, at which
// publish invokes the OnLagWarn callback (spec §4.4).
const lagWarnThreshold = 1000

// Ring is a fixed-size SPMC lock-free ring buffer. The writer is
// single-producer; each consumer owns an independent atomic read cursor,
// so a slow consumer never blocks another consumer's progress.
type Ring struct {
	kind     RecordKind
	recSize  int
	capacity int64
	mask     int64
	slots    [][]byte

	writeCursor atomic.Int64
	dropped     atomic.Int64

	policy OverflowPolicy

	mu        sync.RWMutex
	consumers map[int]*atomic.Int64
	nextID    int

	onLagWarn func(consumerID int, lag int64)
}

// New constructs a ring with the given power-of-two capacity and record
// kind.
func New(kind RecordKind, capacity int64, policy OverflowPolicy) (*Ring, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	recSize := recordSizeFor(kind)
	slots := make([][]byte, capacity)
	for i := range slots {
		slots[i] = make([]byte, recSize)
	}
	return &Ring{
		kind:      kind,
		recSize:   recSize,
		capacity:  capacity,
		mask:      capacity - 1,
		slots:     slots,
		policy:    policy,
		consumers: make(map[int]*atomic.Int64),
	}, nil
}

// OnLagWarn installs a callback invoked on publish whenever the slowest
// consumer's lag is at least lagWarnThreshold, for wiring into structured
// logging. The callback receives consumerID -1 (the lag is the minimum
// across all consumers, not attributed to one) and that lag.
func (r *Ring) OnLagWarn(fn func(consumerID int, lag int64)) {
	r.onLagWarn = fn
}

// Subscribe allocates a new consumer with its own read cursor, starting
// at the ring's current write position (no backlog replay). Returns the
// consumer id used by ReadAvailable/Release.
func (r *Ring) Subscribe() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	cursor := &atomic.Int64{}
	cursor.Store(r.writeCursor.Load())
	r.consumers[id] = cursor
	return id
}

// Unsubscribe removes a consumer's cursor so it no longer holds back
// OverwriteUnread collection.
func (r *Ring) Unsubscribe(consumerID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.consumers, consumerID)
}

// slowestRead returns the minimum read cursor across all subscribed
// consumers, or the write cursor if there are none (nothing to hold back
// on).
func (r *Ring) slowestRead() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.consumers) == 0 {
		return r.writeCursor.Load()
	}
	min := int64(1<<63 - 1)
	for _, c := range r.consumers {
		if v := c.Load(); v < min {
			min = v
		}
	}
	return min
}

// PublishTrade serializes a TradeRecord into the next slot and publishes
// it via a release-store of the write cursor.
func (r *Ring) PublishTrade(rec TradeRecord) error {
	if r.kind != KindTrade {
		return fmt.Errorf("ring: PublishTrade called on a %v ring", r.kind)
	}
	return r.publish(func(slot []byte) { rec.encode(slot) })
}

// PublishDelta serializes an OrderBookDeltaRecord into the next slot.
func (r *Ring) PublishDelta(rec OrderBookDeltaRecord) error {
	if r.kind != KindOrderBookDelta {
		return fmt.Errorf("ring: PublishDelta called on a %v ring", r.kind)
	}
	return r.publish(func(slot []byte) { rec.encode(slot) })
}

func (r *Ring) publish(write func(slot []byte)) error {
	for {
		wc := r.writeCursor.Load()
		lag := wc - r.slowestRead()

		if lag >= r.capacity {
			switch r.policy {
			case OverwriteUnread:
				r.dropped.Add(1)
			case Backpressure:
				// spin; a real deployment would park on a condvar here,
				// but the ring never blocks indefinitely without a
				// consumer making progress per spec §5's cancellation
				// contract, which callers enforce via context.
				continue
			}
		}

		slot := r.slots[wc&r.mask]
		write(slot)

		if !r.writeCursor.CompareAndSwap(wc, wc+1) {
			continue
		}

		if lag >= lagWarnThreshold && r.onLagWarn != nil {
			r.onLagWarn(-1, lag)
		}
		return nil
	}
}

// ReadAvailable returns every record published since the consumer's last
// read, as raw slot bytes, without advancing the cursor past them. Call
// Release after processing to free the slots for reuse by OverwriteUnread.
func (r *Ring) ReadAvailable(consumerID int) ([][]byte, error) {
	r.mu.RLock()
	cursor, ok := r.consumers[consumerID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ring: unknown consumer %d", consumerID)
	}

	rc := cursor.Load()
	wc := r.writeCursor.Load()
	if rc >= wc {
		return nil, nil
	}

	// A consumer that fell more than capacity behind has lost records to
	// OverwriteUnread; fast-forward to the oldest still-valid slot, moving
	// the cursor there so a following Release lands past these records.
	if wc-rc > r.capacity {
		rc = wc - r.capacity
		cursor.Store(rc)
	}

	out := make([][]byte, 0, wc-rc)
	for i := rc; i < wc; i++ {
		buf := make([]byte, r.recSize)
		copy(buf, r.slots[i&r.mask])
		out = append(out, buf)
	}
	return out, nil
}

// Release advances the consumer's cursor past the records just read via
// ReadAvailable, with a release-store so the writer observes it.
func (r *Ring) Release(consumerID int, count int) error {
	r.mu.RLock()
	cursor, ok := r.consumers[consumerID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("ring: unknown consumer %d", consumerID)
	}
	cursor.Add(int64(count))
	return nil
}

// DecodeTrade decodes a raw slot returned by ReadAvailable on a
// KindTrade ring.
func DecodeTrade(slot []byte) TradeRecord { return decodeTradeRecord(slot) }

// DecodeDelta decodes a raw slot returned by ReadAvailable on a
// KindOrderBookDelta ring.
func DecodeDelta(slot []byte) OrderBookDeltaRecord { return decodeOrderBookDeltaRecord(slot) }

// Dropped returns the total number of records dropped by the
// OverwriteUnread policy since creation.
func (r *Ring) Dropped() int64 { return r.dropped.Load() }

// Capacity returns the ring's fixed slot count.
func (r *Ring) Capacity() int64 { return r.capacity }

// ConsumerLag returns how many unread records a consumer is behind the
// write cursor.
func (r *Ring) ConsumerLag(consumerID int) (int64, error) {
	r.mu.RLock()
	cursor, ok := r.consumers[consumerID]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("ring: unknown consumer %d", consumerID)
	}
	return r.writeCursor.Load() - cursor.Load(), nil
}
