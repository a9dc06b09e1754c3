package feed

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/flowrelay/marketdata/internal/ring"
)

// maxConsumerID is the platform-dependent reader-id range noted in spec
// §4.4: 8 on ARM macOS (a narrower slot table the original C ring header
// reserves for that platform), 16 otherwise.
func maxConsumerID() int {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return 8
	}
	return 16
}

// consumerIDAllocator is an in-process monotone counter, modulo the
// platform maximum, per spec §4.5.
type consumerIDAllocator struct {
	next atomic.Int64
}

func (c *consumerIDAllocator) allocate() int {
	v := c.next.Add(1) - 1
	return int(v % int64(maxConsumerID()))
}

var allocators = make(map[string]*consumerIDAllocator)

func allocatorFor(feedID string) *consumerIDAllocator {
	a, ok := allocators[feedID]
	if !ok {
		a = &consumerIDAllocator{}
		allocators[feedID] = a
	}
	return a
}

// AllocateConsumerID returns the next platform-bounded consumer id for a
// feed, so multiple in-process consumers of the same ring do not collide.
func AllocateConsumerID(feedID string) int {
	return allocatorFor(feedID).allocate()
}

// Reader pairs a ring subscription with its negotiated notification
// tier, letting a consumer Wait() instead of polling.
type Reader struct {
	FeedID     string
	ConsumerID int
	Ring       *ring.Ring
	Tier       ring.ReaderTier
}

// InitializeReaders opens a Reader for every metadata entry, with the
// notification tier chosen by negotiateTier (spec §4.5). rings maps feed id to
// its already-constructed in-process Ring (the ring's lifetime is owned
// by the producer; discovery only negotiates how to be notified about
// it).
func InitializeReaders(feeds []Metadata, rings map[string]*ring.Ring) ([]*Reader, error) {
	readers := make([]*Reader, 0, len(feeds))

	for _, m := range feeds {
		r, ok := rings[m.FeedID]
		if !ok {
			return nil, fmt.Errorf("feed: no ring registered in-process for feed %s", m.FeedID)
		}

		consumerID := AllocateConsumerID(m.FeedID)
		r.Subscribe()

		tier := negotiateTier(m)

		readers = append(readers, &Reader{
			FeedID:     m.FeedID,
			ConsumerID: consumerID,
			Ring:       r,
			Tier:       tier,
		})
	}

	return readers, nil
}

// negotiateTier picks the best tier available for a feed's backing ring.
// In-process, the semaphore tier is always constructible, so it is the
// first tier tried and always the one returned; the event-driven and
// legacy-polling tiers are never selected here, and m is not consulted
// beyond its capacity.
func negotiateTier(m Metadata) ring.ReaderTier {
	return ring.NewReaderTier(int(m.Capacity))
}
