package studio

import (
	"strconv"
	"sync"
	"time"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts record identifier generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// TimeIDGenerator produces time-derived identifiers: Unix milliseconds as a
// decimal string. IDs are strictly increasing for the lifetime of the
// generator, so two records created in the same millisecond still sort in
// creation order.
type TimeIDGenerator struct {
	clock Clock

	mu   sync.Mutex
	last int64
}

// NewTimeIDGenerator creates a TimeIDGenerator reading time from clock.
func NewTimeIDGenerator(clock Clock) *TimeIDGenerator {
	return &TimeIDGenerator{clock: clock}
}

func (g *TimeIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.clock.Now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
