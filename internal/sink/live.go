package sink

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

// DefaultHistory is the number of samples a Live sink keeps by default.
const DefaultHistory = 600

// subscriberBuffer is the per-subscriber queue; slow readers lose samples.
const subscriberBuffer = 16

// Live keeps a bounded history of samples and fans new ones out to
// subscribers. It backs the collector's HTTP view.
type Live struct {
	mu      sync.RWMutex
	ring    []Sample
	next    int
	full    bool
	subs    map[chan Sample]struct{}
	dropped uint64

	now func() time.Time
}

// NewLive returns a Live sink remembering at most capacity samples.
func NewLive(capacity int) *Live {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	return &Live{
		ring: make([]Sample, capacity),
		subs: make(map[chan Sample]struct{}),
		now:  time.Now,
	}
}

// Publish stores r and offers it to every subscriber without blocking.
func (l *Live) Publish(_ context.Context, r telemetry.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Sample{Time: l.now().UTC(), Record: r}
	l.ring[l.next] = s
	l.next = (l.next + 1) % len(l.ring)
	if l.next == 0 {
		l.full = true
	}

	for ch := range l.subs {
		select {
		case ch <- s:
		default:
			l.dropped++
		}
	}
	return nil
}

// Latest returns the most recent sample.
func (l *Live) Latest() (Sample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.full && l.next == 0 {
		return Sample{}, false
	}
	i := (l.next - 1 + len(l.ring)) % len(l.ring)
	return l.ring[i], true
}

// History returns up to limit of the newest samples, oldest first. A limit
// of zero or less returns everything kept.
func (l *Live) History(limit int) []Sample {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Sample
	if l.full {
		out = append(out, l.ring[l.next:]...)
	}
	out = append(out, l.ring[:l.next]...)

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Series splits the newest limit samples into one point list per series,
// keyed by telemetry.Fields series names.
func (l *Live) Series(limit int) map[string][]Point {
	history := l.History(limit)
	series := make(map[string][]Point, telemetry.FieldCount)
	for i, f := range telemetry.Fields {
		points := make([]Point, len(history))
		for j, s := range history {
			points[j] = Point{Time: s.Time, Value: s.Values()[i]}
		}
		series[f.Series] = points
	}
	return series
}

// Subscribe returns a channel receiving every new sample and a func that
// ends the subscription.
func (l *Live) Subscribe() (<-chan Sample, func()) {
	ch := make(chan Sample, subscriberBuffer)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, ch)
			l.mu.Unlock()
		})
	}
}

// Dropped returns how many samples slow subscribers missed.
func (l *Live) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
