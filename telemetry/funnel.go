package telemetry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3047/rear-view-rpz/database"
	"github.com/m3047/rear-view-rpz/log"
)

const DefaultFunnelBuffer = 10000

// Sink is where observations land. Satisfied by *database.Store.
type Sink interface {
	Observe(address string, chain []string, now time.Time) error
}

// Funnel serializes observations from any number of listeners onto one consuming
// go-routine. Hand-off is non-blocking: when the buffer is full the observation is
// dropped and counted rather than stalling a listener, because a slow store must not
// back-pressure the nameserver's dnstap stream.
type Funnel struct {
	sink Sink
	c    chan Observation
	wg   sync.WaitGroup

	dropped atomic.Uint64
	invalid atomic.Uint64
	taken   atomic.Uint64
}

// NewFunnel creates a Funnel draining into sink. buffer <= 0 selects the default.
func NewFunnel(sink Sink, buffer int) *Funnel {
	if buffer <= 0 {
		buffer = DefaultFunnelBuffer
	}

	return &Funnel{
		sink: sink,
		c:    make(chan Observation, buffer),
	}
}

// Start begins consuming. Call exactly once.
func (t *Funnel) Start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for obs := range t.c {
			t.taken.Add(1)
			err := t.sink.Observe(obs.Address, obs.Chain, time.Now())
			if err != nil {
				t.invalid.Add(1)
				if errors.Is(err, database.ErrInvalidTelemetry) {
					log.Debugf("dropped observation: %s", err.Error())
				} else {
					log.Minorf("observation failed: %s", err.Error())
				}
			}
		}
	}()
}

// Offer hands an observation to the consumer without blocking. Returns false if the
// buffer was full and the observation dropped.
func (t *Funnel) Offer(obs Observation) bool {
	select {
	case t.c <- obs:
		return true
	default:
		t.dropped.Add(1)
		return false
	}
}

// Close stops intake and waits for the buffer to drain. Listeners must be stopped
// first; an Offer after Close panics.
func (t *Funnel) Close() {
	close(t.c)
	t.wg.Wait()
}

// Depth returns the current buffer occupancy.
func (t *Funnel) Depth() int {
	return len(t.c)
}

// Counters returns observations consumed, dropped at the funnel and rejected by the
// sink.
func (t *Funnel) Counters() (taken, dropped, invalid uint64) {
	return t.taken.Load(), t.dropped.Load(), t.invalid.Load()
}
