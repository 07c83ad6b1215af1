package database

import (
	"time"

	"github.com/m3047/rear-view-rpz/dnsutil"
)

// A Resolution is one observed forward chain which led to an address. The chain is in
// walk order from the address outward: element zero is the name the address record was
// attached to and the final element is the terminal name - the one a client originally
// asked for, the one published as the PTR target, and the one which keys the Resolution
// within its Association.
type Resolution struct {
	Chain      []string
	FirstSeen  time.Time // Immutable after creation
	LastSeen   time.Time
	QueryCount int
	Trend      float64 // Exponentially weighted inter-observation gap, in seconds

	// Reloaded is true for a Resolution reconstructed from the zone at startup rather
	// than observed live. Its chain is a placeholder of the recorded depth with only
	// the terminal name real, so it is not eligible as "best" unless it is alone.
	Reloaded bool
}

// newResolution creates a live Resolution from an observation at now.
func newResolution(chain []string, now time.Time) *Resolution {
	return &Resolution{
		Chain:      append([]string{}, chain...), // Callers may reuse their slice
		FirstSeen:  now,
		LastSeen:   now,
		QueryCount: 1,
	}
}

// Terminal returns the canonical terminal name of the chain.
func (t *Resolution) Terminal() string {
	return TerminalName(t.Chain)
}

// Depth returns the chain length.
func (t *Resolution) Depth() int {
	return len(t.Chain)
}

// Labels returns the label count of the terminal name, excluding the root label.
func (t *Resolution) Labels() int {
	return dnsutil.CountLabels(t.Terminal())
}

// seen folds a new observation at now into the counters. The trend update has to happen
// before LastSeen moves, as it measures the gap since the previous observation.
func (t *Resolution) seen(now time.Time, alpha float64) {
	t.Trend = (1-alpha)*t.Trend + alpha*now.Sub(t.LastSeen).Seconds()
	t.LastSeen = now
	t.QueryCount++
}

// TerminalName returns the canonical form of the final chain element, or "" for an empty
// chain.
func TerminalName(chain []string) string {
	if len(chain) == 0 {
		return ""
	}

	return dnsutil.ChompCanonicalName(chain[len(chain)-1])
}
