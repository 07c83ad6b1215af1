package heuristic

import (
	"testing"
	"time"

	"github.com/m3047/rear-view-rpz/database"
)

var t0 = time.Unix(1700000000, 0)

func resolution(chain []string, queryCount int, trend float64, lastSeen time.Time) *database.Resolution {
	return &database.Resolution{
		Chain:      chain,
		FirstSeen:  t0.Add(-time.Hour),
		LastSeen:   lastSeen,
		QueryCount: queryCount,
		Trend:      trend,
	}
}

func TestBase(t *testing.T) {
	// depth/labels with a query count of one: boost is ln(1) = 0.
	testCases := []struct {
		chain []string
		score float64
	}{
		{[]string{"www.a.example.", "a.example."}, 1.0}, // 2/2
		{[]string{"b.example."}, 0.5},                   // 1/2
		{[]string{"x.y.z.example."}, 0.25},              // 1/4
		{[]string{"a.", "b.", "c.", "d."}, 4.0},         // 4/1
	}
	for _, tc := range testCases {
		got := Score(resolution(tc.chain, 1, 0.0, t0), t0)
		if got != tc.score {
			t.Errorf("Score of %v should be %f, not %f", tc.chain, tc.score, got)
		}
	}
}

func TestMonotonicInQueryCount(t *testing.T) {
	previous := 0.0
	for _, count := range []int{1, 2, 10, 100, 10000} {
		got := Score(resolution([]string{"a.example."}, count, 0.0, t0), t0)
		if got <= previous && count > 1 {
			t.Errorf("Score should rise with query count: %d -> %f", count, got)
		}
		previous = got
	}
}

func TestMonotonicDecreasingInIdleTime(t *testing.T) {
	previous := -1.0
	for _, idle := range []time.Duration{0, time.Minute, time.Hour,
		24 * time.Hour, 8 * 24 * time.Hour} {
		got := Score(resolution([]string{"a.example."}, 1000, 0.0, t0.Add(-idle)), t0)
		if previous >= 0.0 && got >= previous {
			t.Errorf("Score should fall as idle time grows: %s -> %f", idle, got)
		}
		previous = got
	}
}

func TestBoostDecay(t *testing.T) {
	// The boost decays to roughly a sixteenth by eight days of inactivity.
	fresh := Score(resolution([]string{"a.example."}, 1000, 0.0, t0), t0)
	stale := Score(resolution([]string{"a.example."}, 1000, 0.0, t0.Add(-8*24*time.Hour)), t0)

	base := 0.5
	freshBoost := fresh - base
	staleBoost := stale - base
	if staleBoost > freshBoost/14 || staleBoost < freshBoost/20 {
		t.Errorf("Decay out of expected range: fresh=%f stale=%f", freshBoost, staleBoost)
	}
}

func TestTrendAttenuates(t *testing.T) {
	// A resolution with a history of long gaps ranks below a steadily busy one.
	busy := Score(resolution([]string{"a.example."}, 100, 1.0, t0.Add(-time.Hour)), t0)
	sparse := Score(resolution([]string{"a.example."}, 100, 200000.0, t0.Add(-time.Hour)), t0)
	if sparse >= busy {
		t.Errorf("Sparse history should attenuate: busy=%f sparse=%f", busy, sparse)
	}
}

func TestClockSkew(t *testing.T) {
	// A last-seen in the future (clock skew between producers) clamps to zero delta
	// rather than going negative.
	ahead := Score(resolution([]string{"a.example."}, 10, 0.0, t0.Add(time.Hour)), t0)
	now := Score(resolution([]string{"a.example."}, 10, 0.0, t0), t0)
	if ahead != now {
		t.Errorf("Future last-seen should clamp: %f != %f", ahead, now)
	}
}
