package database

import (
	"sort"
	"time"
)

// An Association bundles every Resolution observed for one address. The zero value is
// not usable; Associations are only created by the Store, which owns them.
type Association struct {
	Address     string                 // Canonical address literal - the Store key
	Resolutions map[string]*Resolution // Keyed by terminal name

	best      *Resolution // Cached best; nil means not computed since last mutation
	bestScore float64
}

func newAssociation(address string) *Association {
	return &Association{
		Address:     address,
		Resolutions: make(map[string]*Resolution),
	}
}

// invalidateBest drops the cached best selection. Called on any mutation of the
// Resolution set or its counters.
func (t *Association) invalidateBest() {
	t.best = nil
	t.bestScore = 0.0
}

// bestResolution returns the top-scoring Resolution at now, computing and caching it if
// needed. Reload-marker Resolutions are excluded whenever at least one live Resolution
// exists. Ties go to the lexicographically smallest terminal name so the selection is
// deterministic. Returns nil only for an empty Association, which the Store never
// exposes.
func (t *Association) bestResolution(score ScoreFunc, now time.Time) (*Resolution, float64) {
	if t.best != nil {
		if _, ok := t.Resolutions[t.best.Terminal()]; !ok {
			panic("rearview: best resolution points outside the association for " + t.Address)
		}
		return t.best, t.bestScore
	}

	live := false
	for _, r := range t.Resolutions {
		if !r.Reloaded {
			live = true
			break
		}
	}

	terminals := make([]string, 0, len(t.Resolutions))
	for terminal, r := range t.Resolutions {
		if live && r.Reloaded {
			continue
		}
		terminals = append(terminals, terminal)
	}
	sort.Strings(terminals)

	var winner *Resolution
	var winnerScore float64
	for _, terminal := range terminals {
		r := t.Resolutions[terminal]
		s := score(r, now)
		if winner == nil || s > winnerScore {
			winner = r
			winnerScore = s
		}
	}

	t.best = winner
	t.bestScore = winnerScore

	return winner, winnerScore
}

// deleteResolution removes the Resolution and reports whether the Association is now
// empty and thus due for deletion itself.
func (t *Association) deleteResolution(r *Resolution) bool {
	delete(t.Resolutions, r.Terminal())
	t.invalidateBest()

	return len(t.Resolutions) == 0
}
