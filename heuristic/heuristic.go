// Package heuristic scores Resolutions. The score is a pure function of the chain shape
// and the temporal counters; the Store treats it as a pluggable strategy so alternative
// scorers can be swapped in without touching the association machinery.
package heuristic

import (
	"math"
	"time"

	"github.com/m3047/rear-view-rpz/database"
)

const twoDays = 172800.0 // Attenuation scale, in seconds

// Score is the attenuating heuristic. Higher is better. The goals:
//
//   - prioritize deeper chains terminating in shorter FQDNs
//   - all other things being roughly equal, prefer the larger query count
//   - attenuate the query-count boost when there is no activity
//
// The formula:
//
//	base       = depth / labels
//	boost      = ln(query count)
//	combined   = 0.9*trend + 0.1*(now - last seen)
//	attenuator = 1 + (sqrt(combined^2 + (now - last seen)^2) / 172800)^2
//	score      = base + boost/attenuator
//
// The combined term treats the accumulated inter-query gap and the time since the last
// observation symmetrically, so a resolution which has gone dark loses rank even though
// no update event ever fires on it. The boost decays to about a sixteenth by eight days
// of inactivity.
func Score(r *database.Resolution, now time.Time) float64 {
	labels := r.Labels()
	if labels == 0 {
		return 0.0
	}
	base := float64(r.Depth()) / float64(labels)

	lastDelta := now.Sub(r.LastSeen).Seconds()
	if lastDelta < 0.0 {
		lastDelta = 0.0
	}

	boost := math.Log(float64(r.QueryCount))
	combined := 0.9*r.Trend + 0.1*lastDelta
	attenuator := 1.0 + math.Pow(math.Sqrt(combined*combined+lastDelta*lastDelta)/twoDays, 2.0)

	return base + boost/attenuator
}

var _ database.ScoreFunc = Score // Compile-time interface check
