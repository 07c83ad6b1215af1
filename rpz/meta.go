package rpz

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metadata is the sidecar telemetry published in the TXT record which accompanies each
// synthesized PTR. It lets a restarted agent reconstruct enough of a Resolution to keep
// the heuristics honest, and gives analysts poking at the zone something to go on.
type Metadata struct {
	First  time.Time // When the resolution was first observed
	Last   time.Time // When it was last observed
	Update time.Time // When this record was published
	Count  int
	Trend  float64
	Score  float64
	Depth  int
}

// Format renders the TXT payload. First and last are published as deltas in seconds
// relative to the update timestamp. The sign convention: a delta is seen-minus-update,
// so values are zero or negative, matching the delta-from-now readouts of the console.
func (t Metadata) Format() string {
	pairs := []string{
		fmt.Sprintf("first=%.1f", t.First.Sub(t.Update).Seconds()),
		fmt.Sprintf("last=%.1f", t.Last.Sub(t.Update).Seconds()),
		fmt.Sprintf("update=%d", t.Update.Unix()),
		fmt.Sprintf("score=%.4f", t.Score),
		fmt.Sprintf("depth=%d", t.Depth),
		fmt.Sprintf("count=%d", t.Count),
		fmt.Sprintf("trend=%.1f", t.Trend),
	}

	return strings.Join(pairs, ";")
}

// ParseMetadata decodes a TXT payload written by Format. Unknown keys are ignored so
// the format can grow. The update timestamp is required; everything else defaults
// sanely, since a zone is writable by more than just us.
func ParseMetadata(s string) (Metadata, error) {
	var t Metadata
	var first, last float64
	var haveUpdate bool

	for _, kv := range strings.Split(strings.Trim(s, `"`), ";") {
		k, v, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		var err error
		switch k {
		case "first":
			first, err = strconv.ParseFloat(v, 64)
		case "last":
			last, err = strconv.ParseFloat(v, 64)
		case "update":
			var secs int64
			secs, err = strconv.ParseInt(v, 10, 64)
			if err == nil {
				t.Update = time.Unix(secs, 0)
				haveUpdate = true
			}
		case "score":
			t.Score, err = strconv.ParseFloat(v, 64)
		case "depth":
			t.Depth, err = strconv.Atoi(v)
		case "count":
			t.Count, err = strconv.Atoi(v)
		case "trend":
			t.Trend, err = strconv.ParseFloat(v, 64)
		}
		if err != nil {
			return Metadata{}, fmt.Errorf("metadata pair '%s': %w", kv, err)
		}
	}

	if !haveUpdate {
		return Metadata{}, fmt.Errorf("metadata '%s' has no update timestamp", s)
	}

	t.First = t.Update.Add(time.Duration(first * float64(time.Second)))
	t.Last = t.Update.Add(time.Duration(last * float64(time.Second)))
	if t.Count < 1 {
		t.Count = 1
	}
	if t.Depth < 1 {
		t.Depth = 1
	}

	return t, nil
}
