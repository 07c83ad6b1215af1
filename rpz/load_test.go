package rpz

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m3047/rear-view-rpz/database"
	"github.com/m3047/rear-view-rpz/heuristic"
)

const testZone = `$TTL 600
@	IN	SOA	ns.example.com. hostmaster.example.com. 1 3600 900 86400 600
@	IN	NS	ns.example.com.
5.66.2.10.in-addr.arpa	IN	PTR	www.example.com.
5.66.2.10.in-addr.arpa	IN	TXT	"first=-120.0;last=-30.0;update=1700000000;score=1.2500;depth=2;count=17;trend=4.5"
7.66.2.10.in-addr.arpa	IN	PTR	bare.example.com.
junk	IN	A	192.0.2.1
not-reverse	IN	PTR	odd.example.com.
`

func writeTestZone(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rpz.example.com.zone")
	if err := os.WriteFile(path, []byte(testZone), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoadFromFile(t *testing.T) {
	view := NewZoneView("rpz.example.com")
	store := database.NewStore(database.Config{
		CacheSize: 100,
		Score:     heuristic.Score,
	})

	var garbage []string
	loader := NewLoader(view, store, func(s string) { garbage = append(garbage, s) })

	now := time.Unix(1700000600, 0)
	if err := loader.LoadFromFile(writeTestZone(t), 600, now); err != nil {
		t.Fatal(err)
	}

	// Two PTR owners installed in the view.
	if view.Count() != 2 {
		t.Fatal("Expected two zone entries, not", view.Count())
	}
	entry, ok := view.Entry("10.2.66.5")
	if !ok {
		t.Fatal("Entry for 10.2.66.5 missing")
	}
	if entry.Ptr != "www.example.com" {
		t.Error("Wrong PTR", entry.Ptr)
	}
	if entry.Meta.Count != 17 || entry.Meta.Depth != 2 {
		t.Error("Metadata not carried", entry.Meta)
	}

	// The store was seeded with reload markers.
	best, ok := store.Best("10.2.66.5", now)
	if !ok || !best.Reloaded {
		t.Fatal("Expected a reload marker", best)
	}
	if best.QueryCount != 17 || best.Depth != 2 {
		t.Error("Marker metadata wrong", best)
	}
	if !best.FirstSeen.Equal(time.Unix(1700000000, 0).Add(-2 * time.Minute)) {
		t.Error("Marker first seen wrong", best.FirstSeen)
	}

	// The PTR with no TXT seeded with defaults.
	best, ok = store.Best("10.2.66.7", now)
	if !ok || best.QueryCount != 1 || best.Depth != 1 {
		t.Error("Bare PTR should seed with defaults", best)
	}

	// The A record and the non-reverse PTR are garbage; apex SOA and NS are not.
	if loader.Garbage != 2 {
		t.Error("Expected two garbage records, not", loader.Garbage, garbage)
	}
	for _, s := range garbage {
		if strings.Contains(s, "SOA") || strings.Contains(s, " NS ") {
			t.Error("Apex housekeeping logged as garbage:", s)
		}
	}
}

func TestLoadGarbageSuppressed(t *testing.T) {
	view := NewZoneView("rpz.example.com")
	loader := NewLoader(view, nil, nil) // nil logger, nil store

	if err := loader.LoadFromFile(writeTestZone(t), 600, time.Now()); err != nil {
		t.Fatal(err)
	}
	if loader.Garbage != 2 {
		t.Error("Garbage still counted when suppressed, not", loader.Garbage)
	}
	if view.Count() != 2 {
		t.Error("Suppression must not affect loading")
	}
}

func TestZoneViewPairs(t *testing.T) {
	view := NewZoneView("rpz.example.com")
	view.apply("10.2.66.5", "www.example.com.", Metadata{Update: time.Now()})
	view.apply("10.2.66.4", "other.example.com.", Metadata{Update: time.Now()})

	pairs := view.Pairs()
	if len(pairs) != 2 {
		t.Fatal("Expected two pairs")
	}
	if pairs[0].Address != "10.2.66.4" || pairs[1].Address != "10.2.66.5" {
		t.Error("Pairs not sorted by address", pairs)
	}
	if pairs[1].Name != "5.66.2.10.in-addr.arpa" {
		t.Error("Wrong reverse name", pairs[1].Name)
	}

	view.remove("10.2.66.4")
	if view.Count() != 1 {
		t.Error("remove failed")
	}
}

func TestOwnerName(t *testing.T) {
	view := NewZoneView("rpz.example.com")
	owner := view.OwnerName("10.2.66.5")
	if owner != "5.66.2.10.in-addr.arpa.rpz.example.com." {
		t.Error("Wrong owner name", owner)
	}
	if len(view.OwnerName("bogus")) != 0 {
		t.Error("Unparseable address should produce no owner")
	}
}
