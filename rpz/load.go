package rpz

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/m3047/rear-view-rpz/dnsutil"
	"github.com/m3047/rear-view-rpz/log"
	"github.com/m3047/rear-view-rpz/updater"
)

// Seeder is the slice of the telemetry store the loader needs: the ability to plant
// reload-marker Resolutions. Satisfied by *database.Store.
type Seeder interface {
	SeedFromZone(address, terminal string, depth int,
		first, last time.Time, count int, trend float64, now time.Time) error
}

// GarbageLogger is called once per unrecognized record found in the zone at startup.
// nil suppresses the events entirely.
type GarbageLogger func(s string)

// DefaultGarbageLogger complains via the log package.
func DefaultGarbageLogger(s string) {
	log.Minor(s)
}

// Loader reads the zone once at startup, populating the ZoneView and seeding the
// telemetry store with reload markers. PTR and TXT records under reverse-address owners
// are consumed; apex SOA and NS records are expected housekeeping; anything else is
// garbage and logged as such.
type Loader struct {
	view    *ZoneView
	store   Seeder
	garbage GarbageLogger

	pending map[string]*pendingEntry

	// Load results, for the startup report
	Records int // RRs considered
	Loaded  int // Entries installed in the view
	Garbage int // Unrecognized records
}

type pendingEntry struct {
	ptr     string
	meta    Metadata
	hasMeta bool
}

func NewLoader(view *ZoneView, store Seeder, garbage GarbageLogger) *Loader {
	return &Loader{
		view:    view,
		store:   store,
		garbage: garbage,
		pending: make(map[string]*pendingEntry),
	}
}

// LoadFromFile reads the zone from a master-format file.
func (t *Loader) LoadFromFile(path string, defaultTTL uint32, now time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	parser := dns.NewZoneParser(f, t.view.Origin(), path)
	parser.SetIncludeAllowed(true)
	parser.SetDefaultTTL(defaultTTL) // ZoneParser needs this in case $TTL is absent

	for rr, ok := parser.Next(); ok; rr, ok = parser.Next() {
		t.considerRR(rr)
	}
	if err = parser.Err(); err != nil {
		return err
	}

	t.finish(now)

	return nil
}

// LoadFromAXFR transfers the zone from the master. An AXFR is bracketed by SOA records
// which are expected and skipped, not garbage.
func (t *Loader) LoadFromAXFR(ctx context.Context, up updater.Updater, now time.Time) error {
	channel, err := up.Transfer(ctx, t.view.Origin())
	if err != nil {
		return fmt.Errorf("transfer of '%s' failed: %w", t.view.Origin(), err)
	}

	for env := range channel {
		if env.Error != nil {
			return fmt.Errorf("transfer of '%s' failed: %w", t.view.Origin(), env.Error)
		}
		for _, rr := range env.RR {
			t.considerRR(rr)
		}
	}

	t.finish(now)

	return nil
}

// considerRR classifies one record. Apex SOA/NS are housekeeping. A PTR or TXT whose
// owner inverts to an address is collected; everything else earns a garbage event.
func (t *Loader) considerRR(rr dns.RR) {
	t.Records++
	owner := dns.CanonicalName(rr.Header().Name)

	switch rr.Header().Rrtype {
	case dns.TypeSOA, dns.TypeNS:
		if owner == t.view.Origin() {
			return
		}
	case dns.TypePTR, dns.TypeTXT:
		key, ok := t.reverseKey(owner)
		if ok {
			t.collect(key, rr)
			return
		}
	}

	t.Garbage++
	if t.garbage != nil {
		t.garbage(fmt.Sprintf("unexpected record '%s' in zone on load",
			strings.TrimSuffix(rr.String(), "\n")))
	}
}

// reverseKey strips the origin from the owner and checks that the remainder inverts to
// an address. Returns the relative reverse name.
func (t *Loader) reverseKey(owner string) (string, bool) {
	if !strings.HasSuffix(owner, "."+t.view.Origin()) && owner != t.view.Origin() {
		return "", false
	}
	relative := strings.TrimSuffix(owner, "."+t.view.Origin())
	if relative == owner || len(relative) == 0 {
		return "", false
	}
	if _, err := dnsutil.InvertPtrToAddr(relative + "."); err != nil {
		return "", false
	}

	return relative, true
}

func (t *Loader) collect(key string, rr dns.RR) {
	entry, ok := t.pending[key]
	if !ok {
		entry = &pendingEntry{}
		t.pending[key] = entry
	}

	switch rr := rr.(type) {
	case *dns.PTR:
		entry.ptr = dnsutil.ChompCanonicalName(rr.Ptr)
	case *dns.TXT:
		meta, err := ParseMetadata(strings.Join(rr.Txt, ""))
		if err != nil {
			t.Garbage++
			if t.garbage != nil {
				t.garbage(fmt.Sprintf("bad metadata for '%s' in zone on load: %s",
					key, err.Error()))
			}
			return
		}
		entry.meta = meta
		entry.hasMeta = true
	}
}

// finish installs the collected entries. Collection is two-phase because a zone makes no
// promise that a PTR and its TXT arrive adjacent to one another. A TXT with no PTR is
// an orphan and earns a garbage event; a PTR with no TXT is fine and seeds with
// defaults.
func (t *Loader) finish(now time.Time) {
	for key, entry := range t.pending {
		if len(entry.ptr) == 0 {
			t.Garbage++
			if t.garbage != nil {
				t.garbage(fmt.Sprintf("metadata TXT with no PTR for '%s' in zone on load", key))
			}
			continue
		}

		address, err := dnsutil.InvertPtrToAddr(key + ".")
		if err != nil {
			continue // reverseKey() already vetted; belts and braces
		}

		meta := entry.meta
		if !entry.hasMeta {
			meta = Metadata{First: now, Last: now, Update: now, Count: 1, Depth: 1}
		}

		t.view.setFromZone(&ZoneEntry{
			Name:        key,
			Address:     address,
			Ptr:         entry.ptr,
			Meta:        meta,
			LastRefresh: meta.Update,
		})
		t.Loaded++

		if t.store != nil {
			err = t.store.SeedFromZone(address, entry.ptr, meta.Depth,
				meta.First, meta.Last, meta.Count, meta.Trend, now)
			if err != nil {
				log.Debugf("seed of %s failed: %s", address, err.Error())
			}
		}
	}
	t.pending = make(map[string]*pendingEntry)
}
