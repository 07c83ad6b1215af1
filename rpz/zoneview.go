package rpz

import (
	"sort"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/m3047/rear-view-rpz/dnsutil"
)

// ZoneEntry is everything the agent believes the zone publishes for one reverse name:
// the PTR target and the metadata TXT alongside it.
type ZoneEntry struct {
	Name        string // Reverse qName relative to the zone, e.g. "5.66.2.10.in-addr.arpa"
	Address     string // The corresponding canonical address literal
	Ptr         string // Terminal name the PTR points at, canonical, no trailing dot
	Meta        Metadata
	LastRefresh time.Time
}

// ZonePair relates an address to its reverse key, pre-inverted for the a2z crosscheck.
type ZonePair struct {
	Address string
	Name    string
}

// ZoneView is the passive mirror of the RPZ-as-published. It is populated once at
// startup from the zone itself and thereafter mutated only by successful Batcher
// commits. It never issues DNS queries.
type ZoneView struct {
	origin string // Canonical zone name, with trailing dot

	mu      sync.Mutex
	entries map[string]*ZoneEntry // Keyed by Name
}

// NewZoneView constructs the mirror for the named zone.
func NewZoneView(zone string) *ZoneView {
	return &ZoneView{
		origin:  dns.CanonicalName(zone),
		entries: make(map[string]*ZoneEntry),
	}
}

// Origin returns the canonical zone name, trailing dot included.
func (t *ZoneView) Origin() string {
	return t.origin
}

// keyFor converts an address literal to the map key, or "" if it does not parse.
func keyFor(address string) string {
	qName := dnsutil.AddrToReverseQName(address)
	if len(qName) == 0 {
		return ""
	}

	return dnsutil.ChompCanonicalName(qName)
}

// OwnerName returns the fully qualified owner the zone publishes for address:
// reverse name plus origin.
func (t *ZoneView) OwnerName(address string) string {
	key := keyFor(address)
	if len(key) == 0 {
		return ""
	}

	return key + "." + t.origin
}

// Entry returns a copy of the entry for address. The bool is false if absent.
func (t *ZoneView) Entry(address string) (ZoneEntry, bool) {
	key := keyFor(address)

	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		return ZoneEntry{}, false
	}

	return *entry, true
}

// Count returns the number of entries in the view.
func (t *ZoneView) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

// Pairs returns every entry as (address, reverse name), sorted by address. The console
// diffs this against the telemetry view.
func (t *ZoneView) Pairs() []ZonePair {
	t.mu.Lock()
	ar := make([]ZonePair, 0, len(t.entries))
	for _, entry := range t.entries {
		ar = append(ar, ZonePair{Address: entry.Address, Name: entry.Name})
	}
	t.mu.Unlock()

	sort.Slice(ar, func(i, j int) bool { return ar[i].Address < ar[j].Address })

	return ar
}

// apply records a successful publication for address.
func (t *ZoneView) apply(address, terminal string, meta Metadata) {
	key := keyFor(address)
	if len(key) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = &ZoneEntry{
		Name:        key,
		Address:     address,
		Ptr:         dnsutil.ChompCanonicalName(terminal),
		Meta:        meta,
		LastRefresh: meta.Update,
	}
}

// remove records a successful deletion for address.
func (t *ZoneView) remove(address string) {
	key := keyFor(address)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// setFromZone installs an entry during the startup load.
func (t *ZoneView) setFromZone(entry *ZoneEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[entry.Name] = entry
}
