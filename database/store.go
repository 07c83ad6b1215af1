package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/m3047/rear-view-rpz/dnsutil"
)

const (
	DefaultCacheSize       = 10000
	DefaultTrendAlpha      = 0.1
	DefaultEvictionLogSize = 10
)

// ErrInvalidTelemetry reports a malformed observation: an empty chain, a chain with an
// empty name in it, or an address which does not parse. The store is untouched.
var ErrInvalidTelemetry = errors.New("invalid telemetry")

// ScoreFunc scores a Resolution at now. Higher is more preferred, both for display as
// "best" and for survival during eviction. Implementations must be pure: no side
// effects, no reliance on anything but the Resolution and now.
type ScoreFunc func(r *Resolution, now time.Time) float64

// Recycler receives addresses whose Associations were selected by an eviction pass -
// survivors and deletions both - so the zone can be brought up to date. The Store calls
// it while holding its own mutex, so implementations must not call back in.
type Recycler interface {
	Add(address string)
}

// Config carries Store construction parameters. Zero values select defaults, except
// CacheSize where a genuine zero is meaningful and -1 selects the default.
type Config struct {
	CacheSize       int
	TrendAlpha      float64
	EvictionLogSize int
	Score           ScoreFunc // Required
	Recycler        Recycler  // Optional
}

// Stats are cumulative Store counters, reported periodically.
type Stats struct {
	Observations     int
	InvalidTelemetry int
	Merged           int // Live observations merged into reload markers
	EvictionPasses   int
	Seeded           int // Resolutions reconstructed from the zone
}

// BestAnswer is a snapshot of an Association's best Resolution, taken under the Store
// mutex so callers get a consistent copy rather than a live reference.
type BestAnswer struct {
	Address    string
	Terminal   string
	Depth      int
	FirstSeen  time.Time
	LastSeen   time.Time
	QueryCount int
	Trend      float64
	Score      float64
	Reloaded   bool
}

// ResolutionDetail is one row of an address readout for the console.
type ResolutionDetail struct {
	Chain      []string
	Best       bool
	Reloaded   bool
	FirstSeen  time.Time
	LastSeen   time.Time
	QueryCount int
	Trend      float64
	Score      float64
}

// QueueEntry is one row of a queue readout.
type QueueEntry struct {
	Address     string
	Resolutions int
}

// Store is the telemetry view: the sole owner of all Associations and Resolutions, the
// enforcer of the cache bound and the driver of eviction. One mutex covers every
// observation and every complete eviction pass, which gives the same atomicity as the
// original cooperative scheduler: an eviction pass can never interleave with an
// observation.
type Store struct {
	mu sync.Mutex

	cacheSize int
	alpha     float64
	score     ScoreFunc
	recycler  Recycler

	addresses       map[string]*Association
	queue           *evictionQueue
	resolutionCount int

	evictions *EvictionLog
	stats     Stats
}

// NewStore constructs a Store. cfg.Score is required.
func NewStore(cfg Config) *Store {
	if cfg.Score == nil {
		panic("rearview: database.NewStore requires a ScoreFunc")
	}
	if cfg.CacheSize < 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.TrendAlpha <= 0.0 {
		cfg.TrendAlpha = DefaultTrendAlpha
	}
	if cfg.EvictionLogSize == 0 {
		cfg.EvictionLogSize = DefaultEvictionLogSize
	}

	return &Store{
		cacheSize: cfg.CacheSize,
		alpha:     cfg.TrendAlpha,
		score:     cfg.Score,
		recycler:  cfg.Recycler,
		addresses: make(map[string]*Association),
		queue:     newEvictionQueue(),
		evictions: newEvictionLog(cfg.EvictionLogSize),
	}
}

// SetCacheSize changes the cache bound at runtime. A shrink takes effect on subsequent
// eviction passes, which converge on the new bound.
func (t *Store) SetCacheSize(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n >= 0 {
		t.cacheSize = n
	}
}

// Observe folds one telemetry observation into the store: find or create the
// Association for address, find or create the Resolution keyed by the chain's terminal
// name, bump counters, freshen the queue and - if the resolution count has exceeded the
// cache bound - run an eviction pass before returning. Canonicalizes the address and
// rejects anything malformed with ErrInvalidTelemetry, leaving the store untouched.
func (t *Store) Observe(address string, chain []string, now time.Time) error {
	if len(chain) == 0 {
		t.countInvalid()
		return fmt.Errorf("%w: empty chain for '%s'", ErrInvalidTelemetry, address)
	}
	for _, name := range chain {
		if len(dnsutil.ChompCanonicalName(name)) == 0 {
			t.countInvalid()
			return fmt.Errorf("%w: empty name in chain for '%s'", ErrInvalidTelemetry, address)
		}
	}
	canonical, err := dnsutil.CanonicalAddr(address)
	if err != nil {
		t.countInvalid()
		return fmt.Errorf("%w: %s", ErrInvalidTelemetry, err.Error())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Observations++

	assoc, ok := t.addresses[canonical]
	if !ok {
		assoc = newAssociation(canonical)
		t.addresses[canonical] = assoc
	}

	terminal := TerminalName(chain)
	if r, ok := assoc.Resolutions[terminal]; ok {
		if r.Reloaded {
			// A live observation resurrects the placeholder: the chain becomes
			// real, first seen survives from the zone metadata and the trend is
			// left alone because nothing meaningful was observed in between.
			r.Chain = append([]string{}, chain...)
			r.LastSeen = now
			r.QueryCount++
			r.Reloaded = false
			t.stats.Merged++
		} else {
			r.seen(now, t.alpha)
		}
	} else {
		assoc.Resolutions[terminal] = newResolution(chain, now)
		t.resolutionCount++
	}
	assoc.invalidateBest()
	t.queue.touch(canonical)

	if t.resolutionCount > t.cacheSize {
		t.evict(now)
	}

	return nil
}

// SeedFromZone reconstructs a reload-marker Resolution from zone metadata at startup.
// The chain is a placeholder of the recorded depth with only the terminal name real.
// Seeding counts against the cache bound the same as live telemetry.
func (t *Store) SeedFromZone(address, terminal string, depth int,
	first, last time.Time, count int, trend float64, now time.Time) error {

	canonical, err := dnsutil.CanonicalAddr(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTelemetry, err.Error())
	}
	terminal = dnsutil.ChompCanonicalName(terminal)
	if len(terminal) == 0 {
		return fmt.Errorf("%w: empty terminal for '%s'", ErrInvalidTelemetry, address)
	}
	if depth < 1 {
		depth = 1
	}
	if count < 1 {
		count = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	assoc, ok := t.addresses[canonical]
	if !ok {
		assoc = newAssociation(canonical)
		t.addresses[canonical] = assoc
		t.queue.touch(canonical)
	}
	if _, ok := assoc.Resolutions[terminal]; ok {
		return nil // Live telemetry beat the reload; nothing to reconstruct
	}

	chain := make([]string, depth)
	chain[depth-1] = terminal
	assoc.Resolutions[terminal] = &Resolution{
		Chain:      chain,
		FirstSeen:  first,
		LastSeen:   last,
		QueryCount: count,
		Trend:      trend,
		Reloaded:   true,
	}
	assoc.invalidateBest()
	t.resolutionCount++
	t.stats.Seeded++

	if t.resolutionCount > t.cacheSize {
		t.evict(now)
	}

	return nil
}

// evict is the shearing pass. Callers hold the mutex.
//
// Selection walks Associations off the head of the queue until their cumulative
// Resolution count covers the overage, then removes the lowest-scoring Resolutions
// across that pool until the overage is gone. Surviving Associations are recycled to
// the tail; emptied ones are deleted. Every selected address - recycled or deleted - is
// handed to the Recycler so the zone can be refreshed or cleaned.
func (t *Store) evict(now time.Time) {
	overage := t.resolutionCount - t.cacheSize
	if overage <= 0 {
		return
	}
	t.stats.EvictionPasses++

	event := &EvictionEvent{
		When:       now,
		Overage:    overage,
		TargetPool: t.cacheSize,
	}

	// Step 1: select the head cohort.
	selected := make([]*Association, 0, overage)
	workingPool := 0
	for workingPool < overage {
		sheared, shortfall := t.queue.shear(1)
		if shortfall > 0 {
			break
		}
		assoc, ok := t.addresses[sheared[0]]
		if !ok {
			panic("rearview: eviction queue and store desynchronized at " + sheared[0])
		}
		selected = append(selected, assoc)
		workingPool += len(assoc.Resolutions)
	}
	event.Selected = len(selected)
	event.WorkingPool = workingPool

	// Step 2: order the cohort's Resolutions by ascending score and shear the
	// overage. Ties resolve on terminal then address so a pass is deterministic.
	type candidate struct {
		assoc *Association
		r     *Resolution
		score float64
	}
	candidates := make([]candidate, 0, workingPool)
	for _, assoc := range selected {
		for _, r := range assoc.Resolutions {
			candidates = append(candidates, candidate{assoc, r, t.score(r, now)})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		ti, tj := candidates[i].r.Terminal(), candidates[j].r.Terminal()
		if ti != tj {
			return ti < tj
		}
		return candidates[i].assoc.Address < candidates[j].assoc.Address
	})

	affected := make(map[string]struct{})
	toRemove := overage
	if toRemove > len(candidates) {
		toRemove = len(candidates)
	}
	for _, c := range candidates[:toRemove] {
		c.assoc.deleteResolution(c.r)
		t.resolutionCount--
		affected[c.assoc.Address] = struct{}{}
		event.Removed = append(event.Removed, RemovedResolution{
			Address:  c.assoc.Address,
			Terminal: c.r.Terminal(),
			Score:    c.score,
		})
	}

	// Step 3: recycle survivors, delete the emptied, and emit everything selected to
	// the Recycler.
	for _, assoc := range selected {
		if len(assoc.Resolutions) > 0 {
			t.queue.touch(assoc.Address)
			event.Recycled++
			event.RecycledAddresses = append(event.RecycledAddresses, assoc.Address)
		} else {
			delete(t.addresses, assoc.Address)
			event.Deleted++
			event.DeletedAddresses = append(event.DeletedAddresses, assoc.Address)
		}
		if t.recycler != nil {
			t.recycler.Add(assoc.Address)
		}
	}

	event.Affected = len(affected)
	for address := range affected {
		event.AffectedAddresses = append(event.AffectedAddresses, address)
	}
	sort.Strings(event.AffectedAddresses)
	sort.Strings(event.RecycledAddresses)
	sort.Strings(event.DeletedAddresses)
	event.Remaining = t.resolutionCount

	t.evictions.add(event)

	if len(t.addresses) != t.queue.len() {
		panic(fmt.Sprintf("rearview: store has %d addresses but queue has %d",
			len(t.addresses), t.queue.len()))
	}
}

func (t *Store) countInvalid() {
	t.mu.Lock()
	t.stats.InvalidTelemetry++
	t.mu.Unlock()
}

// Best returns a snapshot of the best Resolution for address, recomputing and caching
// the selection. The bool is false if the address is not present.
func (t *Store) Best(address string, now time.Time) (BestAnswer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	assoc, ok := t.addresses[address]
	if !ok {
		return BestAnswer{}, false
	}
	r, score := assoc.bestResolution(t.score, now)
	if r == nil {
		panic("rearview: empty association in store for " + address)
	}

	return BestAnswer{
		Address:    address,
		Terminal:   r.Terminal(),
		Depth:      r.Depth(),
		FirstSeen:  r.FirstSeen,
		LastSeen:   r.LastSeen,
		QueryCount: r.QueryCount,
		Trend:      r.Trend,
		Score:      score,
		Reloaded:   r.Reloaded,
	}, true
}

// Details returns console rows for every Resolution of address, sorted by terminal
// name, with the best marked. The bool is false if the address is not present.
func (t *Store) Details(address string, now time.Time) ([]ResolutionDetail, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	assoc, ok := t.addresses[address]
	if !ok {
		return nil, false
	}
	best, _ := assoc.bestResolution(t.score, now)

	terminals := make([]string, 0, len(assoc.Resolutions))
	for terminal := range assoc.Resolutions {
		terminals = append(terminals, terminal)
	}
	sort.Strings(terminals)

	details := make([]ResolutionDetail, 0, len(terminals))
	for _, terminal := range terminals {
		r := assoc.Resolutions[terminal]
		details = append(details, ResolutionDetail{
			Chain:      append([]string{}, r.Chain...),
			Best:       r == best,
			Reloaded:   r.Reloaded,
			FirstSeen:  r.FirstSeen,
			LastSeen:   r.LastSeen,
			QueryCount: r.QueryCount,
			Trend:      r.Trend,
			Score:      t.score(r, now),
		})
	}

	return details, true
}

// Addresses returns every address in the store, sorted. The console diffs this against
// the zone view.
func (t *Store) Addresses() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ar := make([]string, 0, len(t.addresses))
	for address := range t.addresses {
		ar = append(ar, address)
	}
	sort.Strings(ar)

	return ar
}

// Contains reports presence without disturbing the queue.
func (t *Store) Contains(address string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.addresses[address]

	return ok
}

// Counts returns the Association and Resolution counts.
func (t *Store) Counts() (addresses, resolutions int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.addresses), t.resolutionCount
}

// QueueSlice returns up to n queue entries from the head (oldest) or tail (freshest).
func (t *Store) QueueSlice(fromHead bool, n int) []QueueEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	ar := make([]QueueEntry, 0, n)
	for _, address := range t.queue.slice(fromHead, n) {
		entry := QueueEntry{Address: address}
		if assoc, ok := t.addresses[address]; ok {
			entry.Resolutions = len(assoc.Resolutions)
		}
		ar = append(ar, entry)
	}

	return ar
}

// RecentEvictions returns up to n eviction events, newest first.
func (t *Store) RecentEvictions(n int) []*EvictionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.evictions.recent(n)
}

// Statistics returns a copy of the cumulative counters.
func (t *Store) Statistics() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stats
}
