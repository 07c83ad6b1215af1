package rpz

import (
	"context"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/m3047/rear-view-rpz/database"
	"github.com/m3047/rear-view-rpz/log"
	"github.com/m3047/rear-view-rpz/updater"
)

const (
	DefaultBatchSize      = 32
	DefaultBatchFrequency = 30 * time.Second
	DefaultBatchThreshold = 0.5
	DefaultRefreshLogSize = 50
	DefaultTTL            = uint32(600)
)

// BatchState is the lifecycle position of a Batch. Transitions are monotonic and
// one-way: new -> accumulating -> writing -> complete.
type BatchState int

const (
	BatchNew BatchState = iota
	BatchAccumulating
	BatchWriting
	BatchComplete
)

func (t BatchState) String() string {
	switch t {
	case BatchNew:
		return "new"
	case BatchAccumulating:
		return "accumulating"
	case BatchWriting:
		return "writing"
	case BatchComplete:
		return "complete"
	}

	return "unknown"
}

// Batch is one unit of dynamic-update work: the addresses recycled since the previous
// write, capped at the batch size, plus the statistics the refresh readout wants.
type Batch struct {
	Created time.Time
	State   BatchState

	AddCalls  int      // Attempted additions, including those dropped by the cap
	Addresses []string // What actually accumulated

	Accumulating time.Duration // Creation to promotion
	Processing   time.Duration // Promotion to completion

	WireRequestBytes  int
	WireResponseBytes int
	Rcode             int    // -1 until a response arrives
	Err               string // Transport failure, if any

	Updated int // PTRs written
	Deleted int // Reverse names removed (address left the store)
}

// BestFinder is the slice of the telemetry store the batcher needs at commit time.
// Satisfied by *database.Store.
type BestFinder interface {
	Best(address string, now time.Time) (database.BestAnswer, bool)
}

// BatcherConfig carries Batcher construction parameters. Zero values select defaults.
type BatcherConfig struct {
	Size      int           // Hard cap on addresses per batch
	Frequency time.Duration // Minimum time between batch writes
	Threshold float64       // Fractional fill required before the timer may write
	LogSize   int
	TTL       uint32
	Timeout   time.Duration // Per-commit wire deadline

	Clock func() time.Time // Tests override; nil means time.Now
}

// BatcherStats are cumulative counters, reported periodically.
type BatcherStats struct {
	AddCalls int
	Dropped  int
	Written  int // Batches committed with NOERROR
	Failed   int // Batches completed with an error or bad rcode
}

// Batcher accumulates recycled addresses into Batches and commits each as a single
// dynamic-update transaction. At most one batch is ever writing; a batch being
// committed leaves the accumulator slot, so adds arriving during a write open a fresh
// batch which accumulates concurrently.
//
// Addresses are held as keys only. They are resolved against the store at commit time,
// which is the moment the batcher's consistency window closes: an address which left
// the store since being recycled turns into a zone deletion instead of an update.
type Batcher struct {
	cfg  BatcherConfig
	zone string
	up   updater.Updater
	view *ZoneView

	store BestFinder

	mu      sync.Mutex
	current *Batch
	writing bool
	history *refreshLog
	stats   BatcherStats
}

// NewBatcher wires a Batcher to its collaborators. The store is attached separately
// with SetStore because store and batcher reference one another and somebody has to be
// constructed first.
func NewBatcher(cfg BatcherConfig, view *ZoneView, up updater.Updater) *Batcher {
	if cfg.Size <= 0 {
		cfg.Size = DefaultBatchSize
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = DefaultBatchFrequency
	}
	if cfg.Threshold <= 0.0 || cfg.Threshold > 1.0 {
		cfg.Threshold = DefaultBatchThreshold
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = DefaultRefreshLogSize
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Batcher{
		cfg:     cfg,
		zone:    view.Origin(),
		up:      up,
		view:    view,
		history: newRefreshLog(cfg.LogSize),
	}
}

// SetStore attaches the commit-time resolver. Must be called before the first Tick.
func (t *Batcher) SetStore(store BestFinder) {
	t.store = store
}

// Add enqueues a recycled address. This is the database.Recycler interface and is
// called with the store mutex held, so it must never call back into the store.
func (t *Batcher) Add(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.AddCalls++
	if t.current == nil {
		t.current = &Batch{Created: t.cfg.Clock(), State: BatchNew, Rcode: -1}
		t.history.add(t.current)
	}

	b := t.current
	b.AddCalls++
	if len(b.Addresses) >= t.cfg.Size {
		t.stats.Dropped++ // Counted in AddCalls but not in Addresses
		return
	}
	b.Addresses = append(b.Addresses, address)
	if b.State == BatchNew {
		b.State = BatchAccumulating
	}
}

// Tick is the periodic clock. If the current batch has been accumulating for at least
// the configured frequency *and* has reached the threshold fill, it is promoted to
// writing and committed before Tick returns. A batch which is old enough but too empty
// keeps accumulating - no write is forced on a sparsely loaded server. A promotion is
// also deferred while another batch holds the writer slot.
func (t *Batcher) Tick(now time.Time) {
	t.mu.Lock()
	b := t.current
	if b == nil || b.State != BatchAccumulating || t.writing {
		t.mu.Unlock()
		return
	}
	if now.Sub(b.Created) < t.cfg.Frequency {
		t.mu.Unlock()
		return
	}
	if float64(len(b.Addresses)) < float64(t.cfg.Size)*t.cfg.Threshold {
		t.mu.Unlock()
		return
	}

	b.State = BatchWriting
	b.Accumulating = now.Sub(b.Created)
	t.writing = true
	t.current = nil // Adds arriving during the write start a fresh batch
	t.mu.Unlock()

	t.commit(b, now)
}

// commit resolves the batch against the store, issues one update transaction and
// settles the batch. Wire I/O happens outside the batcher mutex.
func (t *Batcher) commit(b *Batch, now time.Time) {
	started := t.cfg.Clock()

	type applied struct {
		address  string
		terminal string
		meta     Metadata
	}
	updates := make([]applied, 0, len(b.Addresses))
	deletions := make([]string, 0)

	msg := new(dns.Msg)
	msg.SetUpdate(t.zone)

	seen := make(map[string]struct{})
	for _, address := range b.Addresses {
		if _, ok := seen[address]; ok {
			continue // Recycled more than once while accumulating
		}
		seen[address] = struct{}{}

		owner := t.view.OwnerName(address)
		if len(owner) == 0 {
			continue
		}

		best, ok := t.store.Best(address, now)
		if !ok {
			// The address left the store since it was recycled. If the zone
			// still publishes it, clean it out; otherwise nothing to do.
			if _, published := t.view.Entry(address); published {
				msg.RemoveName([]dns.RR{&dns.ANY{Hdr: dns.RR_Header{Name: owner}}})
				deletions = append(deletions, address)
			}
			continue
		}

		meta := Metadata{
			First:  best.FirstSeen,
			Last:   best.LastSeen,
			Update: now,
			Count:  best.QueryCount,
			Trend:  best.Trend,
			Score:  best.Score,
			Depth:  best.Depth,
		}

		// Replace whatever is there: remove the RRsets then add the fresh pair.
		msg.RemoveName([]dns.RR{&dns.ANY{Hdr: dns.RR_Header{Name: owner}}})
		msg.Insert([]dns.RR{
			&dns.PTR{
				Hdr: dns.RR_Header{Name: owner, Rrtype: dns.TypePTR,
					Class: dns.ClassINET, Ttl: t.cfg.TTL},
				Ptr: dns.CanonicalName(best.Terminal),
			},
			&dns.TXT{
				Hdr: dns.RR_Header{Name: owner, Rrtype: dns.TypeTXT,
					Class: dns.ClassINET, Ttl: t.cfg.TTL},
				Txt: []string{meta.Format()},
			},
		})
		updates = append(updates, applied{address, best.Terminal, meta})
	}

	var exchanged updater.Exchanged
	var err error
	if len(updates) > 0 || len(deletions) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.Timeout)
		exchanged, err = t.up.Exchange(ctx, msg)
		cancel()
	} else {
		// Nothing survived resolution; settle the batch without touching the wire.
		exchanged.Response = new(dns.Msg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b.State = BatchComplete
	b.Processing = t.cfg.Clock().Sub(started)
	t.writing = false

	if err != nil {
		b.Err = err.Error()
		t.stats.Failed++
		log.Majorf("batch update of %d addresses failed: %s", len(b.Addresses), err.Error())
		return
	}

	b.WireRequestBytes = exchanged.RequestBytes
	b.WireResponseBytes = exchanged.ResponseBytes
	b.Rcode = exchanged.Response.Rcode

	if b.Rcode != dns.RcodeSuccess {
		t.stats.Failed++
		log.Majorf("batch update of %d addresses refused: %s",
			len(b.Addresses), dns.RcodeToString[b.Rcode])
		return
	}

	// Success: advance the zone view. Failed batches leave it alone, which is what
	// makes the drift visible to the a2z crosscheck.
	for _, u := range updates {
		t.view.apply(u.address, u.terminal, u.meta)
	}
	for _, address := range deletions {
		t.view.remove(address)
	}
	b.Updated = len(updates)
	b.Deleted = len(deletions)
	t.stats.Written++

	log.Minorf("batch wrote %d PTRs, removed %d, %d/%d wire bytes",
		len(updates), len(deletions), b.WireRequestBytes, b.WireResponseBytes)
}

// Depth returns the accumulating batch's fill, for the console's queue-depth readout.
func (t *Batcher) Depth() (accumulating int, writing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		accumulating = len(t.current.Addresses)
	}

	return accumulating, t.writing
}

// RecentRefreshes returns copies of up to n batches, newest first.
func (t *Batcher) RecentRefreshes(n int) []Batch {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.history.recent(n)
}

// Statistics returns a copy of the cumulative counters.
func (t *Batcher) Statistics() BatcherStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stats
}

// refreshLog is a bounded ring of Batches. The batcher mutex covers it.
type refreshLog struct {
	limit   int
	entries []*Batch
}

func newRefreshLog(limit int) *refreshLog {
	if limit < 1 {
		limit = 1
	}

	return &refreshLog{limit: limit}
}

func (t *refreshLog) add(b *Batch) {
	if len(t.entries) >= t.limit {
		t.entries = t.entries[1:]
	}
	t.entries = append(t.entries, b)
}

func (t *refreshLog) recent(n int) []Batch {
	if n > len(t.entries) {
		n = len(t.entries)
	}
	ar := make([]Batch, 0, n)
	for ix := len(t.entries) - 1; ix >= len(t.entries)-n; ix-- {
		entry := *t.entries[ix]
		entry.Addresses = append([]string{}, t.entries[ix].Addresses...)
		ar = append(ar, entry)
	}

	return ar
}
