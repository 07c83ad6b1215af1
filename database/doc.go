/*
Package database is the telemetry view: an in-memory association of addresses to the
forward-name chains observed leading to them, bounded by a cache size and maintained by
a shearing eviction pass.

The Store owns everything. Each address has an Association; each Association holds one
Resolution per terminal name. A doubly-linked eviction queue orders addresses from most
idle (head) to most recently seen (tail). When the total Resolution count exceeds the
cache bound, Associations are sheared off the head of the queue, their lowest-scoring
Resolutions are removed, and the survivors are recycled to the tail and handed to the
zone refresh machinery.

Scoring is delegated to a ScoreFunc so that the ranking strategy stays separate from
the association bookkeeping.

Expected usage:

	store := database.NewStore(database.Config{
	        CacheSize: 10000,
	        Score:     heuristic.Score,
	        Recycler:  batcher,
	})
	store.Observe("10.2.66.5", []string{"svc.cdn.example.", "www.example.com."}, time.Now())
	best, ok := store.Best("10.2.66.5", time.Now())

One mutex covers each Observe and each complete eviction pass. Callbacks to the
Recycler happen under that mutex; the Recycler must not call back into the Store.
*/
package database
