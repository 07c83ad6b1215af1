/*
Package rpz maintains the zone-side half of the agent: an in-memory mirror of the RPZ as
published (ZoneView), the batch accumulator which turns recycled addresses into dynamic
update transactions (Batcher), and the startup loader which reconstructs both views from
the zone itself.

The telemetry view (package database) and the zone view are deliberately not
transactional with respect to one another. A failed update simply leaves the zone behind
the telemetry view; the drift is observable through the console's a2z crosscheck and
heals as later eviction passes recycle the same addresses.
*/
package rpz
