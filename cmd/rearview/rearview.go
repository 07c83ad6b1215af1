package main

import (
	"context"
	"os"
	"time"

	"github.com/m3047/rear-view-rpz/console"
	"github.com/m3047/rear-view-rpz/database"
	"github.com/m3047/rear-view-rpz/heuristic"
	"github.com/m3047/rear-view-rpz/log"
	"github.com/m3047/rear-view-rpz/rpz"
	"github.com/m3047/rear-view-rpz/telemetry"
	"github.com/m3047/rear-view-rpz/updater"
)

// The rearView container exists so that most of the "main" functionality can be
// delegated to support functions and help keep the flow of main() nice and clean.
type rearView struct {
	cfg *config

	done chan struct{} // Collaborative go-routines monitor this - see Done()
	sig  chan os.Signal

	store   *database.Store
	view    *rpz.ZoneView
	batcher *rpz.Batcher
	updater updater.Updater
	funnel  *telemetry.Funnel

	dnstapListener *telemetry.DnstapListener
	jsonListener   *telemetry.JSONListener
	consoleServer  *console.Server

	startTime time.Time
}

func newRearView(cfg *config, up updater.Updater) *rearView {
	t := &rearView{
		cfg:     cfg,
		done:    make(chan struct{}),
		sig:     make(chan os.Signal, 1),
		updater: up,
	}
	if t.cfg == nil {
		t.cfg = newConfig()
	}

	return t
}

// Done is the idiomatic way to tell collaborative go-routines to exit. All such
// go-routines should include a "case <-rearView.Done(): return" in their select loop.
func (t *rearView) Done() <-chan struct{} {
	return t.done
}

// assemble wires the engine together. Ordering is dictated by the mutual references:
// the batcher needs the zone view and the updater, the store needs the batcher as its
// recycler, and the batcher resolves addresses against the store at commit time.
func (t *rearView) assemble() {
	cfg := t.cfg

	if t.updater == nil {
		t.updater = updater.NewUpdater(cfg.updateTarget, cfg.updateTimeout)
	}

	t.view = rpz.NewZoneView(cfg.zone)
	t.batcher = rpz.NewBatcher(rpz.BatcherConfig{
		Size:      cfg.batchSize,
		Frequency: cfg.batchFrequency,
		Threshold: cfg.batchThreshold,
		LogSize:   cfg.refreshLogSize,
		TTL:       cfg.TTLAsSecs,
		Timeout:   cfg.updateTimeout,
	}, t.view, t.updater)

	t.store = database.NewStore(database.Config{
		CacheSize:       cfg.cacheSize,
		TrendAlpha:      cfg.trendAlpha,
		EvictionLogSize: cfg.evictionLogSize,
		Score:           heuristic.Score,
		Recycler:        t.batcher,
	})
	t.batcher.SetStore(t.store)

	t.funnel = telemetry.NewFunnel(t.store, cfg.telemetryBuffer)
}

// loadZone populates the zone view and seeds the store, per --load.
func (t *rearView) loadZone() error {
	var garbage rpz.GarbageLogger
	if !t.cfg.suppressGarbage {
		garbage = rpz.DefaultGarbageLogger
	}
	loader := rpz.NewLoader(t.view, t.store, garbage)

	now := time.Now()
	var err error
	switch t.cfg.load.scheme {
	case fileScheme:
		err = loader.LoadFromFile(t.cfg.load.path, t.cfg.TTLAsSecs, now)
	case axfrScheme:
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = loader.LoadFromAXFR(ctx, t.updater, now)
		cancel()
	}
	if err != nil {
		return err
	}

	log.Majorf("Zone load: %d records, %d entries, %d garbage",
		loader.Records, loader.Loaded, loader.Garbage)

	return nil
}

// startListeners opens the telemetry and console services.
func (t *rearView) startListeners() error {
	t.funnel.Start()

	if len(t.cfg.dnstapSocket) > 0 {
		t.dnstapListener = telemetry.NewDnstapListener(t.cfg.dnstapSocket, t.funnel)
		if err := t.dnstapListener.Start(); err != nil {
			return err
		}
		log.Major("Listen on: dnstap ", t.cfg.dnstapSocket)
	}

	if len(t.cfg.jsonListen) > 0 {
		t.jsonListener = telemetry.NewJSONListener(t.cfg.jsonListen, t.funnel)
		if err := t.jsonListener.Start(); err != nil {
			return err
		}
		log.Major("Listen on: json ", t.cfg.jsonListen)
	}

	if len(t.cfg.consoleListen) > 0 {
		t.consoleServer = console.NewServer(t.cfg.consoleListen, &console.Context{
			Store:   t.store,
			View:    t.view,
			Batcher: t.batcher,
			Funnel:  t.funnel,
		})
		if err := t.consoleServer.Start(); err != nil {
			return err
		}
		log.Major("Listen on: console ", t.cfg.consoleListen)
	}

	return nil
}

// stopListeners reverses startListeners. The funnel drains before this returns, so the
// store is quiescent afterwards. In-flight batches are abandoned: the zone is the
// durable view and the next run reconstructs from it.
func (t *rearView) stopListeners() {
	if t.dnstapListener != nil {
		t.dnstapListener.Stop()
	}
	if t.jsonListener != nil {
		t.jsonListener.Stop()
	}
	t.funnel.Close()
	if t.consoleServer != nil {
		t.consoleServer.Stop()
	}
	log.Minor("All listeners stopped")
}
