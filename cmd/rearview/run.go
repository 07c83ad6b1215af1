package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3047/rear-view-rpz/log"
)

// Run is the main loop: it drives the batcher's clock, emits periodic statistics and
// watches for signals. Only returns on a termination signal.
func (t *rearView) Run() {
	t.startTime = time.Now()

	signal.Notify(t.sig, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)

	batchTicker := time.NewTicker(defaultBatchTick)
	defer batchTicker.Stop()

	// Conditionally create the periodic report channel. Fortunately select purposely
	// doesn't mind a nil channel, which is very convenient.
	var reportChannel <-chan time.Time
	if t.cfg.reportInterval > 0 {
		reportTicker := time.NewTicker(t.cfg.reportInterval)
		reportChannel = reportTicker.C
		defer reportTicker.Stop()
	}

	fmt.Fprintln(log.Out(), programName, Version, "Ready")

	var sig os.Signal
	stopFlag := false
	for !stopFlag {
		select {
		case now := <-batchTicker.C:
			t.batcher.Tick(now)

		case <-reportChannel:
			t.statsReport()

		case sig = <-t.sig:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				stopFlag = true
			case syscall.SIGUSR1: // USR1 produces a status report
				t.statsReport()
			}
		}
	}

	log.Majorf("Signal '%s' initiates shutdown", sig)
	close(t.done)
	t.stopListeners()
}

// statsReport writes a summary of the engine counters.
func (t *rearView) statsReport() {
	up := time.Now().Sub(t.startTime).Round(time.Second)

	// Include version with uptime for stats parsers: as output evolves across
	// releases, the version tells them exactly what to expect.
	log.Major("Stats: Uptime ", up, " ", Version)

	stats := t.store.Statistics()
	addresses, resolutions := t.store.Counts()
	log.Majorf("Stats: Store obs=%d invalid=%d merged=%d seeded=%d passes=%d addrs=%d res=%d",
		stats.Observations, stats.InvalidTelemetry, stats.Merged, stats.Seeded,
		stats.EvictionPasses, addresses, resolutions)

	bstats := t.batcher.Statistics()
	log.Majorf("Stats: Batch adds=%d dropped=%d written=%d failed=%d zone=%d",
		bstats.AddCalls, bstats.Dropped, bstats.Written, bstats.Failed, t.view.Count())

	if t.dnstapListener != nil {
		taken, dropped, invalid := t.funnel.Counters()
		log.Majorf("Stats: Telemetry frames=%d skipped=%d taken=%d dropped=%d invalid=%d",
			t.dnstapListener.Frames.Load(), t.dnstapListener.Skipped.Load(),
			taken, dropped, invalid)
	}
}
