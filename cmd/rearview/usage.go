package main

import (
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/m3047/rear-view-rpz/database"
	"github.com/m3047/rear-view-rpz/log"
	"github.com/m3047/rear-view-rpz/rpz"
	"github.com/m3047/rear-view-rpz/telemetry"
)

type parseResult int // This is a ternary variable
const (
	parseStop     parseResult = iota // No error, but don't continue
	parseContinue                    // No errors and continue
	parseFailed                      // Errors, do not continue
)

// parseOptions fills in the config from the command line. The usage output is formatted
// to fit a 100 column terminal; some usage strings carry a trailing newline to give
// dense option output a little whitespace.
func (t *rearView) parseOptions(args []string) parseResult {
	var helpFlag, versionFlag bool

	name := programName
	if len(args) > 0 {
		name = args[0]
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Consider '-h' for command-line usage")
	}

	fs.SetOutput(log.Out())

	// Non-config flags

	fs.BoolVarP(&helpFlag, "help", "h", false, "Print command-line usage")
	fs.BoolVarP(&versionFlag, "version", "v", false, "Print version and origin URL")

	// Logging

	fs.BoolVar(&t.cfg.logMajorFlag, "log-major", true, "Log major events to Stdout")
	fs.BoolVar(&t.cfg.logMinorFlag, "log-minor", false,
		"Log minor events to Stdout - this implies --log-major")
	fs.BoolVar(&t.cfg.logDebugFlag, "log-debug", false,
		"Log debug events to Stdout - this implies --log-minor")

	// Association engine

	fs.IntVar(&t.cfg.cacheSize, "cache-size", database.DefaultCacheSize,
		`Upper bound on the total Resolution count. When exceeded, the
least interesting Resolutions are sheared off and the zone is
refreshed with the survivors.`)
	fs.Float64Var(&t.cfg.trendAlpha, "trend-alpha", database.DefaultTrendAlpha,
		"Exponential weight for the query trend update (0.0-1.0)")
	fs.IntVar(&t.cfg.evictionLogSize, "eviction-log-size", database.DefaultEvictionLogSize,
		"Eviction events retained for the console readout")

	// Batching

	fs.IntVar(&t.cfg.batchSize, "batch-size", rpz.DefaultBatchSize,
		"Hard cap on addresses per dynamic update transaction")
	fs.DurationVar(&t.cfg.batchFrequency, "batch-frequency", rpz.DefaultBatchFrequency,
		"Minimum interval between batch writes")
	fs.Float64Var(&t.cfg.batchThreshold, "batch-threshold", rpz.DefaultBatchThreshold,
		`Fractional fill a batch needs before its timer may write it
(0.0-1.0). An under-filled batch keeps accumulating.`)
	fs.IntVar(&t.cfg.refreshLogSize, "refresh-log-size", rpz.DefaultRefreshLogSize,
		"Batches retained for the console readout")

	// The zone and its master

	fs.StringVar(&t.cfg.zone, "zone", "",
		`Name of the response policy zone receiving the synthesized
PTRs. Required.`)
	fs.StringVar(&t.cfg.updateTarget, "update-target", defaultUpdateTarget,
		"host:port of the zone master receiving dynamic updates")
	fs.DurationVar(&t.cfg.updateTimeout, "update-timeout", 5*time.Second,
		"Wire deadline for one update transaction")
	fs.DurationVar(&t.cfg.TTL, "TTL", 10*time.Minute, "TTL for published PTR and TXT records")
	fs.StringVar(&t.cfg.loadURL, "load", "",
		`Where to read the zone at startup: file:///path/to/zone or
axfr://server[:port]. The default transfers from
--update-target.
`)

	// Telemetry

	fs.StringVar(&t.cfg.dnstapSocket, "dnstap-socket", defaultDnstapSocket,
		"Unix socket to accept dnstap framestreams on; empty disables")
	fs.StringVar(&t.cfg.jsonListen, "json-listen", "",
		"host:port to accept JSON/UDP observations on; empty disables")
	fs.IntVar(&t.cfg.telemetryBuffer, "telemetry-buffer", telemetry.DefaultFunnelBuffer,
		"Observations buffered between the listeners and the store")

	// Everything else

	fs.StringVar(&t.cfg.consoleListen, "console", "",
		"host:port for the diagnostic console; empty disables")
	fs.DurationVar(&t.cfg.reportInterval, "report", defaultReportInterval,
		"Interval between statistics reports (>= 1s, 0 disables)")
	fs.BoolVar(&t.cfg.suppressGarbage, "suppress-garbage", false,
		"Silence per-record complaints about unexpected zone contents")

	err := fs.Parse(args[1:])
	if err != nil {
		return parseFailed
	}

	if helpFlag {
		fs.SetOutput(log.Out())
		fmt.Fprintln(log.Out(), programName, "-- synthesize PTRs from resolution telemetry into an RPZ")
		fs.PrintDefaults()
		return parseStop
	}
	if versionFlag {
		fmt.Fprintln(log.Out(), programName, Version, t.cfg.projectURL)
		return parseStop
	}

	if fs.NArg() > 0 {
		fmt.Fprintln(log.Out(), "Unexpected arguments:", fs.Args())
		return parseFailed
	}

	return parseContinue
}
