package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/m3047/rear-view-rpz/log"
)

func reportError(severity string, err error, messages ...string) {
	msg := severity
	if len(messages) > 0 {
		msg += ": " + strings.Join(messages, " ")
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(log.Out(), msg)
}

func fatal(err error, messages ...string) {
	reportError("Fatal", err, messages...)
	os.Exit(1)
}

//////////////////////////////////////////////////////////////////////

func main() {
	rv := newRearView(nil, nil)
	switch rv.parseOptions(os.Args) {
	case parseStop:
		return
	case parseFailed:
		os.Exit(1)
	case parseContinue:
	}

	// Transfer logging options to the log package

	if rv.cfg.logMajorFlag {
		log.SetLevel(log.MajorLevel)
	}
	if rv.cfg.logMinorFlag {
		log.SetLevel(log.MinorLevel)
	}
	if rv.cfg.logDebugFlag {
		log.SetLevel(log.DebugLevel)
	}

	fmt.Fprintln(log.Out(),
		programName, Version, "Starting with Log Level:", log.Level())

	// Validate everything that is likely a typo or usage error
	err := rv.ValidateCommandLineOptions()
	if err != nil {
		fatal(err)
	}

	rv.assemble()

	// Reconstruct both views from the zone before any telemetry flows.
	err = rv.loadZone()
	if err != nil {
		fatal(err, "cannot load", rv.cfg.zone)
	}

	err = rv.startListeners()
	if err != nil {
		fatal(err)
	}

	rv.Run()

	rv.statsReport() // Final stats - depending on log level

	fmt.Fprintln(log.Out(), programName, Version, "Exiting after",
		time.Now().Sub(rv.startTime).Round(time.Second))
}
