package main

import (
	"fmt"
	"net/url"
	"runtime/debug"
	"time"
)

const (
	programName = "rearview"

	defaultProjectURL = "https://github.com/m3047/rear-view-rpz"

	defaultUpdateTarget   = "127.0.0.1:53"
	defaultDnstapSocket   = "/tmp/dnstap"
	defaultReportInterval = time.Hour
	defaultBatchTick      = time.Second
)

type loadScheme int

const (
	noScheme loadScheme = iota
	fileScheme
	axfrScheme
)

// loadSource is where the RPZ contents come from at startup.
type loadSource struct {
	url    string
	scheme loadScheme
	path   string // file system path for fileScheme
	host   string // server for axfrScheme
	port   string
}

// config defines the global settings used by rearview. They apply across the whole
// program and once set are never changed, so they are shared amongst go-routines
// without any lock protection.
type config struct {
	projectURL string

	logMajorFlag bool
	logMinorFlag bool
	logDebugFlag bool

	cacheSize       int
	trendAlpha      float64
	evictionLogSize int

	batchSize      int
	batchFrequency time.Duration
	batchThreshold float64
	refreshLogSize int

	zone          string // The RPZ these PTRs are published into
	updateTarget  string // host:port of the zone master
	updateTimeout time.Duration

	TTL       time.Duration
	TTLAsSecs uint32

	loadURL string // Where to read the zone at startup; empty derives from updateTarget
	load    *loadSource

	dnstapSocket    string
	jsonListen      string // Empty disables the JSON/UDP listener
	telemetryBuffer int

	consoleListen string // Empty disables the console

	reportInterval  time.Duration
	suppressGarbage bool
}

func newConfig() *config {
	t := &config{projectURL: defaultProjectURL}
	info, ok := debug.ReadBuildInfo()
	if ok && len(info.Main.Path) > 0 {
		t.projectURL = "https://" + info.Main.Path
	}

	return t
}

// parseLoadSource interprets the --load URL. Supported schemes are file:// for a master
// file and axfr:// for an inbound transfer from a server.
func parseLoadSource(s string) (*loadSource, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	ls := &loadSource{
		url:  s,
		host: u.Hostname(),
		port: u.Port(),
		path: u.Path,
	}

	switch u.Scheme {
	case "file":
		ls.scheme = fileScheme
		if len(ls.path) == 0 {
			return nil, fmt.Errorf("%s URL must contain a file system path", u.Scheme)
		}
		if len(ls.host) > 0 || len(ls.port) > 0 {
			return nil, fmt.Errorf("%s URL cannot contain a host or port", u.Scheme)
		}

		// Special case mostly for tests: a path starting with "/./" becomes
		// relative, as url.Path otherwise has no way to express one.
		if len(ls.path) > 2 && ls.path[:3] == "/./" {
			ls.path = ls.path[1:]
		}

	case "axfr":
		ls.scheme = axfrScheme
		if len(ls.host) == 0 {
			return nil, fmt.Errorf("%s URL must contain a server name", u.Scheme)
		}
		if len(ls.port) == 0 {
			ls.port = "53"
		}

	default:
		return nil, fmt.Errorf("%s is not a supported scheme", u.Scheme)
	}

	return ls, nil
}
