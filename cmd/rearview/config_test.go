package main

import (
	"strings"
	"testing"
)

func TestParseLoadSource(t *testing.T) {
	testCases := []struct {
		url    string
		scheme loadScheme
		ok     bool
	}{
		{"file:///var/named/rpz.zone", fileScheme, true},
		{"file:///./testdata/rpz.zone", fileScheme, true},
		{"axfr://127.0.0.1:53053", axfrScheme, true},
		{"axfr://ns.example.com", axfrScheme, true},
		{"file://host/path", 0, false}, // file cannot carry a host
		{"axfr://", 0, false},          // axfr needs a server
		{"http://example.com/zone", 0, false},
		{"1.2.3.4", 0, false},
	}
	for _, tc := range testCases {
		ls, err := parseLoadSource(tc.url)
		if tc.ok != (err == nil) {
			t.Errorf("'%s' expected ok=%t, got %v", tc.url, tc.ok, err)
			continue
		}
		if err != nil {
			continue
		}
		if ls.scheme != tc.scheme {
			t.Errorf("'%s' wrong scheme %d", tc.url, ls.scheme)
		}
	}

	// The "/./" escape hatch makes a relative path expressible.
	ls, err := parseLoadSource("file:///./testdata/rpz.zone")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ls.path, "./") {
		t.Error("Relative path not preserved", ls.path)
	}

	// axfr defaults the port.
	ls, _ = parseLoadSource("axfr://ns.example.com")
	if ls.port != "53" {
		t.Error("Default port not applied", ls.port)
	}
}

func TestValidateOptions(t *testing.T) {
	rv := newRearView(nil, nil)
	if err := rv.ValidateCommandLineOptions(); err == nil {
		t.Error("Missing --zone should fail validation")
	}

	rv = newRearView(nil, nil)
	switch rv.parseOptions([]string{programName, "--zone", "rpz.example.com"}) {
	case parseContinue:
	default:
		t.Fatal("Parse of minimal options failed")
	}
	if err := rv.ValidateCommandLineOptions(); err != nil {
		t.Error("Minimal options should validate:", err)
	}
	if rv.cfg.load == nil || rv.cfg.load.scheme != axfrScheme {
		t.Error("Default load source should transfer from the update target")
	}
	if rv.cfg.TTLAsSecs != 600 {
		t.Error("TTL not converted", rv.cfg.TTLAsSecs)
	}

	rv = newRearView(nil, nil)
	rv.parseOptions([]string{programName, "--zone", "z.", "--batch-threshold", "1.5"})
	if err := rv.ValidateCommandLineOptions(); err == nil {
		t.Error("Out of range threshold should fail")
	}

	rv = newRearView(nil, nil)
	rv.parseOptions([]string{programName, "--zone", "z.", "--trend-alpha", "0"})
	if err := rv.ValidateCommandLineOptions(); err == nil {
		t.Error("Zero alpha should fail")
	}
}

func TestParseOptions(t *testing.T) {
	rv := newRearView(nil, nil)
	if rv.parseOptions([]string{programName, "--help"}) != parseStop {
		t.Error("--help should stop")
	}

	rv = newRearView(nil, nil)
	if rv.parseOptions([]string{programName, "--version"}) != parseStop {
		t.Error("--version should stop")
	}

	rv = newRearView(nil, nil)
	if rv.parseOptions([]string{programName, "--no-such-option"}) != parseFailed {
		t.Error("Unknown option should fail")
	}

	rv = newRearView(nil, nil)
	if rv.parseOptions([]string{programName, "stray"}) != parseFailed {
		t.Error("Stray arguments should fail")
	}

	rv = newRearView(nil, nil)
	result := rv.parseOptions([]string{programName,
		"--zone", "rpz.example.com",
		"--cache-size", "500",
		"--batch-size", "16",
		"--console", "127.0.0.1:3047",
	})
	if result != parseContinue {
		t.Fatal("Full option parse failed")
	}
	if rv.cfg.cacheSize != 500 || rv.cfg.batchSize != 16 {
		t.Error("Options not transferred to config")
	}
	if rv.cfg.consoleListen != "127.0.0.1:3047" {
		t.Error("Console option not transferred")
	}
}
