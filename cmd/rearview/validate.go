package main

import (
	"fmt"
	"net"
	"time"
)

// ValidateCommandLineOptions catches everything which is likely a typo or usage error
// before the agent touches the network.
func (t *rearView) ValidateCommandLineOptions() error {
	cfg := t.cfg

	if len(cfg.zone) == 0 {
		return fmt.Errorf("--zone is required")
	}

	if cfg.cacheSize < 0 {
		return fmt.Errorf("--cache-size (%d) cannot be negative", cfg.cacheSize)
	}
	if cfg.trendAlpha <= 0.0 || cfg.trendAlpha > 1.0 {
		return fmt.Errorf("--trend-alpha (%f) must be in (0.0, 1.0]", cfg.trendAlpha)
	}
	if cfg.batchThreshold <= 0.0 || cfg.batchThreshold > 1.0 {
		return fmt.Errorf("--batch-threshold (%f) must be in (0.0, 1.0]", cfg.batchThreshold)
	}
	if cfg.batchSize < 1 {
		return fmt.Errorf("--batch-size (%d) must be at least one", cfg.batchSize)
	}
	if cfg.batchFrequency < time.Second {
		return fmt.Errorf("--batch-frequency (%s) must be at least a second", cfg.batchFrequency)
	}
	if cfg.evictionLogSize < 1 || cfg.refreshLogSize < 1 {
		return fmt.Errorf("log sizes must be at least one")
	}

	if _, _, err := net.SplitHostPort(cfg.updateTarget); err != nil {
		return fmt.Errorf("--update-target: %w", err)
	}
	if len(cfg.jsonListen) > 0 {
		if _, _, err := net.SplitHostPort(cfg.jsonListen); err != nil {
			return fmt.Errorf("--json-listen: %w", err)
		}
	}
	if len(cfg.consoleListen) > 0 {
		if _, _, err := net.SplitHostPort(cfg.consoleListen); err != nil {
			return fmt.Errorf("--console: %w", err)
		}
	}

	if cfg.TTL < time.Second {
		return fmt.Errorf("--TTL (%s) must be at least a second", cfg.TTL)
	}
	cfg.TTLAsSecs = uint32(cfg.TTL.Round(time.Second).Seconds())

	if cfg.reportInterval != 0 && cfg.reportInterval < time.Second {
		return fmt.Errorf("--report (%s) must be at least a second", cfg.reportInterval)
	}

	if len(cfg.loadURL) == 0 {
		cfg.loadURL = "axfr://" + cfg.updateTarget
	}
	load, err := parseLoadSource(cfg.loadURL)
	if err != nil {
		return fmt.Errorf("--load: %w", err)
	}
	cfg.load = load

	return nil
}
