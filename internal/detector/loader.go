package detector

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ruleOverride is one rule entry in a pattern rules file.
type ruleOverride struct {
	Threshold int    `yaml:"threshold"`
	Window    string `yaml:"window"`
}

// rulesFile is the on-disk format for pattern threshold overrides:
//
//	rules:
//	  repeated_failed_logins:
//	    threshold: 5
//	    window: 15m
type rulesFile struct {
	Rules map[string]ruleOverride `yaml:"rules"`
}

// LoadConfig reads a pattern rules file and applies its overrides on top of
// the defaults. Unknown rule names are rejected so typos fail loudly at boot.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse rules file: %w", err)
	}

	for name, rule := range file.Rules {
		var threshold *int
		var window *time.Duration

		if rule.Threshold > 0 {
			t := rule.Threshold
			threshold = &t
		}
		if rule.Window != "" {
			w, err := time.ParseDuration(rule.Window)
			if err != nil {
				return cfg, fmt.Errorf("rule %s: invalid window %q: %w", name, rule.Window, err)
			}
			window = &w
		}

		switch name {
		case PatternRepeatedFailedLogins:
			applyOverride(&cfg.FailedLoginThreshold, &cfg.FailedLoginWindow, threshold, window)
		case PatternSuspiciousActivity:
			applyOverride(&cfg.SuspiciousThreshold, &cfg.SuspiciousWindow, threshold, window)
		case PatternRateLimitViolation:
			applyOverride(&cfg.RateLimitThreshold, &cfg.RateLimitWindow, threshold, window)
		default:
			return cfg, fmt.Errorf("unknown pattern rule %q", name)
		}
	}

	return cfg, nil
}

func applyOverride(threshold *int, window *time.Duration, t *int, w *time.Duration) {
	if t != nil {
		*threshold = *t
	}
	if w != nil {
		*window = *w
	}
}
