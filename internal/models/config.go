package models

import "fmt"

// CrawlMode selects which acquisition path runs.
type CrawlMode string

const (
	ModeAuto    CrawlMode = "auto"    // API when a session is available, browser otherwise
	ModeAPI     CrawlMode = "api"     // JSON API only
	ModeBrowser CrawlMode = "browser" // rendered listing only
)

// CrawlConfig carries every knob of one crawl. Populated from the config
// file and overridden by CLI flags; threaded explicitly into each component
// instead of living in package state.
type CrawlConfig struct {
	Mode        CrawlMode `mapstructure:"mode"`          // acquisition path (default: auto)
	MaxChapters int       `mapstructure:"max_chapters"`  // 0 = unlimited; caps row attempts, not pages
	ThrottleSec float64   `mapstructure:"throttle_sec"`  // delay before content-sensitive requests
	JitterMinMS int       `mapstructure:"jitter_min_ms"` // random jitter added to the throttle
	JitterMaxMS int       `mapstructure:"jitter_max_ms"`

	MaxRetries  int     `mapstructure:"max_retries"`  // request executor attempt bound
	BackoffBase float64 `mapstructure:"backoff_base"` // sleep = backoff_base^attempt seconds

	ItemsPerPage     int `mapstructure:"items_per_page"`     // observed listing page size; see config.yaml note
	MaxGroupAdvances int `mapstructure:"max_group_advances"` // pagination "next group" click bound
	MaxWalkSteps     int `mapstructure:"max_walk_steps"`     // sequential walker step bound
	NavTimeoutSec    int `mapstructure:"nav_timeout_sec"`    // per-navigation timeout
	StepTimeoutSec   int `mapstructure:"step_timeout_sec"`   // short element-wait timeout

	Headless bool   `mapstructure:"headless"` // browser mode only
	Proxy    string `mapstructure:"proxy"`    // http(s) proxy URL, optional
	Language string `mapstructure:"language"` // packaged document language code
	Verbose  bool   `mapstructure:"verbose"`  // diagnostic request/response logging
}

// Validate rejects configurations that would unbound a loop or stall a run.
func (c *CrawlConfig) Validate() error {
	switch c.Mode {
	case ModeAuto, ModeAPI, ModeBrowser:
	default:
		return fmt.Errorf("mode must be one of auto|api|browser, got %q", c.Mode)
	}
	if c.MaxChapters < 0 {
		return fmt.Errorf("max chapters must be >= 0 (0 = unlimited)")
	}
	if c.ThrottleSec < 0 || c.ThrottleSec > 60 {
		return fmt.Errorf("throttle must be between 0 and 60 seconds")
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 1 and 10")
	}
	if c.BackoffBase < 1.0 || c.BackoffBase > 5.0 {
		return fmt.Errorf("backoff base must be between 1.0 and 5.0")
	}
	if c.ItemsPerPage < 1 {
		return fmt.Errorf("items per page must be >= 1")
	}
	if c.MaxGroupAdvances < 1 || c.MaxGroupAdvances > 200 {
		return fmt.Errorf("max group advances must be between 1 and 200")
	}
	if c.MaxWalkSteps < 1 || c.MaxWalkSteps > 2000 {
		return fmt.Errorf("max walk steps must be between 1 and 2000")
	}
	if c.NavTimeoutSec < 1 || c.NavTimeoutSec > 300 {
		return fmt.Errorf("navigation timeout must be between 1 and 300 seconds")
	}
	return nil
}
