// Package config loads and persists the WAF's runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the process-wide, mutable-at-runtime configuration described
// in the data model: ports, upstream target, rate-limit and violation
// thresholds, and the paths the banned-set and event log are persisted to.
type Config struct {
	WAFPort                string `json:"wafPort"`
	BackendURL             string `json:"backendUrl"`
	MaxRequests            int    `json:"maxRequests"`
	TimeWindowSeconds      int    `json:"timeWindow"`
	MaxViolations          int    `json:"maxViolations"`
	ViolationWindowSeconds int    `json:"violationWindow"`
	BanDuration            int    `json:"banDuration"`
	BannedIPsPath          string `json:"-"`
	LogPath                string `json:"-"`
}

// AdminView is the subset of Config the /admin/config endpoints read and
// write, matching the original four-field shape.
type AdminView struct {
	MaxRequests int    `json:"maxRequests"`
	TimeWindow  int    `json:"timeWindow"`
	BanDuration int    `json:"banDuration"`
	BackendURL  string `json:"backendUrl"`
}

// Defaults returns the built-in defaults used when no config file is present.
func Defaults() *Config {
	return &Config{
		WAFPort:                ":8080",
		BackendURL:             "http://localhost:8000",
		MaxRequests:            100,
		TimeWindowSeconds:      60,
		MaxViolations:          3,
		ViolationWindowSeconds: 300,
		BanDuration:            10,
		BannedIPsPath:          "banned_ips.json",
		LogPath:                "waf_access.log",
	}
}

// Validate enforces the invariants from the data model: max_requests >= 1,
// time_window_seconds >= 1, max_violations >= 1.
func (c *Config) Validate() error {
	if c.MaxRequests < 1 {
		return fmt.Errorf("config: maxRequests must be >= 1, got %d", c.MaxRequests)
	}
	if c.TimeWindowSeconds < 1 {
		return fmt.Errorf("config: timeWindow must be >= 1, got %d", c.TimeWindowSeconds)
	}
	if c.MaxViolations < 1 {
		return fmt.Errorf("config: maxViolations must be >= 1, got %d", c.MaxViolations)
	}
	return nil
}

// Load reads JSON config from path, overlaying it on the defaults. A
// missing or unreadable file is not an error: the defaults are returned
// unchanged, mirroring the "never aborts" lifecycle the banned-set store
// also follows.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil
	}
	var view AdminView
	if err := json.Unmarshal(data, &view); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyAdminView(view)
	return cfg, nil
}

func (c *Config) applyAdminView(v AdminView) {
	if v.MaxRequests > 0 {
		c.MaxRequests = v.MaxRequests
	}
	if v.TimeWindow > 0 {
		c.TimeWindowSeconds = v.TimeWindow
	}
	if v.BanDuration > 0 {
		c.BanDuration = v.BanDuration
	}
	if v.BackendURL != "" {
		c.BackendURL = v.BackendURL
	}
}

// ToAdminView projects the admin-facing four fields out of the full config.
func (c *Config) ToAdminView() AdminView {
	return AdminView{
		MaxRequests: c.MaxRequests,
		TimeWindow:  c.TimeWindowSeconds,
		BanDuration: c.BanDuration,
		BackendURL:  c.BackendURL,
	}
}

// Clone returns a shallow copy, used to build a new snapshot before an
// atomic swap so readers never observe a torn write.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Save persists the admin-facing view of the config as JSON at path.
func Save(path string, cfg *Config) error {
	data, err := json.Marshal(cfg.ToAdminView())
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyAdminUpdate parses body as a JSON AdminView and returns a new
// Config snapshot with those four fields overlaid on base. It never
// mutates base.
func ApplyAdminUpdate(base *Config, body []byte) (*Config, error) {
	var view AdminView
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	next := base.Clone()
	next.applyAdminView(view)
	return next, nil
}
