// Package state implements the per-IP state engine: a persisted banned
// set, sliding-window request counters, and sliding-window violation
// counters with auto-ban. Each category is guarded by its own lock so
// unrelated operations never contend.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Store owns the banned set, request log, and violation log. It is the
// sole owner of this state; callers hold only short-lived references.
type Store struct {
	bannedPath string

	bannedMu sync.Mutex
	banned   map[string]struct{}

	rateMu sync.Mutex
	rate   map[string][]time.Time

	violationMu sync.Mutex
	violation   map[string][]time.Time

	limitsMu        sync.Mutex
	maxRequests     int
	timeWindow      time.Duration
	maxViolations   int
	violationWindow time.Duration
}

// New creates a Store with the given rate-limit and violation-window
// parameters. bannedPath is where the banned set is persisted.
func New(bannedPath string, maxRequests int, timeWindow time.Duration, maxViolations int, violationWindow time.Duration) *Store {
	return &Store{
		bannedPath:      bannedPath,
		banned:          make(map[string]struct{}),
		rate:            make(map[string][]time.Time),
		violation:       make(map[string][]time.Time),
		maxRequests:     maxRequests,
		timeWindow:      timeWindow,
		maxViolations:   maxViolations,
		violationWindow: violationWindow,
	}
}

// UpdateLimits swaps in new rate/violation thresholds, e.g. after an
// admin config update. It does not touch existing logs.
func (s *Store) UpdateLimits(maxRequests int, timeWindow time.Duration, maxViolations int, violationWindow time.Duration) {
	s.limitsMu.Lock()
	s.maxRequests = maxRequests
	s.timeWindow = timeWindow
	s.maxViolations = maxViolations
	s.violationWindow = violationWindow
	s.limitsMu.Unlock()
}

func (s *Store) limits() (int, time.Duration, int, time.Duration) {
	s.limitsMu.Lock()
	defer s.limitsMu.Unlock()
	return s.maxRequests, s.timeWindow, s.maxViolations, s.violationWindow
}

// Load reads the banned set from disk. A missing or corrupt file is not
// an error: the set is simply initialized empty and startup continues.
func (s *Store) Load() {
	s.bannedMu.Lock()
	defer s.bannedMu.Unlock()

	data, err := os.ReadFile(s.bannedPath)
	if err != nil {
		s.banned = make(map[string]struct{})
		return
	}
	var ips []string
	if err := json.Unmarshal(data, &ips); err != nil {
		s.banned = make(map[string]struct{})
		return
	}
	banned := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		banned[ip] = struct{}{}
	}
	s.banned = banned
}

// Save flushes the banned set to disk as a JSON array. Failures are
// logged by the caller via the returned error; they never abort the
// request pipeline.
func (s *Store) Save() error {
	s.bannedMu.Lock()
	ips := make([]string, 0, len(s.banned))
	for ip := range s.banned {
		ips = append(ips, ip)
	}
	s.bannedMu.Unlock()

	data, err := json.Marshal(ips)
	if err != nil {
		return fmt.Errorf("state: marshal banned set: %w", err)
	}
	if err := os.WriteFile(s.bannedPath, data, 0o644); err != nil {
		return fmt.Errorf("state: write %s: %w", s.bannedPath, err)
	}
	return nil
}

// IsBanned reports whether ip is currently in the banned set.
func (s *Store) IsBanned(ip string) bool {
	s.bannedMu.Lock()
	defer s.bannedMu.Unlock()
	_, ok := s.banned[ip]
	return ok
}

// BannedIPs returns a snapshot of the banned set.
func (s *Store) BannedIPs() []string {
	s.bannedMu.Lock()
	defer s.bannedMu.Unlock()
	out := make([]string, 0, len(s.banned))
	for ip := range s.banned {
		out = append(out, ip)
	}
	return out
}

// Ban adds ip to the banned set and flushes to disk. Idempotent.
func (s *Store) Ban(ip string) error {
	s.bannedMu.Lock()
	s.banned[ip] = struct{}{}
	s.bannedMu.Unlock()
	return s.Save()
}

// Unban removes ip from the banned set and flushes to disk. A no-op,
// successfully, if ip was not banned.
func (s *Store) Unban(ip string) error {
	s.bannedMu.Lock()
	delete(s.banned, ip)
	s.bannedMu.Unlock()
	return s.Save()
}

// banLocked adds ip to the banned set under the caller's own lock
// discipline and flushes; used internally by RecordViolation so the
// auto-ban path doesn't need a second public call.
func (s *Store) banLocked(ip string) {
	s.bannedMu.Lock()
	s.banned[ip] = struct{}{}
	s.bannedMu.Unlock()
	_ = s.Save()
}

// CheckAndRecordRequest implements the sliding-window rate limiter:
// prune timestamps older than now-timeWindow, and if the remaining
// count is already >= maxRequests, reject without appending. Otherwise
// append now and allow. Returns true if the request exceeds the limit
// (i.e. should be rejected).
func (s *Store) CheckAndRecordRequest(ip string, now time.Time) bool {
	maxRequests, timeWindow, _, _ := s.limits()

	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	timestamps := pruneBefore(s.rate[ip], now.Add(-timeWindow))
	if len(timestamps) >= maxRequests {
		s.rate[ip] = timestamps
		return true
	}
	s.rate[ip] = append(timestamps, now)
	return false
}

// RecordViolation appends a violation timestamp for ip, pruning any
// older than violationWindow. If the retained count reaches
// maxViolations, ip is moved to the banned set and true is returned.
func (s *Store) RecordViolation(ip string, now time.Time) bool {
	_, _, maxViolations, violationWindow := s.limits()

	s.violationMu.Lock()
	timestamps := pruneBefore(s.violation[ip], now.Add(-violationWindow))
	timestamps = append(timestamps, now)
	s.violation[ip] = timestamps
	count := len(timestamps)
	s.violationMu.Unlock()

	if count >= maxViolations {
		s.banLocked(ip)
		return true
	}
	return false
}

func pruneBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	kept := timestamps[:0:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// Sweep opportunistically drops per-IP entries whose retained list has
// gone empty, bounding the memory a long-lived process accumulates from
// one-off clients. It is safe to call from a periodic goroutine; it
// takes each lock only briefly and never nests them.
func (s *Store) Sweep(now time.Time) {
	_, timeWindow, _, violationWindow := s.limits()

	s.rateMu.Lock()
	for ip, timestamps := range s.rate {
		kept := pruneBefore(timestamps, now.Add(-timeWindow))
		if len(kept) == 0 {
			delete(s.rate, ip)
		} else {
			s.rate[ip] = kept
		}
	}
	s.rateMu.Unlock()

	s.violationMu.Lock()
	for ip, timestamps := range s.violation {
		kept := pruneBefore(timestamps, now.Add(-violationWindow))
		if len(kept) == 0 {
			delete(s.violation, ip)
		} else {
			s.violation[ip] = kept
		}
	}
	s.violationMu.Unlock()
}

// RunSweeper starts a goroutine that calls Sweep on the given interval
// until done is closed.
func (s *Store) RunSweeper(done <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case t := <-ticker.C:
				s.Sweep(t)
			}
		}
	}()
}
