package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxRequests, maxViolations int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "banned_ips.json")
	return New(path, maxRequests, time.Minute, maxViolations, 5*time.Minute)
}

func TestBanUnbanRoundTrip(t *testing.T) {
	s := newTestStore(t, 100, 3)

	require.False(t, s.IsBanned("1.2.3.4"))
	require.NoError(t, s.Ban("1.2.3.4"))
	require.True(t, s.IsBanned("1.2.3.4"))
	require.NoError(t, s.Unban("1.2.3.4"))
	require.False(t, s.IsBanned("1.2.3.4"))

	// Unban on an IP never banned is a no-op.
	require.NoError(t, s.Unban("5.6.7.8"))
}

func TestBanPersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banned_ips.json")
	s := New(path, 100, time.Minute, 3, 5*time.Minute)

	require.NoError(t, s.Ban("9.9.9.9"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var ips []string
	require.NoError(t, json.Unmarshal(data, &ips))
	require.Equal(t, []string{"9.9.9.9"}, ips)
}

func TestLoadMissingFileYieldsEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := New(path, 100, time.Minute, 3, 5*time.Minute)
	s.Load()
	require.Empty(t, s.BannedIPs())
}

func TestLoadCorruptFileYieldsEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	s := New(path, 100, time.Minute, 3, 5*time.Minute)
	s.Load()
	require.Empty(t, s.BannedIPs())
}

func TestLoadThenSaveThenLoadIsIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banned_ips.json")
	s := New(path, 100, time.Minute, 3, 5*time.Minute)
	s.Ban("1.1.1.1")
	s.Ban("2.2.2.2")

	s2 := New(path, 100, time.Minute, 3, 5*time.Minute)
	s2.Load()

	require.ElementsMatch(t, []string{"1.1.1.1", "2.2.2.2"}, s2.BannedIPs())
}

func TestCheckAndRecordRequest_BoundaryAtMaxRequests(t *testing.T) {
	s := newTestStore(t, 3, 3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.Falsef(t, s.CheckAndRecordRequest("1.2.3.4", now), "request %d should be allowed", i+1)
	}
	require.True(t, s.CheckAndRecordRequest("1.2.3.4", now), "the 4th request (max_requests+1) should be rejected")
}

func TestCheckAndRecordRequest_WindowSlides(t *testing.T) {
	s := newTestStore(t, 1, 3)
	now := time.Now()

	require.False(t, s.CheckAndRecordRequest("1.2.3.4", now), "first request should be allowed")
	require.True(t, s.CheckAndRecordRequest("1.2.3.4", now.Add(time.Second)), "second request within window should be rejected")
	require.False(t, s.CheckAndRecordRequest("1.2.3.4", now.Add(2*time.Minute)), "request after window has slid should be allowed")
}

func TestRecordViolation_BoundaryAutoBan(t *testing.T) {
	s := newTestStore(t, 100, 3)
	now := time.Now()

	require.False(t, s.RecordViolation("1.2.3.4", now), "violation #1 should not ban")
	require.False(t, s.RecordViolation("1.2.3.4", now.Add(time.Second)), "violation #2 should not ban")
	require.True(t, s.RecordViolation("1.2.3.4", now.Add(2*time.Second)), "violation #3 (max_violations) should ban")
	require.True(t, s.IsBanned("1.2.3.4"))
}

func TestSweepDropsEmptyEntries(t *testing.T) {
	s := newTestStore(t, 100, 3)
	past := time.Now().Add(-time.Hour)

	s.CheckAndRecordRequest("1.2.3.4", past)
	s.RecordViolation("1.2.3.4", past)

	s.Sweep(time.Now())

	s.rateMu.Lock()
	_, rateExists := s.rate["1.2.3.4"]
	s.rateMu.Unlock()
	require.False(t, rateExists, "expected expired rate-log entry to be swept")

	s.violationMu.Lock()
	_, violationExists := s.violation["1.2.3.4"]
	s.violationMu.Unlock()
	require.False(t, violationExists, "expected expired violation-log entry to be swept")
}
