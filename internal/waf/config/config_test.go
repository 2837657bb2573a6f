package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	want := Defaults()
	require.Equal(t, want.MaxRequests, cfg.MaxRequests)
	require.Equal(t, want.BackendURL, cfg.BackendURL)
}

func TestLoadOverlaysAdminFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waf_config.json")
	body := `{"maxRequests":5,"timeWindow":10,"banDuration":60,"backendUrl":"http://upstream:8000"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.MaxRequests)
	require.Equal(t, 10, cfg.TimeWindowSeconds)
	require.Equal(t, 60, cfg.BanDuration)
	require.Equal(t, "http://upstream:8000", cfg.BackendURL)
}

func TestValidateRejectsInvalid(t *testing.T) {
	cfg := Defaults()
	cfg.MaxRequests = 0
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.TimeWindowSeconds = 0
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.MaxViolations = 0
	require.Error(t, cfg.Validate())
}

func TestApplyAdminUpdateDoesNotMutateBase(t *testing.T) {
	base := Defaults()
	body := []byte(`{"maxRequests":7}`)

	next, err := ApplyAdminUpdate(base, body)
	require.NoError(t, err)
	require.NotEqual(t, 7, base.MaxRequests)
	require.Equal(t, 7, next.MaxRequests)
}

func TestApplyAdminUpdateMalformedJSON(t *testing.T) {
	base := Defaults()
	_, err := ApplyAdminUpdate(base, []byte("not json"))
	require.Error(t, err)
}

func TestSaveAndSubsequentLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waf_config.json")
	cfg := Defaults()
	cfg.MaxRequests = 42
	cfg.BackendURL = "http://upstream:9999"

	require.NoError(t, Save(path, cfg))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, reloaded.MaxRequests)
	require.Equal(t, "http://upstream:9999", reloaded.BackendURL)
}
