package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/config"
)

func TestBuildWiresGateAndRespondsToOptionsPreflight(t *testing.T) {
	cfg := config.Defaults()
	cfg.BannedIPsPath = filepath.Join(t.TempDir(), "banned.json")
	cfg.LogPath = filepath.Join(t.TempDir(), "access.log")

	w := Build(cfg, filepath.Join(t.TempDir(), "waf_config.json"))

	req := httptest.NewRequest(http.MethodOptions, "/anything", nil)
	rec := httptest.NewRecorder()
	w.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildRoutesAdminPaths(t *testing.T) {
	cfg := config.Defaults()
	cfg.BannedIPsPath = filepath.Join(t.TempDir(), "banned.json")
	cfg.LogPath = filepath.Join(t.TempDir(), "access.log")

	w := Build(cfg, filepath.Join(t.TempDir(), "waf_config.json"))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	w.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
