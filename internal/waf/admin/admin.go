// Package admin implements the administrative surface: read/mutate
// runtime state for stats, logs, ban/unban, and config.
package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/config"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/eventlog"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/proxy"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/runtime"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/state"
)

// maxLogEntries bounds the /admin/logs response, per the spec's "last N
// (<=50)" rule.
const maxLogEntries = 50

// logView is the UI-facing shape /admin/logs maps security_event and
// ban_event records into. access_log records are omitted.
type logView struct {
	Timestamp string `json:"timestamp"`
	IP        string `json:"ip"`
	EventType string `json:"eventType"`
	Details   string `json:"details"`
}

type statsView struct {
	RateLimit struct {
		Max    int `json:"max"`
		Window int `json:"window"`
	} `json:"rate_limit"`
	BannedIPs      []string `json:"bannedIPs"`
	TotalBannedIPs int      `json:"totalBannedIPs"`
}

// Surface implements http.Handler for every path under /admin.
type Surface struct {
	Store      *state.Store
	Sink       *eventlog.Sink
	Cfg        *runtime.ConfigHolder
	ConfigPath string

	// OnConfigUpdated is invoked after a successful POST /admin/config
	// with the new snapshot, so the gate's rate limiter and the proxy's
	// backend target pick up the change immediately.
	OnConfigUpdated func(cfg *config.Config)
}

// New builds an admin Surface.
func New(store *state.Store, sink *eventlog.Sink, cfg *runtime.ConfigHolder, configPath string, onUpdate func(*config.Config)) *Surface {
	return &Surface{Store: store, Sink: sink, Cfg: cfg, ConfigPath: configPath, OnConfigUpdated: onUpdate}
}

func (s *Surface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/admin/stats":
		s.handleStats(w, r)
	case r.URL.Path == "/admin/logs":
		s.handleLogs(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/ban/"):
		s.handleBan(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/unban/"):
		s.handleUnban(w, r)
	case r.URL.Path == "/admin/config" && r.Method == http.MethodGet:
		s.handleConfigGet(w, r)
	case r.URL.Path == "/admin/config" && r.Method == http.MethodPost:
		s.handleConfigPost(w, r)
	default:
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found", "status": http.StatusNotFound})
	}
}

func (s *Surface) writeJSON(w http.ResponseWriter, status int, body any) {
	proxy.WriteHardeningAndCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Surface) handleStats(w http.ResponseWriter, r *http.Request) {
	cfg := s.Cfg.Load()
	banned := s.Store.BannedIPs()

	var view statsView
	view.RateLimit.Max = cfg.MaxRequests
	view.RateLimit.Window = cfg.TimeWindowSeconds
	view.BannedIPs = banned
	view.TotalBannedIPs = len(banned)

	s.writeJSON(w, http.StatusOK, view)
}

func (s *Surface) handleLogs(w http.ResponseWriter, r *http.Request) {
	records := eventlog.Tail(s.Cfg.Load().LogPath, maxLogEntries)

	views := make([]logView, 0, len(records))
	for _, rec := range records {
		switch rec.Type {
		case "security_event":
			views = append(views, logView{
				Timestamp: rec.Timestamp,
				IP:        rec.ClientIP,
				EventType: rec.EventType,
				Details:   rec.Details,
			})
		case "ban_event":
			views = append(views, logView{
				Timestamp: rec.Timestamp,
				IP:        rec.ClientIP,
				EventType: "IP_BANNED",
				Details:   rec.Reason,
			})
		}
	}

	s.writeJSON(w, http.StatusOK, views)
}

func trailingSegment(path string) string {
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	return parts[len(parts)-1]
}

func (s *Surface) handleBan(w http.ResponseWriter, r *http.Request) {
	ip := trailingSegment(r.URL.Path)
	if err := s.Store.Ban(ip); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "status": http.StatusInternalServerError})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "banned", "ip": ip})
}

func (s *Surface) handleUnban(w http.ResponseWriter, r *http.Request) {
	ip := trailingSegment(r.URL.Path)
	if err := s.Store.Unban(ip); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "status": http.StatusInternalServerError})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "unbanned", "ip": ip})
}

func (s *Surface) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	data, err := readConfigFile(s.ConfigPath)
	if err == nil {
		proxy.WriteHardeningAndCORS(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Cfg.Load().ToAdminView())
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Surface) handleConfigPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid config: " + err.Error(), "status": http.StatusBadRequest})
		return
	}

	next, err := config.ApplyAdminUpdate(s.Cfg.Load(), body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid config: " + err.Error(), "status": http.StatusBadRequest})
		return
	}

	if err := config.Save(s.ConfigPath, next); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "status": http.StatusInternalServerError})
		return
	}

	s.Cfg.Store(next)
	if s.OnConfigUpdated != nil {
		s.OnConfigUpdated(next)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"status": "success", "config": next.ToAdminView()})
}
