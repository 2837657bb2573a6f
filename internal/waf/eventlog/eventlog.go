// Package eventlog implements the append-only JSON-lines event sink and
// its tail reader, used by the gate, proxy, and admin surface to record
// security events, ban events, and access records.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is the security event record schema from the data model: one
// JSON object per line, discriminated by Type.
type Record struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
	ClientIP  string `json:"client_ip"`
	Details   string `json:"details,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
	Status    int    `json:"status,omitempty"`
}

// Sink owns the log file handle exclusively; no other component may
// write to the log path.
type Sink struct {
	path string
	mu   sync.Mutex
}

// New returns a Sink that appends to path.
func New(path string) *Sink {
	return &Sink{path: path}
}

func (s *Sink) append(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eventlog: marshal failed: %v\n", err)
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eventlog: open %s failed: %v\n", s.path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "eventlog: write %s failed: %v\n", s.path, err)
	}
}

// SecurityEvent logs a security_event record: the detector kind
// (RATE_LIMIT, XSS, PATH_TRAVERSAL, SQL_INJECTION, SSRF, FORWARD_ERROR)
// and a details string.
func (s *Sink) SecurityEvent(eventType, ip, details string) {
	s.append(Record{
		Timestamp: now(),
		Type:      "security_event",
		EventType: eventType,
		ClientIP:  ip,
		Details:   details,
	})
}

// BanEvent logs a ban_event record with a human-readable reason.
func (s *Sink) BanEvent(ip, reason string) {
	s.append(Record{
		Timestamp: now(),
		Type:      "ban_event",
		ClientIP:  ip,
		Reason:    reason,
	})
}

// Access logs an access_log record for every request the gate disposes of.
func (s *Sink) Access(ip, method, path string, status int) {
	s.append(Record{
		Timestamp: now(),
		Type:      "access_log",
		ClientIP:  ip,
		Method:    method,
		Path:      path,
		Status:    status,
	})
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// Tail reads the last limit lines of the log file and parses each as a
// Record. A missing file or any parse failure on a line yields that
// line being skipped; a missing file yields an empty slice, never an
// error the caller must handle.
func Tail(path string, limit int) []Record {
	f, err := os.Open(path)
	if err != nil {
		return []Record{}
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > limit {
			lines = lines[1:]
		}
	}

	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}
