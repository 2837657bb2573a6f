// Package gate implements the fixed-order request pipeline: admin
// short-circuit, ban check, rate limit, then the XSS, path-traversal,
// SQL-injection, and SSRF detectors in that order, before forwarding.
package gate

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/eventlog"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/proxy"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/runtime"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/signature"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/ssrf"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/state"
)

// MaxBodyBytes bounds the request body the gate will read into memory;
// requests with a larger Content-Length are rejected with 413.
const MaxBodyBytes = 10 << 20 // 10 MiB

// previewLen is the truncation length for the combined-payload preview
// recorded in security_event details.
const previewLen = 100

// Gate wires the state store, detectors, proxy, and event sink into the
// ordered pipeline described by the request lifecycle.
type Gate struct {
	Store    *state.Store
	Resolver *ssrf.Resolver
	Sink     *eventlog.Sink
	Proxy    *proxy.Proxy
	Admin    http.Handler

	cfg *runtime.ConfigHolder
}

// New builds a Gate over the shared config snapshot holder, so every
// request reads a consistent view of the current rate and violation
// thresholds even as admin POSTs swap them.
func New(store *state.Store, resolver *ssrf.Resolver, sink *eventlog.Sink, p *proxy.Proxy, admin http.Handler, cfg *runtime.ConfigHolder) *Gate {
	return &Gate{Store: store, Resolver: resolver, Sink: sink, Proxy: p, Admin: admin, cfg: cfg}
}

// ServeHTTP implements the six-step pipeline from the request gate
// design: admin short-circuit, ban check, rate limit, payload assembly,
// detector chain in XSS -> path traversal -> SQL injection -> SSRF
// order, then forward.
func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		proxy.WriteHardeningAndCORS(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/admin") {
		g.Admin.ServeHTTP(w, r)
		return
	}

	ip := clientIP(r)

	if g.Store.IsBanned(ip) {
		g.respondError(w, r, ip, http.StatusForbidden, "Your IP is banned")
		return
	}

	if g.Store.CheckAndRecordRequest(ip, time.Now()) {
		cfg := g.cfg.Load()
		g.Sink.SecurityEvent("RATE_LIMIT", ip, fmt.Sprintf("Exceeded %d requests in %ds", cfg.MaxRequests, cfg.TimeWindowSeconds))
		g.respondError(w, r, ip, http.StatusTooManyRequests, "Too many requests")
		return
	}

	body, ok := g.readBody(w, r)
	if !ok {
		return
	}

	requestTarget := r.URL.RequestURI()
	decodedPath, err := url.QueryUnescape(requestTarget)
	if err != nil {
		decodedPath = requestTarget
	}
	combined := decodedPath + " " + string(body)

	if signature.IsXSS(combined) {
		g.block(w, r, ip, "XSS", preview(combined), "XSS attack detected")
		return
	}
	if signature.IsPathTraversal(decodedPath) {
		g.block(w, r, ip, "PATH_TRAVERSAL", decodedPath, "Path traversal detected")
		return
	}
	if signature.IsSQLInjection(combined) {
		g.block(w, r, ip, "SQL_INJECTION", preview(combined), "SQL injection detected")
		return
	}
	if signature.IsSSRF(combined, g.Resolver.IsPrivateTarget) {
		g.block(w, r, ip, "SSRF", preview(combined), "SSRF attack detected")
		return
	}

	status, err := g.Proxy.Forward(w, r, body)
	if err != nil {
		g.Sink.SecurityEvent("FORWARD_ERROR", ip, err.Error())
	}
	g.Sink.Access(ip, r.Method, r.URL.RequestURI(), status)
}

// readBody enforces the Content-Length cap and rejects chunked
// transfer-encoded requests, per the body-size and chunked-transfer
// design notes.
func (g *Gate) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if len(r.TransferEncoding) > 0 {
		g.writeStatusOnly(w, http.StatusLengthRequired, "Chunked transfer encoding is not supported")
		return nil, false
	}
	if r.ContentLength > MaxBodyBytes {
		g.writeStatusOnly(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return nil, false
	}
	if r.ContentLength <= 0 {
		return nil, true
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		g.writeStatusOnly(w, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}
	if len(body) > MaxBodyBytes {
		g.writeStatusOnly(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return nil, false
	}
	return body, true
}

func (g *Gate) writeStatusOnly(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	proxy.WriteHardeningAndCORS(w)
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"status":%d}`, message, status)
}

// block logs the security event, records a violation (auto-banning if
// the threshold is reached), logs the access record, and responds 403.
func (g *Gate) block(w http.ResponseWriter, r *http.Request, ip, kind, details, message string) {
	g.Sink.SecurityEvent(kind, ip, details)

	if g.Store.RecordViolation(ip, time.Now()) {
		g.Sink.BanEvent(ip, fmt.Sprintf("Automatic ban after %d security violations", g.maxViolations()))
	}

	g.respondError(w, r, ip, http.StatusForbidden, message)
}

func (g *Gate) maxViolations() int {
	return g.cfg.Load().MaxViolations
}

func (g *Gate) respondError(w http.ResponseWriter, r *http.Request, ip string, status int, message string) {
	g.writeStatusOnly(w, status, message)
	g.Sink.Access(ip, r.Method, r.URL.RequestURI(), status)
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen]
}

// clientIP extracts the host portion of RemoteAddr, stripping any port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
