// Package proxy forwards permitted requests to the upstream origin and
// relays the response, applying the hardening and CORS header policy.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Timeout is the hard deadline for the upstream round trip.
const Timeout = 10 * time.Second

// HardeningHeaders are appended unconditionally to every response
// relayed to the client.
var HardeningHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Referrer-Policy":           "no-referrer",
	"Permissions-Policy":        "geolocation=(), microphone=()",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
}

// CORSHeaders are appended to every WAF response, admin or proxy.
var CORSHeaders = map[string]string{
	"Access-Control-Allow-Origin":      "http://localhost:5173",
	"Access-Control-Allow-Methods":     "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	"Access-Control-Allow-Headers":     "Content-Type, Authorization, X-Requested-With",
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Max-Age":           "86400",
}

// WriteHardeningAndCORS sets the fixed hardening and CORS header sets on w.
func WriteHardeningAndCORS(w http.ResponseWriter) {
	for k, v := range HardeningHeaders {
		w.Header().Set(k, v)
	}
	for k, v := range CORSHeaders {
		w.Header().Set(k, v)
	}
}

func hopByHop(name string) bool {
	lower := strings.ToLower(name)
	return lower == "connection"
}

func upstreamHopByHop(name string) bool {
	lower := strings.ToLower(name)
	return lower == "transfer-encoding" || lower == "connection"
}

// Proxy forwards requests to backendURL + path with a hard 10s timeout.
type Proxy struct {
	BackendURL string
	Client     *http.Client
}

// New returns a Proxy targeting backendURL.
func New(backendURL string) *Proxy {
	return &Proxy{
		BackendURL: backendURL,
		Client:     &http.Client{Timeout: Timeout},
	}
}

// Forward builds an upstream request from r and body, issues it, and
// writes the relayed response (or a 502 on any forwarding error) to w.
// It returns the status code that was sent to the client and, on
// forwarding failure, the error that caused the 502.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, body []byte) (int, error) {
	target := strings.TrimRight(p.BackendURL, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	ctx, cancel := context.WithTimeout(r.Context(), Timeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, target, newBodyReader(body))
	if err != nil {
		return writeForwardError(w, fmt.Errorf("build upstream request: %w", err))
	}

	for name, values := range r.Header {
		if hopByHop(name) {
			continue
		}
		for _, v := range values {
			upstreamReq.Header.Add(name, v)
		}
	}

	resp, err := p.Client.Do(upstreamReq)
	if err != nil {
		return writeForwardError(w, fmt.Errorf("forward request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return writeForwardError(w, fmt.Errorf("read upstream response: %w", err))
	}

	for name, values := range resp.Header {
		if upstreamHopByHop(name) {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	WriteHardeningAndCORS(w)
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)

	return resp.StatusCode, nil
}

func writeForwardError(w http.ResponseWriter, err error) (int, error) {
	w.Header().Set("Content-Type", "application/json")
	WriteHardeningAndCORS(w)
	w.WriteHeader(http.StatusBadGateway)
	fmt.Fprintf(w, `{"error":"Error forwarding request","status":502}`)
	return http.StatusBadGateway, err
}

func newBodyReader(body []byte) io.Reader {
	return strings.NewReader(string(body))
}
