// Package ssrf implements the private-target resolver: given a
// URL-or-host candidate, it decides whether that target is private,
// loopback, link-local, or otherwise unsuitable to let the WAF's
// upstream process fetch on a client's behalf.
package ssrf

import (
	"context"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ResolveTimeout bounds the DNS lookup the resolver performs. The spec
// recommends <=2s and mandates fail-closed behavior on timeout.
const ResolveTimeout = 2 * time.Second

// privatePatterns covers loopback, link-local, RFC1918, ULA, and the
// wildcard-zero address, matched against both the resolved IP and the
// original hostname.
var privatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^127\.`),
	regexp.MustCompile(`(?i)^localhost$`),
	regexp.MustCompile(`^169\.254\.`),
	regexp.MustCompile(`^10\.`),
	regexp.MustCompile(`^192\.168\.`),
	regexp.MustCompile(`^172\.(1[6-9]|2[0-9]|3[0-1])\.`),
	regexp.MustCompile(`^0\.`),
	regexp.MustCompile(`^::1$`),
	regexp.MustCompile(`(?i)^fc00:`),
	regexp.MustCompile(`(?i)^fe80:`),
}

func matchesPrivate(s string) bool {
	for _, re := range privatePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Resolver resolves hostnames to decide whether a candidate target is
// private. Its Lookup func is overridable in tests so the detector
// suite doesn't depend on real DNS.
type Resolver struct {
	Lookup func(ctx context.Context, host string) ([]string, error)
}

// New returns a Resolver backed by the system resolver.
func New() *Resolver {
	r := &net.Resolver{}
	return &Resolver{
		Lookup: func(ctx context.Context, host string) ([]string, error) {
			return r.LookupHost(ctx, host)
		},
	}
}

// IsPrivateTarget implements the steps of the private-target resolver:
// normalize scheme, parse hostname, resolve, and test against the
// private-address patterns. Parse failure, empty hostname, and
// resolution failure or timeout are all treated as private (fail-closed).
func (r *Resolver) IsPrivateTarget(candidate string) bool {
	target := candidate
	if !strings.HasPrefix(strings.ToLower(target), "http://") && !strings.HasPrefix(strings.ToLower(target), "https://") {
		target = "http://" + target
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return true
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return true
	}

	if matchesPrivate(hostname) {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), ResolveTimeout)
	defer cancel()

	addrs, err := r.Lookup(ctx, hostname)
	if err != nil || len(addrs) == 0 {
		return true
	}

	for _, addr := range addrs {
		if matchesPrivate(addr) {
			return true
		}
	}
	return false
}
