// Package signature implements pure, stateless classification of request
// data against known attack families: SQL injection, XSS, path traversal,
// and SSRF. Detectors are safe for concurrent use.
package signature

import (
	"regexp"

	libinjection "github.com/corazawaf/libinjection-go"
)

// sqlPatterns mirrors the original detector's tautology, DDL/DML, and
// time-based probe families, plus schema-introspection reads and the
// URL-encoded tautology variants the reference implementation also
// matches on.
var sqlPatterns = compileAll([]string{
	`(?i)\bunion\s+select\b`,
	`(?i)\bor\s+\d+\s*=\s*\d+`,
	`(?i)\band\s+\d+\s*=\s*\d+`,
	`(?i)\bdrop\s+table\b`,
	`(?i)\bdelete\s+from\b`,
	`(?i)\binsert\s+into\b`,
	`(?i)\bupdate\s+.*\bset\b`,
	`(?i)\bexec\s+xp_`,
	`(?im)\bwaitfor\s+delay\b`,
	`(?i)\bbenchmark\s*\(`,
	`(?i)\bsleep\s*\(`,
	`(?i)\bpg_sleep\s*\(`,
	`(?im)\bselect\s+.*\bfrom\s+information_schema`,
	`(?im)\bselect\s+.*\bfrom\s+sys\.`,
	`(?im)\bselect\s+.*\bfrom\s+mysql\.`,
	`(?im)\bselect\s+.*\bfrom\s+pg_`,
	`(?i)'\s*or\s+1\s*=\s*1\s*--`,
	`(?i)'\s*or\s+1\s*=\s*1\s*#`,
	`(?i)'\s*or\s+'[^']*'\s*=\s*'[^']*`,
	`(?i)'\s*and\s+1\s*=\s*2\s*--`,
	`(?i)'\s*union\s+select`,
	`(?i)%27\s*or\s+1%3d1`,
	`(?i)%27\s*union\s+select`,
	`(?i)\|\|\s*'[^']*'\s*=\s*'[^']*'`,
})

// xssPatterns covers script/iframe/object/embed/applet tags, the
// javascript:/vbscript: pseudo-schemes, inline event handlers, and the
// common sink/dialog calls.
var xssPatterns = compileAll([]string{
	`(?is)<script[^>]*>.*?</script[^>]*>`,
	`(?i)<script[^>]*>`,
	`(?i)javascript\s*:`,
	`(?i)vbscript\s*:`,
	`(?i)on\w+\s*=\s*["'][^"']*["']`,
	`(?i)on\w+\s*=\s*[^>\s]+`,
	`(?i)<iframe[^>]*>`,
	`(?i)<object[^>]*>`,
	`(?i)<embed[^>]*>`,
	`(?i)<applet[^>]*>`,
	`(?i)<img[^>]*onerror[^>]*>`,
	`(?i)<svg[^>]*onload[^>]*>`,
	`(?i)expression\s*\(`,
	`(?i)alert\s*\(`,
	`(?i)confirm\s*\(`,
	`(?i)prompt\s*\(`,
	`(?i)document\.cookie`,
	`(?i)document\.write`,
	`(?i)eval\s*\(`,
})

// pathTraversalPatterns matches ".." segment escapes, the URL-encoded
// form, and the handful of literal sensitive system paths called out in
// the spec.
var pathTraversalPatterns = compileAll([]string{
	`(?i)\.\.[\\/]`,
	`(?i)%2e%2e`,
	`(?i)etc[\\/]passwd`,
	`(?i)windows[\\/]system32`,
	`(?i)boot\.ini`,
	`(?i)win\.ini`,
})

// ssrfURLPatterns extract URL-like substrings from request data: bare
// http(s) URLs, and values assigned to url=/target=/host=/server=.
var ssrfURLPatterns = compileAll([]string{
	`(?i)https?://[^\s"'<>]+`,
	`(?i)url\s*=\s*["']?([^"'\s<>]+)["']?`,
	`(?i)target\s*=\s*["']?([^"'\s<>]+)["']?`,
	`(?i)host\s*=\s*["']?([^"'\s<>]+)["']?`,
	`(?i)server\s*=\s*["']?([^"'\s<>]+)["']?`,
})

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// IsSQLInjection reports whether s matches the SQL injection pattern
// table, case-insensitively with multiline semantics, or is flagged by
// libinjection's tokenizer-based fingerprint. Either signal is sufficient.
func IsSQLInjection(s string) bool {
	if anyMatch(sqlPatterns, s) {
		return true
	}
	if sqli, _ := libinjection.IsSQLi(s); sqli {
		return true
	}
	return false
}

// IsXSS reports whether s contains a recognized cross-site-scripting
// pattern: tag-based vectors, pseudo-schemes, inline handlers, or sink
// calls.
func IsXSS(s string) bool {
	return anyMatch(xssPatterns, s)
}

// IsPathTraversal reports whether path contains a directory-traversal
// escape or references a well-known sensitive system file.
func IsPathTraversal(path string) bool {
	return anyMatch(pathTraversalPatterns, path)
}

// PrivateTargetChecker decides whether a URL-or-host candidate points at
// a private, loopback, or otherwise non-routable target. It is supplied
// by the ssrf package so this package stays free of DNS I/O.
type PrivateTargetChecker func(candidate string) bool

// IsSSRF extracts URL-like substrings from s and asks isPrivate about
// each one, returning true on the first positive.
func IsSSRF(s string, isPrivate PrivateTargetChecker) bool {
	for _, re := range ssrfURLPatterns {
		for _, match := range re.FindAllStringSubmatch(s, -1) {
			candidate := match[0]
			if len(match) > 1 && match[1] != "" {
				candidate = match[1]
			}
			if candidate == "" {
				continue
			}
			if isPrivate(candidate) {
				return true
			}
		}
	}
	return false
}
