package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSQLInjection(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"union select", "1 UNION SELECT username, password FROM users", true},
		{"tautology", "id=1 OR 1=1", true},
		{"url encoded tautology", "%27%20or%201%3d1--", true},
		{"time based sleep", "1; SELECT SLEEP(5)", true},
		{"pg_sleep", "1; select pg_sleep(5)", true},
		{"waitfor delay", "1; WAITFOR DELAY '0:0:5'", true},
		{"schema introspection", "SELECT * FROM information_schema.tables", true},
		{"benign", "hello world, how are you?", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, IsSQLInjection(c.in))
		})
	}
}

func TestIsXSS(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"script tag", "<script>alert(1)</script>", true},
		{"iframe", `<iframe src="evil"></iframe>`, true},
		{"img onerror", `<img src=x onerror=alert(1)>`, true},
		{"svg onload", `<svg onload=alert(1)>`, true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"document cookie", "x=document.cookie", true},
		{"benign", "just some plain text about scripts", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, IsXSS(c.in))
		})
	}
}

func TestIsPathTraversal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"dot dot slash", "/../../etc/passwd", true},
		{"encoded", "/%2e%2e/%2e%2e/secret", true},
		{"etc passwd literal", "/files/etc/passwd", true},
		{"windows system32", "/files/windows/system32/config", true},
		{"boot ini", "/boot.ini", true},
		{"benign", "/api/items/123", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, IsPathTraversal(c.in))
		})
	}
}

func TestIsSSRF(t *testing.T) {
	isPrivate := func(candidate string) bool {
		return candidate == "http://127.0.0.1:22/" || candidate == "127.0.0.1"
	}

	require.True(t, IsSSRF("url=http://127.0.0.1:22/", isPrivate))
	require.False(t, IsSSRF("url=http://example.com/", isPrivate))
}
