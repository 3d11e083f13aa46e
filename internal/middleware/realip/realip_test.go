package realip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var proxies = Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8", "192.0.2.1"}}

func serve(cfg Config, remoteAddr string, headers map[string]string) string {
	var got string
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct connection", Config{}, "192.168.1.100:12345", nil, "192.168.1.100"},
		{"proxy support disabled", Config{TrustedProxies: []string{"10.0.0.0/8"}}, "10.0.0.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.50"}, "10.0.0.1"},
		{"forwarded by trusted proxy", proxies, "10.0.0.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.50"}, "203.0.113.50"},
		{"trusted bare ip", proxies, "192.0.2.1:443", map[string]string{"X-Forwarded-For": "203.0.113.50"}, "203.0.113.50"},
		{"spoofed header from untrusted peer", proxies, "198.51.100.7:12345", map[string]string{"X-Forwarded-For": "203.0.113.50"}, "198.51.100.7"},
		{"spoofed real ip from untrusted peer", proxies, "198.51.100.7:12345", map[string]string{"X-Real-IP": "203.0.113.7"}, "198.51.100.7"},
		{"client-prepended hops are skipped", proxies, "10.0.0.1:12345", map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.50, 10.0.0.2"}, "203.0.113.50"},
		{"all hops trusted", proxies, "10.0.0.1:12345", map[string]string{"X-Forwarded-For": "10.0.0.3, 10.0.0.2"}, "10.0.0.3"},
		{"malformed hop", proxies, "10.0.0.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.50, not-an-ip"}, "10.0.0.1"},
		{"real ip from trusted proxy", proxies, "10.0.0.1:12345", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"invalid real ip", proxies, "10.0.0.1:12345", map[string]string{"X-Real-IP": "garbage"}, "10.0.0.1"},
		{"trusted without headers", proxies, "10.0.0.1:12345", nil, "10.0.0.1"},
		{"ipv6", Config{}, "[2001:db8::1]:443", nil, "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(tt.cfg, tt.remoteAddr, tt.headers))
		})
	}
}

func TestParseTrusted(t *testing.T) {
	prefixes, err := ParseTrusted([]string{"10.0.0.0/8", " 192.0.2.1 ", "", "2001:db8::/32", "::1"})
	require.NoError(t, err)
	require.Len(t, prefixes, 4)
	assert.Equal(t, "192.0.2.1/32", prefixes[1].String())
	assert.Equal(t, "::1/128", prefixes[3].String())

	_, err = ParseTrusted([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = ParseTrusted([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestGetClientIP_BareAddress(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", GetClientIP(req))
}
