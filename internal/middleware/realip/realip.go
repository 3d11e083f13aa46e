// Package realip resolves the client address used for rate limiting and logs.
package realip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type contextKey struct{}

// Config controls which peers may set forwarding headers
type Config struct {
	// TrustProxy enables X-Forwarded-For / X-Real-IP handling
	TrustProxy bool
	// TrustedProxies lists CIDR ranges or bare IPs of the proxies in front of the server
	TrustedProxies []string
}

// ParseTrusted parses CIDR ranges and bare addresses into prefixes
func ParseTrusted(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Middleware stores the client IP in the request context.
// Forwarding headers are honored only when the direct peer is a trusted
// proxy; otherwise any client could pick its own rate limit bucket.
// Entries that fail to parse are skipped; config validation rejects them first.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	var trusted []netip.Prefix
	if cfg.TrustProxy {
		for _, entry := range cfg.TrustedProxies {
			if p, err := ParseTrusted([]string{entry}); err == nil {
				trusted = append(trusted, p...)
			}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, ip)))
		})
	}
}

func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := hostOnly(r.RemoteAddr)
	if !isTrusted(peer, trusted) {
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); validIP(xri) {
			return xri
		}
		return peer
	}

	// The rightmost hop not added by one of our proxies is the client
	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if !validIP(hop) {
			// Anything left of a malformed hop is client-controlled
			return peer
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
	}
	return strings.TrimSpace(hops[0])
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func validIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// GetClientIP returns the client IP without its port. It falls back to
// RemoteAddr when the middleware has not run.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(contextKey{}).(string); ok && ip != "" {
		return ip
	}
	return hostOnly(r.RemoteAddr)
}
