package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrInvalidProxy is returned when a TrustedProxies entry is neither a
// valid IP address nor a valid CIDR range.
var ErrInvalidProxy = errors.New("real ip: invalid proxy entry")

// DefaultTrustedProxies is the set of private and loopback ranges used when
// RealIPConfig.TrustedProxies is empty.
//
// Included ranges:
//   - 127.0.0.0/8    — IPv4 loopback (RFC 1122)
//   - 10.0.0.0/8     — Class A private (RFC 1918)
//   - 172.16.0.0/12  — Class B private (RFC 1918)
//   - 192.168.0.0/16 — Class C private (RFC 1918)
//   - 100.64.0.0/10  — CGNAT shared address space (RFC 6598)
//   - ::1/128        — IPv6 loopback (RFC 4291)
//   - fc00::/7       — IPv6 unique local (RFC 4193)
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"::1/128",
	"fc00::/7",
}

// RealIPConfig configures the Real IP middleware behaviour.
type RealIPConfig struct {
	// TrustedProxies is a list of IP addresses and CIDR ranges.
	// Forwarding headers are only honoured when the request peer is in
	// this set. When empty, DefaultTrustedProxies (private/loopback
	// ranges) is used.
	// Examples: "10.0.0.1", "192.168.0.0/16", "::1", "fd00::/8"
	TrustedProxies []string

	// EnableForwarded enables the RFC 7239 Forwarded header as a
	// fallback after the de-facto X-Forwarded-For and X-Real-IP headers.
	//
	// Spec reference: https://www.rfc-editor.org/rfc/rfc7239
	EnableForwarded bool
}

// RealIPMiddleware returns a middleware that rewrites r.RemoteAddr to the
// original client address carried in reverse proxy forwarding headers.
// Headers are only honoured when the immediate peer is a trusted proxy,
// preventing spoofing from untrusted clients.
//
// The first header yielding a valid IP wins: X-Forwarded-For (leftmost
// valid entry), then X-Real-IP, then — when EnableForwarded is set — the
// for= directive of the RFC 7239 Forwarded header.
//
// It returns an error wrapping ErrInvalidProxy if TrustedProxies contains
// an entry that is neither a valid IP nor a valid CIDR.
func RealIPMiddleware(cfg RealIPConfig) (httpd.MiddlewareFunc, error) {
	proxies := cfg.TrustedProxies
	if len(proxies) == 0 {
		proxies = DefaultTrustedProxies
	}

	trusted, err := parseTrusted(proxies)
	if err != nil {
		return nil, err
	}

	enableForwarded := cfg.EnableForwarded

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if trusted.contains(r.RemoteAddr) {
				if ip := clientIPFromHeaders(r, enableForwarded); ip != "" {
					r.RemoteAddr = ip
				}
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// clientIPFromHeaders extracts the first valid client IP from the
// forwarding headers in priority order. Returns an empty string when no
// header yields a valid IP.
func clientIPFromHeaders(r *http.Request, enableForwarded bool) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := leftmostIP(xff); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if net.ParseIP(realIP) != nil {
			return realIP
		}
	}

	if enableForwarded {
		return forwardedFor(r.Header.Get("Forwarded"))
	}

	return ""
}

// leftmostIP returns the leftmost valid IP from a comma-separated
// X-Forwarded-For value. Returns an empty string if no valid IP is found.
func leftmostIP(xff string) string {
	for part := range strings.SplitSeq(xff, ",") {
		if candidate := strings.TrimSpace(part); net.ParseIP(candidate) != nil {
			return candidate
		}
	}

	return ""
}

// forwardedFor extracts and validates the client IP from the for=
// directive of an RFC 7239 Forwarded header. Only the first
// comma-separated element, the proxy closest to the client, is consulted.
func forwardedFor(header string) string {
	if header == "" {
		return ""
	}

	// Elements are comma-separated; the first describes the client.
	if idx := strings.IndexByte(header, ','); idx != -1 {
		header = header[:idx]
	}

	for param := range strings.SplitSeq(header, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "for") {
			continue
		}

		return forwardedIP(strings.TrimSpace(val))
	}

	return ""
}

// forwardedIP strips the quoting, brackets, and optional port a Forwarded
// for= value may carry around an IP, e.g.:
//
//	for=192.0.2.60
//	for="[2001:db8::1]"
//	for="[2001:db8::1]:4711"
//
// Obfuscated identifiers like "_hidden" yield an empty string.
func forwardedIP(val string) string {
	val = strings.Trim(val, `"`)

	if host, _, err := net.SplitHostPort(val); err == nil {
		val = host
	} else {
		val = strings.TrimPrefix(val, "[")
		val = strings.TrimSuffix(val, "]")
	}

	if net.ParseIP(val) != nil {
		return val
	}

	return ""
}

// trustedSet holds pre-parsed IPs and CIDRs for fast per-request lookup.
type trustedSet struct {
	ips  []net.IP
	nets []*net.IPNet
}

// parseTrusted parses IP and CIDR entries into a trustedSet. An entry that
// parses as neither fails with an error wrapping ErrInvalidProxy.
func parseTrusted(entries []string) (*trustedSet, error) {
	ts := &trustedSet{}

	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
			}

			ts.nets = append(ts.nets, ipNet)
			continue
		}

		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}

		ts.ips = append(ts.ips, ip)
	}

	return ts, nil
}

// contains reports whether the peer address is in the set. The address may
// carry a port.
func (ts *trustedSet) contains(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RemoteAddr may be a bare IP without port.
		host = remoteAddr
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	for _, trusted := range ts.ips {
		if trusted.Equal(ip) {
			return true
		}
	}

	for _, ipNet := range ts.nets {
		if ipNet.Contains(ip) {
			return true
		}
	}

	return false
}
