package http

import (
	"net"
	"net/http"
	"strings"
)

// ClientContext carries the caller identity derived from a request.
// It feeds rate-limit keying, audit records, and login attempt rows.
type ClientContext struct {
	IPAddress string
	UserAgent string
}

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ExtractClientContext derives the caller's IP and user agent from the
// request. Forwarding headers are honored only when the request arrives
// from a trusted proxy, to prevent spoofing via header manipulation.
func ExtractClientContext(r *http.Request, config *IPConfig) ClientContext {
	return ClientContext{
		IPAddress: ExtractClientIP(r, config),
		UserAgent: r.UserAgent(),
	}
}

// ExtractClientIP returns the real client IP. X-Forwarded-For and
// X-Real-IP are consulted only for connections arriving from a trusted
// proxy; everything else answers with the socket peer address.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := peerAddress(r)

	if config == nil || !fromTrustedProxy(remoteIP, config.TrustedProxies) {
		return remoteIP
	}

	// X-Forwarded-For can hold a proxy chain; the first valid entry is
	// the original client.
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" && net.ParseIP(candidate) != nil {
			return candidate
		}
	}

	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

// peerAddress strips the port from RemoteAddr when one is present.
func peerAddress(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func fromTrustedProxy(ip string, trustedProxies []string) bool {
	peer := net.ParseIP(ip)
	if peer == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // skip invalid CIDR ranges
		}
		if ipNet.Contains(peer) {
			return true
		}
	}

	return false
}
