package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// cidrSet is a parsed list of networks.
type cidrSet []*net.IPNet

// parseCIDRs parses cidrs, logging and skipping invalid entries. A bare
// address is treated as a single-host network.
func parseCIDRs(cidrs []string, logger *slog.Logger) cidrSet {
	var set cidrSet
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			if ip := net.ParseIP(raw); ip != nil {
				bits := 8 * net.IPv6len
				if ip.To4() != nil {
					ip, bits = ip.To4(), 8*net.IPv4len
				}
				set = append(set, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			logger.Warn("invalid CIDR, skipping",
				slog.String("cidr", raw),
				slog.String("error", err.Error()),
			)
			continue
		}
		set = append(set, ipNet)
	}
	return set
}

func (s cidrSet) contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range s {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// peerIP returns the host part of RemoteAddr and its parsed form, which is
// nil when the host is not an IP literal.
func peerIP(r *http.Request) (string, net.IP) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host, net.ParseIP(host)
}

// clientIP identifies the client of r. The forwarding headers are only
// honoured when the direct peer is a trusted proxy; otherwise the peer
// address is the client. X-Forwarded-For is walked right to left and the
// first hop outside the trusted set wins.
func clientIP(r *http.Request, trusted cidrSet) string {
	host, peer := peerIP(r)
	if !trusted.contains(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		var leftmost net.IP
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				continue
			}
			if !trusted.contains(ip) {
				return ip.String()
			}
			leftmost = ip
		}
		if leftmost != nil {
			return leftmost.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return host
}
