package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// =============================================================================
// Client IP Resolution
// =============================================================================

type clientIPKey struct{}

// ClientIPMiddleware resolves the client address once per request. The
// forwarding headers are only believed when the direct peer is one of the
// trusted proxies; anyone else could put any address there.
type ClientIPMiddleware struct {
	trusted []netip.Prefix
}

// NewClientIPMiddleware creates the resolver. With no trusted proxies every
// request is keyed by its TCP peer.
func NewClientIPMiddleware(trusted []netip.Prefix) *ClientIPMiddleware {
	return &ClientIPMiddleware{trusted: trusted}
}

// Handler stores the resolved address for ClientIP.
func (m *ClientIPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey{}, m.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Resolve returns the client address for r. Behind trusted proxies the
// X-Forwarded-For chain is walked from the right and the first hop that is
// not itself a trusted proxy wins; X-Real-IP is the fallback.
func (m *ClientIPMiddleware) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !m.isTrusted(addr) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// A garbled hop ends the part of the chain we can vouch for.
				break
			}
			if !m.isTrusted(hop.Unmap()) {
				return hop.Unmap().String()
			}
		}
	}

	// nginx
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return peer
}

func (m *ClientIPMiddleware) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address resolved by ClientIPMiddleware. Outside that
// middleware it is the TCP peer; forwarding headers are never read here.
// The quota counter is keyed by this value.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
