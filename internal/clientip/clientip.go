// Package clientip determines the address of the client behind a request.
//
// Sources are consulted in a fixed order and the first non-empty one wins:
//
//  1. CF-Connecting-IP
//  2. the first entry of X-Forwarded-For, taken as-is
//  3. X-Real-IP
//  4. the peer address of the connection
//  5. an address attached to the request context with NewContext
//
// The headers are trusted unconditionally; deploy behind a proxy that
// overwrites them.
package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

const (
	HeaderConnectingIP = "CF-Connecting-IP"
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying a best-guess client address.
// It is the last source Resolve consults.
func NewContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// FromContext returns the address stored by NewContext, if any.
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// Resolve returns the client address of r, or "" if none of the sources
// has one. Loopback addresses are returned like any other.
func Resolve(r *http.Request) string {
	if ip := r.Header.Get(HeaderConnectingIP); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get(HeaderForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first != "" {
			return first
		}
	}

	if ip := r.Header.Get(HeaderRealIP); ip != "" {
		return ip
	}

	if ip := peerAddr(r.RemoteAddr); ip != "" {
		return ip
	}

	return FromContext(r.Context())
}

// IsLoopbackLiteral reports whether ip is one of the two loopback literals
// that callers treat as "undetermined".
func IsLoopbackLiteral(ip string) bool {
	return ip == "::1" || ip == "127.0.0.1"
}

// peerAddr strips the port from a connection address. Addresses without a
// port (unix sockets, some test transports) are returned unchanged.
func peerAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
