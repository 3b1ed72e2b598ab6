package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"
)

type KeyFunc func(r *http.Request) string

// ClientIP extrai a identidade do cliente, nesta ordem:
//
//  1. primeiro item do X-Forwarded-For (cliente original), sem espaços
//  2. X-Real-IP
//  3. host do RemoteAddr (ou RemoteAddr cru, se não tiver porta)
//
// Só use atrás de um proxy confiável: os headers são controlados pelo cliente.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get(HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get(HeaderRealIP)); ip != "" {
		return ip
	}
	return PeerAddr(r)
}

// PeerAddr devolve o endereço de transporte do cliente (sem porta).
func PeerAddr(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}

// DefaultKeyFunc usa keyHeader (se configurado e presente) e depois o IP do
// cliente. Com trustProxyHeaders=false os headers de proxy são ignorados e
// vale só o endereço de transporte.
func DefaultKeyFunc(keyHeader string, trustProxyHeaders bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		if trustProxyHeaders {
			return ClientIP(r)
		}
		return PeerAddr(r)
	}
}
