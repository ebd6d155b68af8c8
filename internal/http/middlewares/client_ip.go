package middlewares

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const ctxClientIPKey ctxKey = "client_ip"

// TrustedProxies decide cuándo creerle a X-Forwarded-For. Vacío (o nil) significa
// que solo cuenta RemoteAddr.
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies acepta CIDRs ("10.0.0.0/8") o IPs sueltas ("192.0.2.10").
func ParseTrustedProxies(specs []string) (*TrustedProxies, error) {
	t := &TrustedProxies{}
	for _, raw := range specs {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q: invalid IP", s)
			}
			if ip.To4() != nil {
				s += "/32"
			} else {
				s += "/128"
			}
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		t.nets = append(t.nets, n)
	}
	return t, nil
}

func (t *TrustedProxies) trusts(ip net.IP) bool {
	if t == nil || ip == nil {
		return false
	}
	for _, n := range t.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolve devuelve la IP del cliente. X-Forwarded-For se recorre de derecha a
// izquierda solo mientras cada salto sea un proxy confiable; la primera IP no
// confiable es el cliente.
func (t *TrustedProxies) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !t.trusts(net.ParseIP(peer)) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		ip := net.ParseIP(hop)
		if ip == nil {
			break
		}
		client = hop
		if !t.trusts(ip) {
			break
		}
	}
	return client
}

// WithClientIP resuelve la IP una vez y la deja en el contexto para logging y rate limit.
func WithClientIP(t *TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxClientIPKey, t.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP lee la IP resuelta por WithClientIP; sin ese middleware usa RemoteAddr.
func clientIP(r *http.Request) string {
	if v, ok := r.Context().Value(ctxClientIPKey).(string); ok && v != "" {
		return v
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
