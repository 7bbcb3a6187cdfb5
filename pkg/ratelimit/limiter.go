// Package ratelimit throttles unauthenticated endpoints per client. A single
// instance uses an in-process token bucket; replicas share a fixed window in
// Redis.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/satrioramadhan/scansek-api/pkg/httputil"
	"github.com/satrioramadhan/scansek-api/pkg/logger"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// KeyFunc derives the limiter key from a request.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit with 429. Limiter errors are
// logged and the request is let through.
func Middleware(lim Limiter, key KeyFunc, retryAfter time.Duration, l *slog.Logger) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	retry := strconv.Itoa(int(retryAfter.Round(time.Second).Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			ok, err := lim.Allow(r.Context(), k)
			if err != nil {
				l.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				l.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("key", k),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", retry)
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
					Message:   "too many requests, please slow down",
					Code:      "RATE_LIMITED",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys by the connection's remote address. Forwarding headers are
// ignored because any client can set them; see TrustedProxyKey.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TrustedProxyKey returns a KeyFunc that reads X-Forwarded-For and X-Real-IP
// only when the connection comes from one of cidrs. The key is the
// right-most forwarded address that is not itself a trusted proxy. With no
// cidrs it is ClientIP.
func TrustedProxyKey(cidrs []string) (KeyFunc, error) {
	if len(cidrs) == 0 {
		return ClientIP, nil
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy %q: %w", cidr, err)
		}
		nets = append(nets, ipNet)
	}
	trusted := func(ip net.IP) bool {
		for _, n := range nets {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		remote := ClientIP(r)
		if ip := net.ParseIP(remote); ip == nil || !trusted(ip) {
			return remote
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				ip := net.ParseIP(strings.TrimSpace(hops[i]))
				if ip == nil {
					break
				}
				if !trusted(ip) {
					return ip.String()
				}
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
		return remote
	}, nil
}
