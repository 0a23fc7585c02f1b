// Package request carries per-request values between middleware and handlers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/benvon/restaurant-finder/internal/models"
)

type userKey struct{}

// ClientIP is the rate-limit and audit key for r. The first parseable address
// wins, in order: X-Forwarded-For (leftmost), X-Real-IP, then the host part of
// RemoteAddr. Unparseable header values are ignored so junk cannot mint fresh
// rate-limit buckets.
func ClientIP(r *http.Request) string {
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := parseIP(candidate); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parseIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}

// WithUser attaches the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// User returns the authenticated user from ctx.
func User(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}

// UserFromContext returns the authenticated user of r, or nil.
func UserFromContext(r *http.Request) *models.User {
	u, _ := User(r.Context())
	return u
}
