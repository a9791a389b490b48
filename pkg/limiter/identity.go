package limiter

import (
	"net"
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated user id set by the front end
// after it has verified the session with the identity provider.
const UserIDHeader = "X-User-Id"

// Identity is the key quota is tracked under: an authenticated user id
// when present, else the caller's network address. The key embeds the
// kind so the same caller with and without the header counts as two
// distinct identities.
type Identity struct {
	Key           string
	Authenticated bool
}

// ResolveIdentity derives the quota identity from a request. Proxy
// headers are only honored when trustProxy is set, because behind an
// untrusted edge they are caller-controlled.
func ResolveIdentity(r *http.Request, trustProxy bool) Identity {
	if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
		return Identity{Key: "user:" + userID, Authenticated: true}
	}
	return Identity{Key: "ip:" + clientIP(r, trustProxy)}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
			// First hop is the original client
			if idx := strings.Index(forwarded, ","); idx >= 0 {
				forwarded = forwarded[:idx]
			}
			return strings.TrimSpace(forwarded)
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
