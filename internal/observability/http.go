package observability

import (
	"net"
	"net/http"
	"strings"
)

// ClientIdentity is what a request tells us about its caller, used to tag
// websocket lifecycle events.
type ClientIdentity struct {
	DeviceID  string
	RequestID string
	IP        string
}

func IdentityFromRequest(r *http.Request) ClientIdentity {
	return ClientIdentity{
		DeviceID:  r.Header.Get("X-Device-Id"),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        IPFromRequest(r),
	}
}

// IPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the socket peer.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
