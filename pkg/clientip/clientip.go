package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Headers set by common proxies, in the order a Resolver built with
// DefaultHeaders checks them.
const (
	HeaderCloudflare   = "CF-Connecting-IP"
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"
	HeaderDigitalOcean = "DO-Connecting-IP"
)

// DefaultHeaders is the header order used by GetIP.
var DefaultHeaders = []string{HeaderCloudflare, HeaderDigitalOcean, HeaderForwardedFor, HeaderRealIP}

// Resolver extracts the client address from the headers it trusts.
type Resolver struct {
	headers []string
}

// New returns a Resolver trusting headers in order. With no headers only the
// peer address is used, which is the safe choice when the service is exposed
// directly.
func New(headers ...string) *Resolver {
	trusted := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			trusted = append(trusted, http.CanonicalHeaderKey(h))
		}
	}
	return &Resolver{headers: trusted}
}

// IP returns the normalized client address, or "" when nothing parses.
func (res *Resolver) IP(r *http.Request) string {
	for _, h := range res.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		if h == HeaderForwardedFor {
			// Leftmost valid entry is the original client.
			for part := range strings.SplitSeq(v, ",") {
				if ip := parseIP(part); ip != "" {
					return ip
				}
			}
			continue
		}
		if ip := parseIP(v); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

var defaultResolver = New(DefaultHeaders...)

// GetIP resolves r with DefaultHeaders.
func GetIP(r *http.Request) string {
	return defaultResolver.IP(r)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
