package web

import (
	"net"
	"net/http"
	"strings"
	"time"
)

const requestInfoKey ContextKey = "request_info"

// RequestInfo is attached once per request by the outermost middleware.
type RequestInfo struct {
	ClientIP  string
	StartedAt time.Time
}

func SetRequestInfo(r *http.Request, info RequestInfo) *http.Request {
	return AddValueToContext(r, requestInfoKey, info)
}

func GetRequestInfo(r *http.Request) (RequestInfo, bool) {
	return GetValueFromContext[RequestInfo](r, requestInfoKey)
}

// ClientIP resolves the caller address. The first X-Forwarded-For hop is only
// honoured when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
