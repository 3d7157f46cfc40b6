package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// Cabeçalhos de proxy consultados em ordem. X-Forwarded-For pode trazer uma
// lista; vale o primeiro IP válido.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

var privateNets = func() []*net.IPNet {
	var out []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "::1/128", "fc00::/7"} {
		_, n, _ := net.ParseCIDR(cidr)
		out = append(out, n)
	}
	return out
}()

func GetClientIP(c *gin.Context) string {
	for _, h := range proxyHeaders {
		for _, part := range strings.Split(c.GetHeader(h), ",") {
			if ip := normalizeIP(part); ip != "" {
				return ip
			}
		}
	}
	return c.ClientIP()
}

// normalizeIP remove a porta de "1.2.3.4:5678" e valida o resultado.
func normalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	if net.ParseIP(raw) == nil {
		return ""
	}
	return raw
}

func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range privateNets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
