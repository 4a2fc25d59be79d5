package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// Ключ контекста с вычисленным IP клиента.
const ContextClientIPKey = "clientIP"

// ClientIPMiddleware определяет IP источника запроса и кладёт его в контекст.
// Заголовкам X-Forwarded-For и X-Real-IP мы верим только когда сетевой пир -
// один из явно перечисленных доверенных прокси; иначе атакующий мог бы
// подменить ключ лимитера и обойти блокировку.
func ClientIPMiddleware(trustedProxies []string) gin.HandlerFunc {
	trusted := make(map[string]struct{}, len(trustedProxies))
	for _, p := range trustedProxies {
		trusted[p] = struct{}{}
	}

	return func(c *gin.Context) {
		c.Set(ContextClientIPKey, resolveClientIP(c, trusted))
		c.Next()
	}
}

// ClientIP возвращает IP источника, вычисленный ClientIPMiddleware.
func ClientIP(c *gin.Context) string {
	if ip, ok := c.Get(ContextClientIPKey); ok {
		if s, ok := ip.(string); ok && s != "" {
			return s
		}
	}
	return peerIP(c)
}

func resolveClientIP(c *gin.Context, trusted map[string]struct{}) string {
	peer := peerIP(c)
	if _, ok := trusted[peer]; !ok {
		return peer
	}

	// Пир доверенный: первый адрес в цепочке X-Forwarded-For и есть клиент.
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xr := c.GetHeader("X-Real-IP"); xr != "" {
		if net.ParseIP(xr) != nil {
			return xr
		}
	}
	return peer
}

// peerIP возвращает адрес непосредственного сетевого пира без порта.
func peerIP(c *gin.Context) string {
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
