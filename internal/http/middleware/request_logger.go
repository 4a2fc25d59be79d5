package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/campusgate/recruitment-backend/internal/logger"
)

// RequestLoggerMiddleware пишет структурированный лог на каждый запрос.
// IP берётся из ClientIP, чтобы в логах был реальный источник, а не прокси.
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if logger.Log == nil {
			return
		}

		logger.Log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"ip":       ClientIP(c),
			"duration": time.Since(start).String(),
		}).Info("HTTP запрос")
	}
}
