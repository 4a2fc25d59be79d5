package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/recruitment-backend/internal/logger"
	"github.com/campusgate/recruitment-backend/internal/pkg/apperror"
)

// ErrorHandler - центральная точка обработки ошибок и паник. Хэндлеры
// могут отвечать сами либо складывать ошибку через c.Error; всё, что
// дошло сюда без ответа, превращается в JSON с корректным статусом.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				if logger.Log != nil {
					logger.Log.WithField("panic", rec).Error("паника при обработке запроса")
				}
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "внутренняя ошибка сервера",
					})
				}
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.RetryAfterSeconds > 0 {
				c.Header("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
			}
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
			return
		}

		if logger.Log != nil {
			logger.Log.WithError(err).Error("необработанная ошибка запроса")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
	}
}
