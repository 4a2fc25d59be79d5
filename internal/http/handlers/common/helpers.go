package common

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusgate/recruitment-backend/internal/http/middleware"
	"github.com/campusgate/recruitment-backend/internal/pkg/apperror"
)

// ErrUserNotFound возвращается, когда в контексте Gin нет ID пользователя.
var ErrUserNotFound = errors.New("пользователь не найден в контексте")

// ErrorResponse - стандартный формат тела ошибки.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CurrentUserID достаёт ID пользователя, положенный в контекст AuthMiddleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}

	return userID, nil
}

// RespondError отправляет ошибку в стандартном формате.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{Error: message})
}

// RespondAppError переводит ошибку приложения в HTTP-ответ.
// Для ошибок лимитера и блокировок добавляет заголовок Retry-After.
func RespondAppError(c *gin.Context, err error) {
	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.RetryAfterSeconds > 0 {
			c.Header("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
		}
		RespondError(c, appErr.HTTPStatus, appErr.Message)
		return
	}
	RespondError(c, http.StatusInternalServerError, "внутренняя ошибка сервера")
}

// RespondUnauthorized отправляет 401 с пояснением.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondInternalError отправляет 500 с пояснением.
func RespondInternalError(c *gin.Context, message string) {
	if message == "" {
		message = "внутренняя ошибка сервера"
	}
	RespondError(c, http.StatusInternalServerError, message)
}
