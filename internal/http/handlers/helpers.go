package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/recruitment-backend/internal/service"
)

// respondVerifyResult переводит результат проверки кода в HTTP-ответ.
// Успех — 200; остальные исходы различаются статусом и подсказкой клиенту.
func respondVerifyResult(c *gin.Context, res service.VerifyResult) {
	switch res.Outcome {
	case service.VerifySuccess:
		c.JSON(http.StatusOK, gin.H{"verified": true})
	case service.VerifyMismatch:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":              "неверный код подтверждения",
			"remaining_attempts": res.RemainingAttempts,
		})
	case service.VerifyLockedOut:
		c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "слишком много неверных попыток, попробуйте позже",
		})
	case service.VerifyExpired:
		c.JSON(http.StatusGone, gin.H{"error": "код истёк, запросите новый"})
	default: // VerifyNotFound
		c.JSON(http.StatusBadRequest, gin.H{"error": "код не запрашивался или уже использован"})
	}
}
