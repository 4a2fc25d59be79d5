package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/recruitment-backend/internal/session"
)

// flowSessionCookie — cookie, в которой живёт непрозрачный идентификатор
// сессии сценария подтверждения. Сам идентификатор ничего не кодирует:
// всё состояние лежит на сервере.
const flowSessionCookie = "verification_session"

// ensureFlowSession возвращает идентификатор сессии сценария, при
// необходимости создавая новый и выставляя cookie.
func ensureFlowSession(c *gin.Context) (string, error) {
	if id, err := c.Cookie(flowSessionCookie); err == nil && id != "" {
		return id, nil
	}

	id, err := session.NewToken()
	if err != nil {
		return "", err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flowSessionCookie, id, 0, "/", "", false, true)
	return id, nil
}

// currentFlowSession возвращает идентификатор уже существующей сессии.
// Пустая строка означает, что сценарий ещё не начинался.
func currentFlowSession(c *gin.Context) string {
	id, err := c.Cookie(flowSessionCookie)
	if err != nil {
		return ""
	}
	return id
}
