package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/recruitment-backend/internal/http/handlers/common"
	"github.com/campusgate/recruitment-backend/internal/http/middleware"
	"github.com/campusgate/recruitment-backend/internal/service"
	"github.com/campusgate/recruitment-backend/internal/validation"
)

// PasswordHandler ведёт сценарий сброса пароля через код на email.
type PasswordHandler struct {
	auth  *service.AuthService
	flows *service.FlowService
}

// NewPasswordHandler создаёт хэндлер.
func NewPasswordHandler(auth *service.AuthService, flows *service.FlowService) *PasswordHandler {
	return &PasswordHandler{auth: auth, flows: flows}
}

// Forgot обрабатывает POST /auth/password/forgot.
// Ответ одинаков для существующих и несуществующих адресов.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID, err := ensureFlowSession(c)
	if err != nil {
		common.RespondInternalError(c, "")
		return
	}

	err = h.flows.Start(c.Request.Context(), sessionID, service.FlowPasswordReset, req.Email, middleware.ClientIP(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "если аккаунт существует, код отправлен на email"})
}

// Verify обрабатывает POST /auth/password/verify.
func (h *PasswordHandler) Verify(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateCode(req.Code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.flows.Submit(c.Request.Context(), currentFlowSession(c), service.FlowPasswordReset, req.Code, middleware.ClientIP(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	respondVerifyResult(c, result)
}

// Reset обрабатывает POST /auth/password/reset.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.auth.CompletePasswordReset(c.Request.Context(), currentFlowSession(c), req.Email, req.NewPassword)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "пароль обновлён"})
}
