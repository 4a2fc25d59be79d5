package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/recruitment-backend/internal/http/handlers/common"
	"github.com/campusgate/recruitment-backend/internal/http/middleware"
	"github.com/campusgate/recruitment-backend/internal/service"
	"github.com/campusgate/recruitment-backend/internal/validation"
)

// AuthHandler предоставляет HTTP слой для регистрации студентов и входа.
type AuthHandler struct {
	auth  *service.AuthService
	flows *service.FlowService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth *service.AuthService, flows *service.FlowService) *AuthHandler {
	return &AuthHandler{auth: auth, flows: flows}
}

// StartRegistration обрабатывает POST /auth/register/start.
// Принимает email и отправляет на него код подтверждения.
func (h *AuthHandler) StartRegistration(c *gin.Context) {
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

	err = h.flows.Start(c.Request.Context(), sessionID, service.FlowRegistration, req.Email, middleware.ClientIP(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "код подтверждения отправлен на email"})
}

// VerifyRegistration обрабатывает POST /auth/register/verify.
func (h *AuthHandler) VerifyRegistration(c *gin.Context) {
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

	result, err := h.flows.Submit(c.Request.Context(), currentFlowSession(c), service.FlowRegistration, req.Code, middleware.ClientIP(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	respondVerifyResult(c, result)
}

// CompleteRegistration обрабатывает POST /auth/register/complete.
// Требует подтверждённую сессию с тем же email.
func (h *AuthHandler) CompleteRegistration(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name" binding:"required"`
		LastName  string `json:"last_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auth.CompleteRegistration(c.Request.Context(), currentFlowSession(c), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":   result.User,
		"tokens": result.TokenPair,
	})
}

// Login обрабатывает POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateEmail(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "пароль обязателен"})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   result.User,
		"tokens": result.TokenPair,
	})
}

// Me обрабатывает GET /auth/me (требует Bearer-токен).
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
