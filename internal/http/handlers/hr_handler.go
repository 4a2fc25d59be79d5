package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/recruitment-backend/internal/http/handlers/common"
	"github.com/campusgate/recruitment-backend/internal/http/middleware"
	"github.com/campusgate/recruitment-backend/internal/service"
	"github.com/campusgate/recruitment-backend/internal/validation"
)

// HRHandler ведёт регистрацию рекрутеров: подтверждение email и создание
// заявки, ожидающей одобрения администратора.
type HRHandler struct {
	auth  *service.AuthService
	flows *service.FlowService
}

// NewHRHandler создаёт хэндлер.
func NewHRHandler(auth *service.AuthService, flows *service.FlowService) *HRHandler {
	return &HRHandler{auth: auth, flows: flows}
}

// StartRegistration обрабатывает POST /hr/register/start.
func (h *HRHandler) StartRegistration(c *gin.Context) {
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

	err = h.flows.Start(c.Request.Context(), sessionID, service.FlowHRRegistration, req.Email, middleware.ClientIP(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "код подтверждения отправлен на email"})
}

// VerifyRegistration обрабатывает POST /hr/register/verify.
func (h *HRHandler) VerifyRegistration(c *gin.Context) {
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

	result, err := h.flows.Submit(c.Request.Context(), currentFlowSession(c), service.FlowHRRegistration, req.Code, middleware.ClientIP(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	respondVerifyResult(c, result)
}

// CompleteRegistration обрабатывает POST /hr/register/complete.
// Аккаунт создаётся в статусе pending; токены не выдаются до одобрения.
func (h *HRHandler) CompleteRegistration(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Password    string `json:"password" binding:"required"`
		FirstName   string `json:"first_name" binding:"required"`
		LastName    string `json:"last_name" binding:"required"`
		CompanyName string `json:"company_name" binding:"required"`
		Designation string `json:"designation"`
		Department  string `json:"department"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.CompleteHRRegistration(c.Request.Context(), currentFlowSession(c), service.HRRegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		Designation: req.Designation,
		Department:  req.Department,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":    user,
		"message": "заявка отправлена, аккаунт будет активирован после одобрения администратора",
	})
}

// Me обрабатывает GET /hr/me (требует Bearer-токен и роль hr).
// Возвращает аккаунт рекрутера вместе со статусом одобрения.
func (h *HRHandler) Me(c *gin.Context) {
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

	status, err := h.auth.HRApprovalStatus(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":            user,
		"approval_status": status,
	})
}
