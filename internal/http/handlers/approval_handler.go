package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/recruitment-backend/internal/http/handlers/common"
	"github.com/campusgate/recruitment-backend/internal/service"
)

// ApprovalHandler обслуживает ссылки решения из письма администратору.
// Ссылки открываются из почтового клиента, поэтому методы — GET и
// авторизация держится на самом токене.
type ApprovalHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalHandler создаёт хэндлер.
func NewApprovalHandler(approvals *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// Approve обрабатывает GET /hr/approve/:token.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	result, err := h.approvals.Approve(c.Request.Context(), c.Param("token"), "admin")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	respondDecision(c, result, "аккаунт рекрутера одобрен")
}

// Reject обрабатывает GET /hr/reject/:token. Причина — query-параметр reason.
func (h *ApprovalHandler) Reject(c *gin.Context) {
	result, err := h.approvals.Reject(c.Request.Context(), c.Param("token"), "admin", c.Query("reason"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	respondDecision(c, result, "заявка рекрутера отклонена, аккаунт удалён")
}

func respondDecision(c *gin.Context, result service.DecisionResult, appliedMessage string) {
	switch result.Outcome {
	case service.DecisionApplied:
		c.JSON(http.StatusOK, gin.H{"message": appliedMessage, "status": result.Status})
	case service.DecisionAlreadyDecided:
		c.JSON(http.StatusConflict, gin.H{
			"error":  "решение по этой заявке уже принято",
			"status": result.Status,
		})
	default: // DecisionInvalidToken
		c.JSON(http.StatusNotFound, gin.H{"error": "ссылка недействительна"})
	}
}
