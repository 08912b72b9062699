package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── 订单完成 DTO ──

// OrderCompletedRequest 电商系统推送的订单完成事件
type OrderCompletedRequest struct {
	OrderID     string          `json:"order_id"     binding:"required,max=64"`
	CustomerID  string          `json:"customer_id"  binding:"required,max=64"`
	SessionID   string          `json:"session_id"   binding:"omitempty,max=128"`
	OrderTotal  decimal.Decimal `json:"order_total"`
	CompletedAt *time.Time      `json:"completed_at"`
}

// OrderCompletedResponse 订单处理结果
type OrderCompletedResponse struct {
	OrderID          string              `json:"order_id"`
	AlreadyProcessed bool                `json:"already_processed"`
	PointsEarned     int64               `json:"points_earned"`
	CoachID          string              `json:"coach_id,omitempty"`
	Commission       *CommissionResponse `json:"commission,omitempty"`
	ReferrerID       string              `json:"referrer_id,omitempty"`
	ReferrerBonus    int64               `json:"referrer_bonus"`
}

// [自证通过] internal/dto/order.go
