package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
)

type orderTestEnv struct {
	orders      OrderService
	referral    ReferralService
	ledger      LedgerService
	eligibility EligibilityService
	repos       *testRepos
}

func setupTestOrderService() *orderTestEnv {
	repos := newTestRepos()
	cfg := testLoyaltyConfig()
	logger := zap.NewNop()

	ledger := NewLedgerService(repos.repo, logger)
	commission := NewCommissionService(cfg, repos.repo, logger)
	eligibility := NewEligibilityService(cfg, repos.repo, logger)

	now := time.Now()
	_ = repos.codes.Create(context.Background(), &model.ReferralCode{Code: "COACHSWIFT", OwnerID: "coach-swift", OwnerKind: model.AccountKindCoach, CreatedAt: now})
	_ = repos.codes.Create(context.Background(), &model.ReferralCode{Code: "FRIEND42", OwnerID: "cust-friend", OwnerKind: model.AccountKindCustomer, CreatedAt: now})

	return &orderTestEnv{
		orders:      NewOrderService(cfg, repos.repo, ledger, commission, eligibility, logger),
		referral:    NewReferralService(cfg, repos.repo, eligibility, logger),
		ledger:      ledger,
		eligibility: eligibility,
		repos:       repos,
	}
}

func TestOrderService_CoachOrder(t *testing.T) {
	env := setupTestOrderService()
	ctx := context.Background()

	if _, err := env.referral.ApplyCode(ctx, "sess-1", &dto.ApplyCodeRequest{Code: "COACHSWIFT", CustomerID: "cust-new"}); err != nil {
		t.Fatalf("ApplyCode 失败: %v", err)
	}

	req := &dto.OrderCompletedRequest{OrderID: "order-1", CustomerID: "cust-new", SessionID: "sess-1", OrderTotal: decimal.RequireFromString("120.75")}
	resp, err := env.orders.Complete(ctx, req)
	if err != nil {
		t.Fatalf("Complete 失败: %v", err)
	}
	if resp.PointsEarned != 120 || resp.AlreadyProcessed {
		t.Fatalf("积分应向下取整为 120: %+v", resp)
	}
	if resp.CoachID != "coach-swift" || resp.Commission == nil {
		t.Fatalf("应记录教练佣金: %+v", resp)
	}
	// 首位招募顾客 → Bronze 10%
	if resp.Commission.Tier != "Bronze" || !resp.Commission.Amount.Equal(decimal.RequireFromString("12.08")) {
		t.Fatalf("佣金不正确: %+v", resp.Commission)
	}

	if link, ok := env.repos.links.links["cust-new"]; !ok || link.CoachID != "coach-swift" || link.FirstOrderID != "order-1" {
		t.Fatalf("应建立招募关系: %+v", link)
	}
	if rec := env.repos.eligibility.records["coach-swift"]; rec == nil || rec.LastOrderID != "order-1" {
		t.Fatal("应更新教练最近订单")
	}
	if state, _ := env.repos.sessions.Load(ctx, "sess-1"); state.HasCode() {
		t.Fatal("订单完成后应清除会话推荐码")
	}

	// 重复推送同一订单
	again, err := env.orders.Complete(ctx, req)
	if err != nil {
		t.Fatalf("重复 Complete 失败: %v", err)
	}
	if !again.AlreadyProcessed {
		t.Fatal("重复订单应标记为已处理")
	}
	if bal, _ := env.ledger.BalanceOf(ctx, "cust-new"); bal != 120 {
		t.Fatalf("重复订单不应重复入账，余额=%d", bal)
	}
	if len(env.repos.commissions.records) != 1 {
		t.Fatal("重复订单不应重复记佣金")
	}
}

func TestOrderService_ReplayKeepsLastOrderDate(t *testing.T) {
	env := setupTestOrderService()
	ctx := context.Background()

	_, _ = env.referral.ApplyCode(ctx, "sess-1", &dto.ApplyCodeRequest{Code: "COACHSWIFT", CustomerID: "cust-new"})
	req := &dto.OrderCompletedRequest{OrderID: "order-1", CustomerID: "cust-new", SessionID: "sess-1", OrderTotal: decimal.NewFromInt(40)}
	if _, err := env.orders.Complete(ctx, req); err != nil {
		t.Fatalf("Complete 失败: %v", err)
	}
	first := *env.repos.eligibility.records["coach-swift"].LastOrderDate

	// 电商系统带着同一会话重推订单，未提供 completed_at
	time.Sleep(5 * time.Millisecond)
	_, _ = env.referral.ApplyCode(ctx, "sess-1", &dto.ApplyCodeRequest{Code: "COACHSWIFT", CustomerID: "cust-new"})
	again, err := env.orders.Complete(ctx, req)
	if err != nil {
		t.Fatalf("重复 Complete 失败: %v", err)
	}
	if !again.AlreadyProcessed {
		t.Fatal("重复订单应标记为已处理")
	}
	rec := env.repos.eligibility.records["coach-swift"]
	if !rec.LastOrderDate.Equal(first) || rec.LastOrderID != "order-1" {
		t.Fatalf("重放不应推进最近订单日期: first=%v got=%v", first, rec.LastOrderDate)
	}

	// 同一订单号重复记录不改变最近订单日期
	if err := env.eligibility.RecordOrder(ctx, "coach-swift", "order-1", time.Now()); err != nil {
		t.Fatalf("RecordOrder 失败: %v", err)
	}
	if got := env.repos.eligibility.records["coach-swift"].LastOrderDate; !got.Equal(first) {
		t.Fatalf("同一订单重复记录不应改变最近订单日期: first=%v got=%v", first, got)
	}
}

func TestOrderService_RetryAfterSessionCleared(t *testing.T) {
	env := setupTestOrderService()
	ctx := context.Background()

	_, _ = env.referral.ApplyCode(ctx, "sess-1", &dto.ApplyCodeRequest{Code: "COACHSWIFT", CustomerID: "cust-new"})
	req := &dto.OrderCompletedRequest{OrderID: "order-1", CustomerID: "cust-new", SessionID: "sess-1", OrderTotal: decimal.NewFromInt(50)}
	_, _ = env.orders.Complete(ctx, req)

	// 第二单不带推荐码，顾客仍归属原教练，但本单不计佣金
	second, err := env.orders.Complete(ctx, &dto.OrderCompletedRequest{OrderID: "order-2", CustomerID: "cust-new", OrderTotal: decimal.NewFromInt(30)})
	if err != nil {
		t.Fatalf("Complete 失败: %v", err)
	}
	if second.Commission != nil || second.PointsEarned != 30 {
		t.Fatalf("无推荐码订单只计积分: %+v", second)
	}
	if bal, _ := env.ledger.BalanceOf(ctx, "cust-new"); bal != 80 {
		t.Fatalf("余额应为 80，实际=%d", bal)
	}
}

func TestOrderService_CustomerOwnedByOtherCoach(t *testing.T) {
	env := setupTestOrderService()
	ctx := context.Background()

	_, _ = env.repos.links.CreateIfAbsent(ctx, &model.CoachCustomer{CustomerID: "cust-a", CoachID: "coach-other", FirstOrderID: "o-0"})
	_, _ = env.referral.ApplyCode(ctx, "sess-1", &dto.ApplyCodeRequest{Code: "COACHSWIFT", CustomerID: "cust-a", CompletedOrderCount: 1})

	resp, err := env.orders.Complete(ctx, &dto.OrderCompletedRequest{OrderID: "order-1", CustomerID: "cust-a", SessionID: "sess-1", OrderTotal: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("Complete 失败: %v", err)
	}
	if resp.Commission != nil || len(env.repos.commissions.records) != 0 {
		t.Fatal("已归属其他教练的顾客不应为新教练产生佣金")
	}
	if env.repos.links.links["cust-a"].CoachID != "coach-other" {
		t.Fatal("招募关系不应被覆盖")
	}
}

func TestOrderService_FriendReferralBonus(t *testing.T) {
	env := setupTestOrderService()
	ctx := context.Background()

	_, _ = env.referral.ApplyCode(ctx, "sess-1", &dto.ApplyCodeRequest{Code: "FRIEND42", CustomerID: "cust-new"})
	req := &dto.OrderCompletedRequest{OrderID: "order-1", CustomerID: "cust-new", SessionID: "sess-1", OrderTotal: decimal.NewFromInt(40)}
	resp, err := env.orders.Complete(ctx, req)
	if err != nil {
		t.Fatalf("Complete 失败: %v", err)
	}
	if resp.ReferrerID != "cust-friend" || resp.ReferrerBonus != 100 {
		t.Fatalf("推荐人应获得奖励: %+v", resp)
	}
	if bal, _ := env.ledger.BalanceOf(ctx, "cust-friend"); bal != 100 {
		t.Fatalf("推荐人余额应为 100，实际=%d", bal)
	}

	// 会话已清除后重试，奖励不重复
	_, _ = env.referral.ApplyCode(ctx, "sess-1", &dto.ApplyCodeRequest{Code: "FRIEND42", CustomerID: "cust-new"})
	_, _ = env.orders.Complete(ctx, req)
	if bal, _ := env.ledger.BalanceOf(ctx, "cust-friend"); bal != 100 {
		t.Fatalf("重复订单不应重复奖励，余额=%d", bal)
	}
}

func TestOrderService_NoBonusWithoutFirstOrderDiscount(t *testing.T) {
	env := setupTestOrderService()
	ctx := context.Background()

	_, _ = env.referral.ApplyCode(ctx, "sess-1", &dto.ApplyCodeRequest{Code: "FRIEND42", CustomerID: "cust-old", CompletedOrderCount: 2})
	resp, _ := env.orders.Complete(ctx, &dto.OrderCompletedRequest{OrderID: "order-1", CustomerID: "cust-old", SessionID: "sess-1", OrderTotal: decimal.NewFromInt(40)})
	if resp.ReferrerBonus != 0 {
		t.Fatalf("非首单不应奖励推荐人: %+v", resp)
	}
	if bal, _ := env.ledger.BalanceOf(ctx, "cust-friend"); bal != 0 {
		t.Fatalf("推荐人余额应为 0，实际=%d", bal)
	}
}

func TestOrderService_NegativeTotal(t *testing.T) {
	env := setupTestOrderService()
	_, err := env.orders.Complete(context.Background(), &dto.OrderCompletedRequest{OrderID: "o", CustomerID: "c", OrderTotal: decimal.NewFromInt(-1)})
	if err != ErrInvalidAmount {
		t.Fatalf("负数订单金额期望 ErrInvalidAmount，实际: %v", err)
	}
}
