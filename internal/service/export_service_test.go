package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"coach-loyalty/backend/internal/model"
)

func TestExportService_NoCoaches(t *testing.T) {
	repos := newTestRepos()
	svc := NewExportService(repos.repo, zap.NewNop())

	if _, _, err := svc.ExportCoaches(context.Background()); !errors.Is(err, ErrExportNoCoaches) {
		t.Fatalf("期望 ErrExportNoCoaches，实际: %v", err)
	}
}

func TestExportService_ExportCoaches(t *testing.T) {
	repos := newTestRepos()
	svc := NewExportService(repos.repo, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	_ = repos.codes.Create(ctx, &model.ReferralCode{Code: "COACHSWIFT", OwnerID: "coach-swift", OwnerKind: model.AccountKindCoach, CreatedAt: now})
	_ = repos.codes.Create(ctx, &model.ReferralCode{Code: "IDLECOACH", OwnerID: "coach-idle", OwnerKind: model.AccountKindCoach, CreatedAt: now})
	_ = repos.codes.Create(ctx, &model.ReferralCode{Code: "FRIEND42", OwnerID: "cust-1", OwnerKind: model.AccountKindCustomer, CreatedAt: now})

	_, _ = repos.links.CreateIfAbsent(ctx, &model.CoachCustomer{CustomerID: "cust-2", CoachID: "coach-swift", FirstOrderID: "o-1"})
	_, _ = repos.commissions.CreateIfAbsent(ctx, &model.CommissionRecord{
		OrderID: "o-1", CoachID: "coach-swift", CustomerID: "cust-2",
		OrderAmount: decimal.NewFromInt(80), Rate: decimal.RequireFromString("0.10"), Tier: "Bronze", Amount: decimal.NewFromInt(8),
	})
	// 落库时仍为 recent_activity，导出时按当前时间重新判定
	lastOrder := now.AddDate(0, -10, 0)
	_ = repos.eligibility.Save(ctx, &model.EligibilityRecord{
		CoachID: "coach-idle", Eligible: true, Reason: model.ReasonRecentActivity, LookbackMonths: 6, LastOrderDate: &lastOrder,
	})

	buf, filename, err := svc.ExportCoaches(ctx)
	if err != nil {
		t.Fatalf("ExportCoaches 失败: %v", err)
	}
	if !strings.HasPrefix(filename, "coaches_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Fatalf("文件名不正确: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("无法读取导出的 Excel: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Coaches")
	if err != nil {
		t.Fatalf("读取 Sheet 失败: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("期望表头 + 2 位教练，实际 %d 行", len(rows))
	}
	if rows[0][0] != "Coach ID" {
		t.Fatalf("表头不正确: %v", rows[0])
	}

	byCoach := map[string][]string{}
	for _, r := range rows[1:] {
		byCoach[r[0]] = r
	}
	swift := byCoach["coach-swift"]
	if swift[1] != "COACHSWIFT" || swift[2] != "1" || swift[3] != "Bronze" || swift[4] != "10%" || swift[6] != "8.00" {
		t.Fatalf("coach-swift 行不正确: %v", swift)
	}
	if swift[7] != "Coach commission active" {
		t.Fatalf("有招募关系的教练应显示 Coach commission active: %v", swift)
	}
	idle := byCoach["coach-idle"]
	if idle[3] != TierNone || idle[7] != "Ineligible" {
		t.Fatalf("coach-idle 行不正确: %v", idle)
	}
}
