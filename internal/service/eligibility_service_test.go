package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
)

func setupTestEligibilityService() (EligibilityService, *testRepos) {
	repos := newTestRepos()
	svc := NewEligibilityService(testLoyaltyConfig(), repos.repo, zap.NewNop())
	return svc, repos
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		from, to time.Time
		want     int
	}{
		{date(2026, 1, 15), date(2026, 1, 20), 0},
		{date(2026, 1, 15), date(2026, 2, 14), 0},
		{date(2026, 1, 15), date(2026, 2, 15), 1},
		{date(2025, 11, 30), date(2026, 5, 30), 6},
		{date(2025, 11, 30), date(2026, 6, 1), 6},
		{date(2025, 11, 30), date(2026, 5, 29), 5},
		{date(2026, 3, 1), date(2026, 1, 1), 0},
	}
	for _, tt := range tests {
		if got := monthsBetween(tt.from, tt.to); got != tt.want {
			t.Fatalf("monthsBetween(%s, %s)=%d，期望 %d", tt.from.Format("2006-01-02"), tt.to.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestAutomaticStatus(t *testing.T) {
	now := date(2026, 10, 17)

	eligible, reason, months := AutomaticStatus(nil, 6, now)
	if !eligible || reason != model.ReasonNoHistory || months != nil {
		t.Fatalf("无订单记录应为 eligible/no_history，实际 %v/%s", eligible, reason)
	}

	recent := date(2026, 5, 1)
	eligible, reason, months = AutomaticStatus(&recent, 6, now)
	if !eligible || reason != model.ReasonRecentActivity || *months != 5 {
		t.Fatalf("5 个月前下单应为 recent_activity，实际 %v/%s/%v", eligible, reason, months)
	}

	edge := date(2026, 4, 17)
	eligible, _, _ = AutomaticStatus(&edge, 6, now)
	if !eligible {
		t.Fatal("恰好 6 个月仍在窗口内")
	}

	old := date(2026, 3, 1)
	eligible, reason, months = AutomaticStatus(&old, 6, now)
	if eligible || reason != model.ReasonInactiveWindow || *months != 7 {
		t.Fatalf("7 个月前下单应为 inactive_window，实际 %v/%s/%v", eligible, reason, months)
	}
}

func TestResolveEffective(t *testing.T) {
	block := model.OverrideEntry{Status: model.EligibilityIneligible, Note: "fraud", ActingUserID: "admin", Timestamp: time.Now()}
	allow := model.OverrideEntry{Status: model.EligibilityEligible, ActingUserID: "admin", Timestamp: time.Now()}

	tests := []struct {
		name      string
		rec       model.EligibilityRecord
		recruited int64
		want      EffectiveEligibility
	}{
		{"recruits win over block", model.EligibilityRecord{Eligible: true, Overrides: []model.OverrideEntry{block}}, 2,
			EffectiveEligibility{model.EligibilityEligiblePartial, model.ReasonCommissionActive}},
		{"manual block", model.EligibilityRecord{Eligible: true, Reason: model.ReasonRecentActivity, Overrides: []model.OverrideEntry{block}}, 0,
			EffectiveEligibility{model.EligibilityIneligible, model.ReasonManualBlock}},
		{"latest override wins", model.EligibilityRecord{Eligible: false, Reason: model.ReasonInactiveWindow, Overrides: []model.OverrideEntry{block, allow}}, 0,
			EffectiveEligibility{model.EligibilityEligible, model.ReasonManualAllow}},
		{"automatic inactive", model.EligibilityRecord{Eligible: false, Reason: model.ReasonInactiveWindow}, 0,
			EffectiveEligibility{model.EligibilityIneligible, model.ReasonInactiveWindow}},
		{"automatic no history", model.EligibilityRecord{Eligible: true, Reason: model.ReasonNoHistory}, 0,
			EffectiveEligibility{model.EligibilityEligible, model.ReasonNoHistory}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEffective(&tt.rec, tt.recruited); got != tt.want {
				t.Fatalf("期望 %+v，实际 %+v", tt.want, got)
			}
		})
	}
}

func TestPrepareViewModel(t *testing.T) {
	rec := &model.EligibilityRecord{CoachID: "coach-1", Eligible: true, Reason: model.ReasonNoHistory, LookbackMonths: 6}

	vm := PrepareViewModel(rec, ResolveEffective(rec, 0))
	if vm.StatusLabel != "Eligible" || vm.ButtonLabel != "Mark Ineligible" || vm.ButtonTarget != "ineligible" {
		t.Fatalf("eligible 视图不正确: %+v", vm)
	}
	if vm.OverrideSummary != "No manual overrides" || len(vm.OverrideNotes) != 0 {
		t.Fatalf("无调整时摘要不正确: %+v", vm)
	}

	rec.Overrides = []model.OverrideEntry{
		{Status: model.EligibilityIneligible, Note: "chargebacks", ActingUserID: "admin-1", Timestamp: date(2026, 9, 1)},
		{Status: model.EligibilityIneligible, Note: "still bad", ActingUserID: "admin-2", Timestamp: date(2026, 10, 1)},
	}
	vm = PrepareViewModel(rec, ResolveEffective(rec, 0))
	if vm.StatusLabel != "Ineligible" || vm.ButtonLabel != "Mark Eligible" || vm.ButtonTarget != "eligible" {
		t.Fatalf("ineligible 视图不正确: %+v", vm)
	}
	if !strings.HasPrefix(vm.OverrideSummary, "2 overrides") || !strings.Contains(vm.OverrideSummary, "admin-2") {
		t.Fatalf("调整摘要不正确: %s", vm.OverrideSummary)
	}
	if len(vm.OverrideNotes) != 2 || !strings.Contains(vm.OverrideNotes[0], "still bad") {
		t.Fatalf("调整记录应按时间倒序: %v", vm.OverrideNotes)
	}

	vm = PrepareViewModel(rec, ResolveEffective(rec, 3))
	if vm.StatusLabel != "Coach commission active" || vm.ButtonLabel != "Mark Ineligible" {
		t.Fatalf("eligible-partial 视图不正确: %+v", vm)
	}
}

func TestEligibilityService_AddOverride(t *testing.T) {
	svc, repos := setupTestEligibilityService()
	ctx := context.Background()

	if _, err := svc.AddOverride(ctx, "coach-1", model.EligibilityIneligible, "  ", "admin-1"); !errors.Is(err, ErrInvalidOverride) {
		t.Fatalf("无备注的 ineligible 调整期望 ErrInvalidOverride，实际: %v", err)
	}
	if _, err := svc.AddOverride(ctx, "coach-1", model.EligibilityEligiblePartial, "x", "admin-1"); !errors.Is(err, ErrInvalidOverride) {
		t.Fatalf("eligible-partial 调整期望 ErrInvalidOverride，实际: %v", err)
	}
	if _, ok := repos.eligibility.records["coach-1"]; ok {
		t.Fatal("非法调整不应持久化")
	}

	vm, err := svc.AddOverride(ctx, "coach-1", model.EligibilityIneligible, "abuse", "admin-1")
	if err != nil {
		t.Fatalf("AddOverride 失败: %v", err)
	}
	if vm.Status != string(model.EligibilityIneligible) || vm.Reason != string(model.ReasonManualBlock) {
		t.Fatalf("调整后状态不正确: %+v", vm)
	}

	eff, found, err := svc.Effective(ctx, "coach-1")
	if err != nil || !found || eff.Status != model.EligibilityIneligible {
		t.Fatalf("Effective 不正确: %+v found=%v err=%v", eff, found, err)
	}
}

func TestEligibilityService_RecomputeKeepsOverride(t *testing.T) {
	svc, _ := setupTestEligibilityService()
	ctx := context.Background()

	recent := time.Now().AddDate(0, -1, 0)
	if err := svc.RecordOrder(ctx, "coach-1", "order-1", recent); err != nil {
		t.Fatalf("RecordOrder 失败: %v", err)
	}
	if _, err := svc.AddOverride(ctx, "coach-1", model.EligibilityIneligible, "manual", "admin-1"); err != nil {
		t.Fatalf("AddOverride 失败: %v", err)
	}

	vm, err := svc.Recompute(ctx, "coach-1", time.Now())
	if err != nil {
		t.Fatalf("Recompute 失败: %v", err)
	}
	if vm.Status != string(model.EligibilityIneligible) {
		t.Fatalf("自动判定不应推翻手工调整，实际状态=%s", vm.Status)
	}
	if vm.LastOrderID != "order-1" {
		t.Fatalf("最近订单应为 order-1，实际=%s", vm.LastOrderID)
	}

	vm, err = svc.AddOverride(ctx, "coach-1", model.EligibilityEligible, "", "admin-2")
	if err != nil {
		t.Fatalf("AddOverride 失败: %v", err)
	}
	if vm.Status != string(model.EligibilityEligible) || vm.Reason != string(model.ReasonManualAllow) {
		t.Fatalf("更新的手工调整应生效: %+v", vm)
	}
}

func TestEligibilityService_RecordOrderIgnoresOlderOrder(t *testing.T) {
	svc, repos := setupTestEligibilityService()
	ctx := context.Background()

	newer := time.Now().Add(-time.Hour)
	_ = svc.RecordOrder(ctx, "coach-1", "order-new", newer)
	_ = svc.RecordOrder(ctx, "coach-1", "order-old", newer.AddDate(0, -2, 0))

	if got := repos.eligibility.records["coach-1"].LastOrderID; got != "order-new" {
		t.Fatalf("较早的订单不应覆盖最近订单，实际=%s", got)
	}
}

func TestEligibilityService_MalformedOverridesFail(t *testing.T) {
	svc, repos := setupTestEligibilityService()
	repos.eligibility.raw["coach-x"] = []byte(`[{"status":"maybe","note":"","acting_user_id":"a","timestamp":"2026-01-01T00:00:00Z"}]`)

	if _, _, err := svc.Effective(context.Background(), "coach-x"); err == nil {
		t.Fatal("非法调整记录应直接报错")
	}
}

func TestEligibilityService_BulkOverride(t *testing.T) {
	svc, repos := setupTestEligibilityService()
	ctx := context.Background()
	repos.eligibility.raw["coach-bad"] = []byte(`not json`)

	resp, err := svc.BulkOverride(ctx, &dto.BulkOverrideRequest{
		CoachIDs: []string{"coach-1", "coach-2", "coach-1", "coach-bad"},
		Status:   "ineligible",
		Note:     "season closed",
	}, "admin-1")
	if err != nil {
		t.Fatalf("BulkOverride 失败: %v", err)
	}
	if len(resp.Updated) != 2 {
		t.Fatalf("期望更新 2 位教练，实际=%v", resp.Updated)
	}
	if _, ok := resp.Failed["coach-bad"]; !ok {
		t.Fatalf("损坏记录应出现在失败列表: %v", resp.Failed)
	}
	if n := len(repos.eligibility.records["coach-1"].Overrides); n != 1 {
		t.Fatalf("重复 ID 只应调整一次，实际 %d 次", n)
	}

	if _, err := svc.BulkOverride(ctx, &dto.BulkOverrideRequest{CoachIDs: []string{"coach-3"}, Status: "ineligible"}, "admin-1"); !errors.Is(err, ErrInvalidOverride) {
		t.Fatalf("无备注批量拉黑期望 ErrInvalidOverride，实际: %v", err)
	}
}
