package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"coach-loyalty/backend/config"
	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
)

// ── 教练资格业务错误 ──

var (
	ErrInvalidOverride = errors.New("override status must be eligible or ineligible, and ineligible requires a note")
)

// EffectiveEligibility 最终生效的资格状态
type EffectiveEligibility struct {
	Status model.EligibilityStatus
	Reason model.EligibilityReason
}

// EligibilityService 教练资格业务接口
type EligibilityService interface {
	// Effective 返回生效状态；found=false 表示该账户没有资格记录（按默认记录计算）
	Effective(ctx context.Context, coachID string) (eff EffectiveEligibility, found bool, err error)
	ViewModel(ctx context.Context, coachID string) (*dto.EligibilityViewModel, error)
	AddOverride(ctx context.Context, coachID string, status model.EligibilityStatus, note, actorID string) (*dto.EligibilityViewModel, error)
	BulkOverride(ctx context.Context, req *dto.BulkOverrideRequest, actorID string) (*dto.BulkOverrideResponse, error)
	// Recompute 刷新自动判定事实，不改变手工调整记录
	Recompute(ctx context.Context, coachID string, now time.Time) (*dto.EligibilityViewModel, error)
	// RecordOrder 教练码订单完成时更新最近订单事实
	RecordOrder(ctx context.Context, coachID, orderID string, at time.Time) error
}

type eligibilityService struct {
	repo           *repository.Repository
	lookbackMonths int
	logger         *zap.Logger
}

// NewEligibilityService 创建 EligibilityService 实例
func NewEligibilityService(cfg *config.LoyaltyConfig, repo *repository.Repository, logger *zap.Logger) EligibilityService {
	return &eligibilityService{repo: repo, lookbackMonths: cfg.EligibilityLookbackMonths, logger: logger}
}

// ────────────────────── Effective ──────────────────────

func (s *eligibilityService) Effective(ctx context.Context, coachID string) (EffectiveEligibility, bool, error) {
	rec, found, err := s.load(ctx, s.repo, coachID, false)
	if err != nil {
		return EffectiveEligibility{}, false, err
	}
	refreshAutomatic(rec, time.Now())
	recruited, err := s.repo.CoachCustomer.CountByCoach(ctx, coachID)
	if err != nil {
		s.logger.Error("统计招募人数失败", zap.String("coach_id", coachID), zap.Error(err))
		return EffectiveEligibility{}, false, err
	}
	return ResolveEffective(rec, recruited), found, nil
}

// ────────────────────── ViewModel ──────────────────────

func (s *eligibilityService) ViewModel(ctx context.Context, coachID string) (*dto.EligibilityViewModel, error) {
	rec, _, err := s.load(ctx, s.repo, coachID, false)
	if err != nil {
		return nil, err
	}
	return s.viewModel(ctx, rec, time.Now())
}

// ────────────────────── AddOverride ──────────────────────

func (s *eligibilityService) AddOverride(ctx context.Context, coachID string, status model.EligibilityStatus, note, actorID string) (*dto.EligibilityViewModel, error) {
	entry := model.OverrideEntry{
		Status:       status,
		Note:         strings.TrimSpace(note),
		ActingUserID: actorID,
		Timestamp:    time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, ErrInvalidOverride
	}
	if entry.Status == model.EligibilityIneligible && entry.Note == "" {
		return nil, ErrInvalidOverride
	}

	var saved *model.EligibilityRecord
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		rec, _, err := s.load(ctx, txRepo, coachID, true)
		if err != nil {
			return err
		}
		rec.Overrides = append(rec.Overrides, entry)
		rec.UpdatedAt = entry.Timestamp
		if err := txRepo.Eligibility.Save(ctx, rec); err != nil {
			return err
		}
		saved = rec
		return nil
	})
	if err != nil {
		s.logger.Error("追加资格调整失败", zap.String("coach_id", coachID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("教练资格已手工调整",
		zap.String("coach_id", coachID),
		zap.String("status", string(status)),
		zap.String("actor_id", actorID),
	)
	return s.viewModel(ctx, saved, time.Now())
}

// ────────────────────── BulkOverride ──────────────────────

func (s *eligibilityService) BulkOverride(ctx context.Context, req *dto.BulkOverrideRequest, actorID string) (*dto.BulkOverrideResponse, error) {
	status := model.EligibilityStatus(req.Status)
	if status == model.EligibilityIneligible && strings.TrimSpace(req.Note) == "" {
		return nil, ErrInvalidOverride
	}

	resp := &dto.BulkOverrideResponse{Updated: []string{}}
	seen := make(map[string]bool, len(req.CoachIDs))
	for _, coachID := range req.CoachIDs {
		if seen[coachID] {
			continue
		}
		seen[coachID] = true

		if _, err := s.AddOverride(ctx, coachID, status, req.Note, actorID); err != nil {
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[coachID] = err.Error()
			continue
		}
		resp.Updated = append(resp.Updated, coachID)
	}
	return resp, nil
}

// ────────────────────── Recompute ──────────────────────

func (s *eligibilityService) Recompute(ctx context.Context, coachID string, now time.Time) (*dto.EligibilityViewModel, error) {
	var saved *model.EligibilityRecord
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		rec, _, err := s.load(ctx, txRepo, coachID, true)
		if err != nil {
			return err
		}
		applyAutomatic(rec, now)
		if err := txRepo.Eligibility.Save(ctx, rec); err != nil {
			return err
		}
		saved = rec
		return nil
	})
	if err != nil {
		s.logger.Error("重新计算资格失败", zap.String("coach_id", coachID), zap.Error(err))
		return nil, err
	}
	return s.viewModel(ctx, saved, now)
}

// ────────────────────── RecordOrder ──────────────────────

func (s *eligibilityService) RecordOrder(ctx context.Context, coachID, orderID string, at time.Time) error {
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		rec, _, err := s.load(ctx, txRepo, coachID, true)
		if err != nil {
			return err
		}
		// 同一订单只记一次；更早的订单不覆盖最近订单
		if rec.LastOrderDate != nil && (rec.LastOrderID == orderID || rec.LastOrderDate.After(at)) {
			return nil
		}
		orderAt := at.UTC()
		rec.LastOrderID = orderID
		rec.LastOrderDate = &orderAt
		applyAutomatic(rec, at)
		return txRepo.Eligibility.Save(ctx, rec)
	})
	if err != nil {
		s.logger.Error("更新教练最近订单失败",
			zap.String("coach_id", coachID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// load 读取资格记录，不存在时返回默认记录
func (s *eligibilityService) load(ctx context.Context, repo *repository.Repository, coachID string, forUpdate bool) (*model.EligibilityRecord, bool, error) {
	var (
		rec *model.EligibilityRecord
		err error
	)
	if forUpdate {
		rec, err = repo.Eligibility.GetForUpdate(ctx, coachID)
	} else {
		rec, err = repo.Eligibility.Get(ctx, coachID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaultRecord(coachID), false, nil
		}
		s.logger.Error("查询教练资格失败", zap.String("coach_id", coachID), zap.Error(err))
		return nil, false, err
	}
	if rec.LookbackMonths <= 0 {
		rec.LookbackMonths = s.lookbackMonths
	}
	return rec, true, nil
}

func (s *eligibilityService) defaultRecord(coachID string) *model.EligibilityRecord {
	return &model.EligibilityRecord{
		CoachID:        coachID,
		Eligible:       true,
		Reason:         model.ReasonNoHistory,
		LookbackMonths: s.lookbackMonths,
		Overrides:      []model.OverrideEntry{},
		UpdatedAt:      time.Now().UTC(),
	}
}

func (s *eligibilityService) viewModel(ctx context.Context, rec *model.EligibilityRecord, now time.Time) (*dto.EligibilityViewModel, error) {
	recruited, err := s.repo.CoachCustomer.CountByCoach(ctx, rec.CoachID)
	if err != nil {
		s.logger.Error("统计招募人数失败", zap.String("coach_id", rec.CoachID), zap.Error(err))
		return nil, err
	}
	refreshAutomatic(rec, now)
	vm := PrepareViewModel(rec, ResolveEffective(rec, recruited))
	return &vm, nil
}

// ── 纯函数 ──

// AutomaticStatus 按最近订单时间与回溯窗口判定
func AutomaticStatus(lastOrderDate *time.Time, lookbackMonths int, now time.Time) (bool, model.EligibilityReason, *int) {
	if lastOrderDate == nil {
		return true, model.ReasonNoHistory, nil
	}
	months := monthsBetween(*lastOrderDate, now)
	if months > lookbackMonths {
		return false, model.ReasonInactiveWindow, &months
	}
	return true, model.ReasonRecentActivity, &months
}

func applyAutomatic(rec *model.EligibilityRecord, now time.Time) {
	refreshAutomatic(rec, now)
	rec.UpdatedAt = now.UTC()
}

// refreshAutomatic 读取时按当前时间重算回溯窗口结果（只改内存中的记录，不落库）
func refreshAutomatic(rec *model.EligibilityRecord, now time.Time) {
	eligible, reason, months := AutomaticStatus(rec.LastOrderDate, rec.LookbackMonths, now)
	rec.Eligible = eligible
	rec.Reason = reason
	rec.MonthsSinceLast = months
}

// monthsBetween 两个时间之间的完整自然月数，to 早于 from 时为 0
func monthsBetween(from, to time.Time) int {
	from, to = from.UTC(), to.UTC()
	if !to.After(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// ResolveEffective 生效状态判定顺序：
// 存在招募关系 → eligible-partial；否则最近一次手工调整；否则自动判定结果
// 自动判定不会推翻手工调整，只有更新的手工调整可以
func ResolveEffective(rec *model.EligibilityRecord, recruitedCount int64) EffectiveEligibility {
	if recruitedCount > 0 {
		return EffectiveEligibility{Status: model.EligibilityEligiblePartial, Reason: model.ReasonCommissionActive}
	}
	if latest, ok := rec.LatestOverride(); ok {
		if latest.Status == model.EligibilityIneligible {
			return EffectiveEligibility{Status: model.EligibilityIneligible, Reason: model.ReasonManualBlock}
		}
		return EffectiveEligibility{Status: model.EligibilityEligible, Reason: model.ReasonManualAllow}
	}
	if rec.Eligible {
		return EffectiveEligibility{Status: model.EligibilityEligible, Reason: rec.Reason}
	}
	return EffectiveEligibility{Status: model.EligibilityIneligible, Reason: rec.Reason}
}

var statusLabels = map[model.EligibilityStatus]string{
	model.EligibilityEligible:        "Eligible",
	model.EligibilityIneligible:      "Ineligible",
	model.EligibilityEligiblePartial: "Coach commission active",
}

var reasonLabels = map[model.EligibilityReason]string{
	model.ReasonManualBlock:      "Blocked by an administrator",
	model.ReasonManualAllow:      "Allowed by an administrator",
	model.ReasonInactiveWindow:   "No orders within the lookback window",
	model.ReasonRecentActivity:   "Recent order activity",
	model.ReasonNoHistory:        "No order history",
	model.ReasonCommissionActive: "Coach commission active",
}

// PrepareViewModel 资格记录 → 管理界面视图，无副作用
func PrepareViewModel(rec *model.EligibilityRecord, eff EffectiveEligibility) dto.EligibilityViewModel {
	vm := dto.EligibilityViewModel{
		CoachID:         rec.CoachID,
		Status:          string(eff.Status),
		StatusLabel:     statusLabels[eff.Status],
		Reason:          string(eff.Reason),
		ReasonLabel:     reasonLabels[eff.Reason],
		ButtonLabel:     "Mark Ineligible",
		ButtonTarget:    string(model.EligibilityIneligible),
		OverrideSummary: "No manual overrides",
		OverrideNotes:   []string{},
		LookbackMonths:  rec.LookbackMonths,
		LastOrderID:     rec.LastOrderID,
		MonthsSinceLast: rec.MonthsSinceLast,
	}
	if eff.Status == model.EligibilityIneligible {
		vm.ButtonLabel = "Mark Eligible"
		vm.ButtonTarget = string(model.EligibilityEligible)
	}
	if rec.LastOrderDate != nil {
		vm.LastOrderDate = rec.LastOrderDate.Format(time.RFC3339)
	}

	if latest, ok := rec.LatestOverride(); ok {
		noun := "override"
		if len(rec.Overrides) > 1 {
			noun = "overrides"
		}
		vm.OverrideSummary = fmt.Sprintf("%d %s, latest: %s by %s on %s",
			len(rec.Overrides), noun, statusLabels[latest.Status], latest.ActingUserID,
			latest.Timestamp.Format("2006-01-02"))
	}
	for i := len(rec.Overrides) - 1; i >= 0; i-- {
		o := rec.Overrides[i]
		line := fmt.Sprintf("%s %s by %s", o.Timestamp.Format("2006-01-02 15:04"), statusLabels[o.Status], o.ActingUserID)
		if o.Note != "" {
			line += ": " + o.Note
		}
		vm.OverrideNotes = append(vm.OverrideNotes, line)
	}
	return vm
}

// [自证通过] internal/service/eligibility_service.go
