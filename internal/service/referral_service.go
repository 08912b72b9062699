package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coach-loyalty/backend/config"
	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
)

// ── 推荐码应用业务错误 ──

var (
	ErrInvalidCode     = errors.New("invalid referral code")
	ErrOwnReferralCode = fmt.Errorf("%w: you cannot use your own referral code", ErrInvalidCode)
	ErrConflictingCode = errors.New("cannot combine a friend referral code with a coach code")
	ErrCoachIneligible = errors.New("this coach code is not active")
)

// 推荐码应用结果提示
const (
	msgFirstDiscountUsed        = "First-time discount already used"
	msgFirstDiscountUnavailable = "First-time discount not available for this account"
	msgCoachDiscountApplied     = "Coach referral discount applied"
	msgFriendDiscountApplied    = "Friend referral discount applied"
)

// ReferralService 购物车推荐码业务接口
type ReferralService interface {
	// ApplyCode 业务拒绝以 Success=false 返回且会话不变；error 只用于基础设施故障
	ApplyCode(ctx context.Context, sessionID string, req *dto.ApplyCodeRequest) (*dto.ApplyCodeResult, error)
	RemoveCode(ctx context.Context, sessionID string) error
	State(ctx context.Context, sessionID string) (*dto.CartReferralResponse, error)
	// DiscountFees 返回需要追加到购物车的折扣费用行，已存在同名费用时不重复追加
	DiscountFees(ctx context.Context, sessionID string, existingFees []string) (*dto.CartFeesResponse, error)
}

type referralService struct {
	repo           *repository.Repository
	eligibility    EligibilityService
	coachDiscount  decimal.Decimal
	friendDiscount decimal.Decimal
	coachFeeName   string
	friendFeeName  string
	logger         *zap.Logger
}

// NewReferralService 创建 ReferralService 实例
func NewReferralService(cfg *config.LoyaltyConfig, repo *repository.Repository, eligibility EligibilityService, logger *zap.Logger) ReferralService {
	return &referralService{
		repo:           repo,
		eligibility:    eligibility,
		coachDiscount:  cfg.CoachDiscountAmount(),
		friendDiscount: cfg.FriendDiscountAmount(),
		coachFeeName:   cfg.CoachFeeName,
		friendFeeName:  cfg.FriendFeeName,
		logger:         logger,
	}
}

// ────────────────────── ApplyCode ──────────────────────

func (s *referralService) ApplyCode(ctx context.Context, sessionID string, req *dto.ApplyCodeRequest) (*dto.ApplyCodeResult, error) {
	code := model.NormalizeCode(req.Code)
	if code == "" {
		return rejected(ErrInvalidCode), nil
	}

	rc, err := s.repo.ReferralCode.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rejected(ErrInvalidCode), nil
		}
		s.logger.Error("查询推荐码失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	current, err := s.repo.CartSession.Load(ctx, sessionID)
	if err != nil {
		s.logger.Error("读取购物车会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	if rc.IsCoachCode() && current.AppliedCustomerCode() != "" {
		return rejected(ErrConflictingCode), nil
	}
	if !rc.IsCoachCode() && current.AppliedCoachCode() != "" {
		return rejected(ErrConflictingCode), nil
	}
	if req.CustomerID != "" && rc.OwnerID == req.CustomerID {
		return rejected(ErrOwnReferralCode), nil
	}

	if rc.IsCoachCode() {
		owner, _, err := s.eligibility.Effective(ctx, rc.OwnerID)
		if err != nil {
			return nil, err
		}
		if owner.Status == model.EligibilityIneligible {
			return rejected(ErrCoachIneligible), nil
		}
	}

	discount, message, err := s.discountFor(ctx, rc, req)
	if err != nil {
		return nil, err
	}

	state := &model.CartReferralState{
		AppliedCode:    rc.Code,
		CodeKind:       rc.OwnerKind,
		DiscountAmount: discount,
		Message:        message,
	}
	if rc.IsCoachCode() {
		state.CoachID = rc.OwnerID
	} else {
		state.ReferrerID = rc.OwnerID
	}
	if err := s.repo.CartSession.Save(ctx, sessionID, state); err != nil {
		s.logger.Error("保存购物车会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("推荐码已应用",
		zap.String("session_id", sessionID),
		zap.String("code", rc.Code),
		zap.String("kind", string(rc.OwnerKind)),
		zap.String("discount", discount.String()),
	)

	return &dto.ApplyCodeResult{
		Success:        true,
		Message:        message,
		DiscountAmount: discount,
		CodeKind:       string(rc.OwnerKind),
		CoachID:        state.CoachID,
		AppliedCode:    rc.Code,
	}, nil
}

// discountFor 首单优惠：已有完成订单或购买者自身资格受限时优惠为 0，推荐码仍记录
func (s *referralService) discountFor(ctx context.Context, rc *model.ReferralCode, req *dto.ApplyCodeRequest) (decimal.Decimal, string, error) {
	if req.CompletedOrderCount > 0 {
		return decimal.Zero, msgFirstDiscountUsed, nil
	}

	if req.CustomerID != "" {
		purchaser, found, err := s.eligibility.Effective(ctx, req.CustomerID)
		if err != nil {
			return decimal.Zero, "", err
		}
		if found && purchaser.Status != model.EligibilityEligible {
			return decimal.Zero, msgFirstDiscountUnavailable, nil
		}
	}

	if rc.IsCoachCode() {
		return s.coachDiscount, msgCoachDiscountApplied, nil
	}
	return s.friendDiscount, msgFriendDiscountApplied, nil
}

func rejected(err error) *dto.ApplyCodeResult {
	result := &dto.ApplyCodeResult{
		Success:        false,
		Message:        err.Error(),
		DiscountAmount: decimal.Zero,
	}
	switch {
	case errors.Is(err, ErrConflictingCode):
		result.Reason = "conflicting_code"
	case errors.Is(err, ErrCoachIneligible):
		result.Reason = "coach_ineligible"
	default:
		result.Reason = "invalid_code"
	}
	return result
}

// ────────────────────── RemoveCode / State ──────────────────────

func (s *referralService) RemoveCode(ctx context.Context, sessionID string) error {
	if err := s.repo.CartSession.Clear(ctx, sessionID); err != nil {
		s.logger.Error("清除购物车推荐码失败", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}
	return nil
}

func (s *referralService) State(ctx context.Context, sessionID string) (*dto.CartReferralResponse, error) {
	state, err := s.repo.CartSession.Load(ctx, sessionID)
	if err != nil {
		s.logger.Error("读取购物车会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	return &dto.CartReferralResponse{
		SessionID:      sessionID,
		AppliedCode:    state.AppliedCode,
		CodeKind:       string(state.CodeKind),
		CoachID:        state.CoachID,
		ReferrerID:     state.ReferrerID,
		DiscountAmount: state.DiscountAmount,
		Message:        state.Message,
	}, nil
}

// ────────────────────── DiscountFees ──────────────────────

func (s *referralService) DiscountFees(ctx context.Context, sessionID string, existingFees []string) (*dto.CartFeesResponse, error) {
	state, err := s.repo.CartSession.Load(ctx, sessionID)
	if err != nil {
		s.logger.Error("读取购物车会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	fees := make([]model.CartFee, 0, len(existingFees))
	for _, name := range existingFees {
		fees = append(fees, model.CartFee{Name: name})
	}
	added := ApplyDiscountAsFee(state, fees, s.coachFeeName, s.friendFeeName)

	resp := &dto.CartFeesResponse{SessionID: sessionID, Fees: []dto.CartFeeLine{}}
	for _, fee := range added[len(fees):] {
		resp.Fees = append(resp.Fees, dto.CartFeeLine{Name: fee.Name, Amount: fee.Amount, Taxable: fee.Taxable})
	}
	return resp, nil
}

// ApplyDiscountAsFee 当前推荐码折扣以不计税的负数费用追加到 fees
// 无有效折扣或同名费用已存在时原样返回，重复调用结果不变
func ApplyDiscountAsFee(state *model.CartReferralState, fees []model.CartFee, coachFeeName, friendFeeName string) []model.CartFee {
	if !state.HasCode() || state.DiscountAmount.Sign() <= 0 {
		return fees
	}

	name := friendFeeName
	if state.CodeKind == model.AccountKindCoach {
		name = coachFeeName
	}
	for _, fee := range fees {
		if fee.Name == name {
			return fees
		}
	}

	return append(fees, model.CartFee{
		Name:    name,
		Amount:  state.DiscountAmount.Neg(),
		Taxable: false,
	})
}

// [自证通过] internal/service/referral_service.go
