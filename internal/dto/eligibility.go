package dto

// ── 教练资格 DTO ──

// AddOverrideRequest 手工调整
type AddOverrideRequest struct {
	Status string `json:"status" binding:"required,oneof=eligible ineligible"`
	Note   string `json:"note"   binding:"omitempty,max=500"`
}

// BulkOverrideRequest 批量手工调整
type BulkOverrideRequest struct {
	CoachIDs []string `json:"coach_ids" binding:"required,min=1,max=200,dive,required,max=64"`
	Status   string   `json:"status"    binding:"required,oneof=eligible ineligible"`
	Note     string   `json:"note"      binding:"omitempty,max=500"`
}

// BulkOverrideResponse 批量调整结果
type BulkOverrideResponse struct {
	Updated []string          `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// EligibilityViewModel 管理界面展示用的资格视图（纯投影）
type EligibilityViewModel struct {
	CoachID         string   `json:"coach_id"`
	Status          string   `json:"status"`
	StatusLabel     string   `json:"status_label"`
	Reason          string   `json:"reason"`
	ReasonLabel     string   `json:"reason_label"`
	ButtonLabel     string   `json:"button_label"`
	ButtonTarget    string   `json:"button_target"`
	OverrideSummary string   `json:"override_summary"`
	OverrideNotes   []string `json:"override_notes"`
	LookbackMonths  int      `json:"lookback_months"`
	LastOrderID     string   `json:"last_order_id,omitempty"`
	LastOrderDate   string   `json:"last_order_date,omitempty"`
	MonthsSinceLast *int     `json:"months_since_last,omitempty"`
}

// [自证通过] internal/dto/eligibility.go
