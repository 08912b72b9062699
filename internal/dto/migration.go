package dto

// ── 积分整数化迁移 DTO ──

// MigrationResult start / rollback 的结构化结果
// 失败不以 HTTP 错误返回，Success=false 并附 Message
type MigrationResult struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	State   *MigrationStatusResponse `json:"state,omitempty"`
}

// MigrationStatusResponse 迁移状态
type MigrationStatusResponse struct {
	Status           string   `json:"status"`
	Needed           bool     `json:"needed"`
	StartedAt        string   `json:"started_at,omitempty"`
	CompletedAt      string   `json:"completed_at,omitempty"`
	BackupTableNames []string `json:"backup_table_names"`
	RecordsConverted int      `json:"records_converted"`
	Errors           []string `json:"errors"`
}

// [自证通过] internal/dto/migration.go
