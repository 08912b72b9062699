package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coach-loyalty/backend/config"
	"coach-loyalty/backend/internal/dto"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
)

// ── 积分整数化迁移业务错误 ──

var (
	ErrMigrationInProgress    = errors.New("points migration is already running")
	ErrMigrationBackupMissing = errors.New("no migration backup is available to roll back to")
	ErrLegacyTotalsCorrupt    = errors.New("legacy totals are inconsistent")
)

// 需要备份的积分表，顺序即恢复顺序
var migratedTables = []string{"points_accounts", "ledger_entries"}

// MigrationService 积分整数化迁移接口
// start / rollback 的业务失败以 Success=false 返回，error 只用于基础设施故障
type MigrationService interface {
	Status(ctx context.Context) (*dto.MigrationStatusResponse, error)
	IsMigrationNeeded(ctx context.Context) (bool, error)
	Start(ctx context.Context) (*dto.MigrationResult, error)
	Rollback(ctx context.Context) (*dto.MigrationResult, error)
	// RecoverInterrupted 启动时调用：上次进程在 running 状态退出则标记为 failed 以允许重试
	RecoverInterrupted(ctx context.Context) error
	// StartIfEmpty 全新部署（尚无积分账户）时直接完成迁移
	StartIfEmpty(ctx context.Context) error
}

type migrationService struct {
	repo         *repository.Repository
	backupPrefix string
	running      atomic.Bool
	logger       *zap.Logger
}

// NewMigrationService 创建 MigrationService 实例
func NewMigrationService(cfg *config.MigrationConfig, repo *repository.Repository, logger *zap.Logger) MigrationService {
	return &migrationService{repo: repo, backupPrefix: cfg.BackupPrefix, logger: logger}
}

// ────────────────────── Status ──────────────────────

func (s *migrationService) Status(ctx context.Context) (*dto.MigrationStatusResponse, error) {
	state, err := s.loadState(ctx, s.repo, false)
	if err != nil {
		return nil, err
	}
	return toMigrationStatus(state), nil
}

func (s *migrationService) IsMigrationNeeded(ctx context.Context) (bool, error) {
	state, err := s.loadState(ctx, s.repo, false)
	if err != nil {
		return false, err
	}
	return state.Status != model.MigrationCompleted, nil
}

// ────────────────────── Start ──────────────────────

func (s *migrationService) Start(ctx context.Context) (*dto.MigrationResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return s.rejectInProgress(ctx)
	}
	defer s.running.Store(false)

	state, alreadyDone, err := s.claim(ctx)
	if err != nil {
		if errors.Is(err, ErrMigrationInProgress) {
			return s.rejectInProgress(ctx)
		}
		s.logger.Error("启动积分迁移失败", zap.Error(err))
		return nil, err
	}
	if alreadyDone {
		return &dto.MigrationResult{
			Success: true,
			Message: "Points migration already completed",
			State:   toMigrationStatus(state),
		}, nil
	}

	s.logger.Info("积分整数化迁移开始", zap.Strings("backups", state.BackupTableNames))

	if err := s.ensureBackups(ctx, state); err != nil {
		state.Errors = append(state.Errors, fmt.Sprintf("backup: %v", err))
		return s.finish(ctx, state)
	}

	s.convertAll(ctx, state)

	if len(state.Errors) == 0 {
		if err := s.repo.PointsSchema.ConvertColumnsToInteger(ctx); err != nil {
			state.Errors = append(state.Errors, fmt.Sprintf("alter columns: %v", err))
		}
	}
	return s.finish(ctx, state)
}

// claim 在行锁内把持久化状态切换为 running
func (s *migrationService) claim(ctx context.Context) (*model.MigrationState, bool, error) {
	if err := s.repo.Option.SetIfAbsent(ctx, model.MigrationOptionKey, model.NewMigrationState()); err != nil {
		return nil, false, err
	}

	var (
		state       *model.MigrationState
		alreadyDone bool
	)
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		st, err := s.loadState(ctx, txRepo, true)
		if err != nil {
			return err
		}
		switch st.Status {
		case model.MigrationCompleted:
			state, alreadyDone = st, true
			return nil
		case model.MigrationRunning:
			return ErrMigrationInProgress
		}

		now := time.Now().UTC()
		st.Status = model.MigrationRunning
		st.StartedAt = &now
		st.CompletedAt = nil
		st.RecordsConverted = 0
		st.Errors = []string{}
		if err := txRepo.Option.Set(ctx, model.MigrationOptionKey, st); err != nil {
			return err
		}
		state = st
		return nil
	})
	return state, alreadyDone, err
}

// ensureBackups 备份表名在任何破坏性操作之前落盘；重试时复用已有备份
func (s *migrationService) ensureBackups(ctx context.Context, state *model.MigrationState) error {
	if state.HasBackup() {
		for _, name := range state.BackupTableNames {
			exists, err := s.repo.PointsSchema.TableExists(ctx, name)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("backup table %s is missing", name)
			}
		}
		return nil
	}

	suffix := time.Now().UTC().Format("20060102150405")
	names := make([]string, 0, len(migratedTables))
	for _, table := range migratedTables {
		name := fmt.Sprintf("%s_%s_%s", s.backupPrefix, table, suffix)
		if err := s.repo.PointsSchema.CopyTable(ctx, table, name); err != nil {
			for _, created := range names {
				_ = s.repo.PointsSchema.DropTable(ctx, created)
			}
			return fmt.Errorf("copy %s: %w", table, err)
		}
		names = append(names, name)
	}

	state.BackupTableNames = names
	if err := s.repo.Option.Set(ctx, model.MigrationOptionKey, state); err != nil {
		return fmt.Errorf("persist backup names: %w", err)
	}
	s.logger.Info("积分表备份完成", zap.Strings("backups", names))
	return nil
}

// convertAll 逐账户转换，单个账户失败记入 Errors 后继续
func (s *migrationService) convertAll(ctx context.Context, state *model.MigrationState) {
	accounts, err := s.repo.PointsSchema.ListLegacyAccounts(ctx)
	if err != nil {
		state.Errors = append(state.Errors, fmt.Sprintf("list accounts: %v", err))
		return
	}

	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			state.Errors = append(state.Errors, fmt.Sprintf("aborted: %v", err))
			return
		}
		if err := s.convertAccount(ctx, acc); err != nil {
			s.logger.Warn("账户转换失败", zap.String("account_id", acc.AccountID), zap.Error(err))
			state.Errors = append(state.Errors, fmt.Sprintf("account %s: %v", acc.AccountID, err))
			continue
		}
		state.RecordsConverted++
	}
}

func (s *migrationService) convertAccount(ctx context.Context, acc repository.LegacyAccount) error {
	return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		entries, err := txRepo.PointsSchema.ListLegacyEntries(ctx, acc.AccountID)
		if err != nil {
			return err
		}
		conv, err := ConvertLegacyAccount(acc, entries)
		if err != nil {
			return err
		}

		for entryID, amount := range conv.EntryAmounts {
			if err := txRepo.PointsSchema.UpdateEntryAmount(ctx, entryID, amount); err != nil {
				return err
			}
		}
		if !conv.AccountChanged && conv.Correction == 0 {
			return nil
		}
		if conv.AccountChanged {
			if err := txRepo.PointsSchema.UpdateAccountTotals(ctx, acc.AccountID, conv.Balance, conv.Earned, conv.Redeemed); err != nil {
				return err
			}
		}
		return txRepo.LedgerEntry.Create(ctx, &model.LedgerEntry{
			AccountID: acc.AccountID,
			Amount:    conv.Correction,
			Kind:      model.EntryKindMigrationCorrection,
			Reason:    conv.Reason,
		})
	})
}

// finish 按错误数落盘最终状态
func (s *migrationService) finish(ctx context.Context, state *model.MigrationState) (*dto.MigrationResult, error) {
	result := &dto.MigrationResult{}
	if len(state.Errors) == 0 {
		now := time.Now().UTC()
		state.Status = model.MigrationCompleted
		state.CompletedAt = &now
		result.Success = true
		result.Message = fmt.Sprintf("Points migration completed: %d accounts converted", state.RecordsConverted)
	} else {
		state.Status = model.MigrationFailed
		result.Message = fmt.Sprintf("Points migration failed with %d errors; fix the data and start again", len(state.Errors))
	}

	// 请求被取消时仍需写回终态，否则会残留 running
	if err := s.repo.Option.Set(context.WithoutCancel(ctx), model.MigrationOptionKey, state); err != nil {
		s.logger.Error("保存迁移状态失败", zap.String("status", string(state.Status)), zap.Error(err))
		return nil, err
	}

	if result.Success {
		s.logger.Info("积分整数化迁移完成", zap.Int("records_converted", state.RecordsConverted))
	} else {
		s.logger.Warn("积分整数化迁移失败", zap.Int("errors", len(state.Errors)), zap.Strings("details", state.Errors))
	}
	result.State = toMigrationStatus(state)
	return result, nil
}

// ────────────────────── Rollback ──────────────────────

func (s *migrationService) Rollback(ctx context.Context) (*dto.MigrationResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return s.rejectInProgress(ctx)
	}
	defer s.running.Store(false)

	state, err := s.loadState(ctx, s.repo, false)
	if err != nil {
		return nil, err
	}
	if state.Status == model.MigrationRunning {
		return s.reject(ErrMigrationInProgress, state), nil
	}
	if !state.HasBackup() {
		return s.reject(ErrMigrationBackupMissing, state), nil
	}

	pairs := make(map[string]string, len(state.BackupTableNames))
	for _, name := range state.BackupTableNames {
		exists, err := s.repo.PointsSchema.TableExists(ctx, name)
		if err != nil {
			s.logger.Error("检查备份表失败", zap.String("table", name), zap.Error(err))
			return nil, err
		}
		source := backupSource(name)
		if !exists || source == "" {
			return s.reject(ErrMigrationBackupMissing, state), nil
		}
		pairs[source] = name
	}
	if len(pairs) != len(migratedTables) {
		return s.reject(ErrMigrationBackupMissing, state), nil
	}

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.PointsSchema.RestoreColumnsToNumeric(ctx); err != nil {
			return err
		}
		for _, table := range migratedTables {
			if err := txRepo.PointsSchema.ReplaceContents(ctx, table, pairs[table]); err != nil {
				return fmt.Errorf("restore %s: %w", table, err)
			}
		}
		for _, table := range migratedTables {
			if err := txRepo.PointsSchema.DropTable(ctx, pairs[table]); err != nil {
				return err
			}
		}
		return txRepo.Option.Set(ctx, model.MigrationOptionKey, model.NewMigrationState())
	})
	if err != nil {
		s.logger.Error("积分迁移回滚失败", zap.Error(err))
		return nil, err
	}

	s.logger.Warn("积分迁移已回滚，积分账本恢复为小数表示", zap.Strings("backups", state.BackupTableNames))
	return &dto.MigrationResult{
		Success: true,
		Message: "Points migration rolled back",
		State:   toMigrationStatus(model.NewMigrationState()),
	}, nil
}

// ────────────────────── Startup ──────────────────────

func (s *migrationService) RecoverInterrupted(ctx context.Context) error {
	if s.running.Load() {
		return nil
	}
	state, err := s.loadState(ctx, s.repo, false)
	if err != nil {
		return err
	}
	if state.Status != model.MigrationRunning {
		return nil
	}

	state.Status = model.MigrationFailed
	state.Errors = append(state.Errors, "interrupted: process stopped while the migration was running")
	if err := s.repo.Option.Set(ctx, model.MigrationOptionKey, state); err != nil {
		s.logger.Error("标记中断迁移失败", zap.Error(err))
		return err
	}
	s.logger.Warn("检测到中断的积分迁移，已标记为 failed", zap.Strings("backups", state.BackupTableNames))
	return nil
}

func (s *migrationService) StartIfEmpty(ctx context.Context) error {
	state, err := s.loadState(ctx, s.repo, false)
	if err != nil {
		return err
	}
	if state.Status != model.MigrationNotStarted {
		return nil
	}

	accounts, err := s.repo.PointsSchema.ListLegacyAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) > 0 {
		s.logger.Warn("存在小数积分数据，需要管理员执行积分整数化迁移", zap.Int("accounts", len(accounts)))
		return nil
	}

	result, err := s.Start(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New(result.Message)
	}
	return nil
}

// ── helpers ──

func (s *migrationService) loadState(ctx context.Context, repo *repository.Repository, forUpdate bool) (*model.MigrationState, error) {
	state := model.NewMigrationState()
	var err error
	if forUpdate {
		err = repo.Option.GetForUpdate(ctx, model.MigrationOptionKey, state)
	} else {
		err = repo.Option.Get(ctx, model.MigrationOptionKey, state)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("读取迁移状态失败", zap.Error(err))
		return nil, err
	}
	if state.BackupTableNames == nil {
		state.BackupTableNames = []string{}
	}
	if state.Errors == nil {
		state.Errors = []string{}
	}
	return state, nil
}

func (s *migrationService) rejectInProgress(ctx context.Context) (*dto.MigrationResult, error) {
	state, err := s.loadState(ctx, s.repo, false)
	if err != nil {
		return nil, err
	}
	return s.reject(ErrMigrationInProgress, state), nil
}

func (s *migrationService) reject(err error, state *model.MigrationState) *dto.MigrationResult {
	return &dto.MigrationResult{
		Success: false,
		Message: err.Error(),
		State:   toMigrationStatus(state),
	}
}

// backupSource 由备份表名反推源表
func backupSource(backup string) string {
	for _, table := range migratedTables {
		if strings.Contains(backup, "_"+table+"_") {
			return table
		}
	}
	return ""
}

func toMigrationStatus(state *model.MigrationState) *dto.MigrationStatusResponse {
	resp := &dto.MigrationStatusResponse{
		Status:           string(state.Status),
		Needed:           state.Status != model.MigrationCompleted,
		BackupTableNames: state.BackupTableNames,
		RecordsConverted: state.RecordsConverted,
		Errors:           state.Errors,
	}
	if resp.BackupTableNames == nil {
		resp.BackupTableNames = []string{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	if state.StartedAt != nil {
		resp.StartedAt = state.StartedAt.Format(time.RFC3339)
	}
	if state.CompletedAt != nil {
		resp.CompletedAt = state.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// ── 纯函数 ──

// AccountConversion 单个账户的整数化结果
type AccountConversion struct {
	Balance        int64
	Earned         int64
	Redeemed       int64
	EntryAmounts   map[string]int64 // 仅包含取整后发生变化的流水
	Correction     int64
	AccountChanged bool
	Reason         string
}

// ConvertLegacyAccount 向下取整：balance' = ⌊B⌋，earned' = ⌊E⌋，redeemed' = earned' - balance'；
// 流水逐条取整，校正额 = balance' - Σ⌊entry⌋
func ConvertLegacyAccount(acc repository.LegacyAccount, entries []repository.LegacyEntry) (*AccountConversion, error) {
	balance := acc.Balance.Floor()
	earned := acc.LifetimeEarned.Floor()
	redeemed := earned.Sub(balance)
	if redeemed.Sign() < 0 || earned.Sign() < 0 {
		return nil, fmt.Errorf("%w: balance %s exceeds lifetime earned %s", ErrLegacyTotalsCorrupt, acc.Balance, acc.LifetimeEarned)
	}
	for _, v := range []decimal.Decimal{balance, earned, redeemed} {
		if !v.BigInt().IsInt64() {
			return nil, fmt.Errorf("%w: value %s out of range", ErrLegacyTotalsCorrupt, v)
		}
	}

	conv := &AccountConversion{
		Balance:      balance.IntPart(),
		Earned:       earned.IntPart(),
		Redeemed:     redeemed.IntPart(),
		EntryAmounts: make(map[string]int64),
	}
	conv.AccountChanged = !balance.Equal(acc.Balance) ||
		!earned.Equal(acc.LifetimeEarned) ||
		!redeemed.Equal(acc.LifetimeRedeemed)

	var sum int64
	for _, e := range entries {
		floored := e.Amount.Floor()
		if !floored.BigInt().IsInt64() {
			return nil, fmt.Errorf("%w: entry %s amount %s out of range", ErrLegacyTotalsCorrupt, e.EntryID, e.Amount)
		}
		if !floored.Equal(e.Amount) {
			conv.EntryAmounts[e.EntryID] = floored.IntPart()
		}
		sum += floored.IntPart()
	}
	conv.Correction = conv.Balance - sum

	conv.Reason = fmt.Sprintf(
		"Integer migration: balance %s -> %d, lifetime_earned %s -> %d, lifetime_redeemed %s -> %d",
		acc.Balance.String(), conv.Balance,
		acc.LifetimeEarned.String(), conv.Earned,
		acc.LifetimeRedeemed.String(), conv.Redeemed,
	)
	return conv, nil
}

// [自证通过] internal/service/migration_service.go
