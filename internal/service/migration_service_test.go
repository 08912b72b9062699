package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coach-loyalty/backend/config"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
)

func setupTestMigrationService() (MigrationService, *testRepos) {
	repos := newTestRepos()
	_ = repos.options.Set(context.Background(), model.MigrationOptionKey, model.NewMigrationState())
	svc := NewMigrationService(&config.MigrationConfig{BackupPrefix: "backup"}, repos.repo, zap.NewNop())
	return svc, repos
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedLegacy(repos *testRepos) {
	repos.schema.accounts = []repository.LegacyAccount{
		{AccountID: "acc-frac", Balance: dec("10.7"), LifetimeEarned: dec("15.9"), LifetimeRedeemed: dec("5.2")},
		{AccountID: "acc-whole", Balance: dec("20"), LifetimeEarned: dec("20"), LifetimeRedeemed: dec("0")},
	}
	repos.schema.entries["acc-frac"] = []repository.LegacyEntry{
		{EntryID: "e1", Amount: dec("10.5")},
		{EntryID: "e2", Amount: dec("5.4")},
		{EntryID: "e3", Amount: dec("-5.2")},
	}
	repos.schema.entries["acc-whole"] = []repository.LegacyEntry{
		{EntryID: "e4", Amount: dec("20")},
	}
}

func TestConvertLegacyAccount_FloorsAndCorrects(t *testing.T) {
	acc := repository.LegacyAccount{AccountID: "a", Balance: dec("10.7"), LifetimeEarned: dec("15.9"), LifetimeRedeemed: dec("5.2")}
	entries := []repository.LegacyEntry{{EntryID: "e1", Amount: dec("10.5")}, {EntryID: "e2", Amount: dec("5.4")}, {EntryID: "e3", Amount: dec("-5.2")}}

	conv, err := ConvertLegacyAccount(acc, entries)
	if err != nil {
		t.Fatalf("ConvertLegacyAccount 失败: %v", err)
	}
	if conv.Balance != 10 || conv.Earned != 15 || conv.Redeemed != 5 {
		t.Fatalf("取整结果不正确: %+v", conv)
	}
	if conv.Balance != conv.Earned-conv.Redeemed {
		t.Fatal("取整后必须满足 balance = earned - redeemed")
	}
	// ⌊10.5⌋ + ⌊5.4⌋ + ⌊-5.2⌋ = 10 + 5 - 6 = 9
	if conv.EntryAmounts["e3"] != -6 || len(conv.EntryAmounts) != 3 {
		t.Fatalf("流水取整不正确: %v", conv.EntryAmounts)
	}
	if conv.Correction != 1 {
		t.Fatalf("校正额应为 1，实际=%d", conv.Correction)
	}
	if !conv.AccountChanged || !strings.Contains(conv.Reason, "10.7 -> 10") {
		t.Fatalf("账户变化记录不正确: %+v", conv)
	}
}

func TestConvertLegacyAccount_FloorProperty(t *testing.T) {
	balances := []string{"0", "0.01", "0.99", "1", "7.5", "123.456", "99999.9999"}
	extras := []string{"0", "0.3", "1.7", "50.25"}
	for _, b := range balances {
		for _, x := range extras {
			earned := dec(b).Add(dec(x))
			acc := repository.LegacyAccount{AccountID: "p", Balance: dec(b), LifetimeEarned: earned, LifetimeRedeemed: earned.Sub(dec(b))}
			conv, err := ConvertLegacyAccount(acc, nil)
			if err != nil {
				t.Fatalf("balance=%s earned=%s 不应报错: %v", b, earned, err)
			}
			if !decimal.NewFromInt(conv.Balance).Equal(dec(b).Floor()) {
				t.Fatalf("balance'=%d 应等于 ⌊%s⌋", conv.Balance, b)
			}
			if conv.Redeemed < 0 || conv.Balance != conv.Earned-conv.Redeemed {
				t.Fatalf("不变式被破坏: %+v", conv)
			}
		}
	}
}

func TestConvertLegacyAccount_Corrupt(t *testing.T) {
	acc := repository.LegacyAccount{AccountID: "bad", Balance: dec("30"), LifetimeEarned: dec("10"), LifetimeRedeemed: dec("0")}
	if _, err := ConvertLegacyAccount(acc, nil); !errors.Is(err, ErrLegacyTotalsCorrupt) {
		t.Fatalf("余额超过累计获得期望 ErrLegacyTotalsCorrupt，实际: %v", err)
	}
}

func TestMigrationService_StartSuccess(t *testing.T) {
	svc, repos := setupTestMigrationService()
	ctx := context.Background()
	seedLegacy(repos)

	needed, _ := svc.IsMigrationNeeded(ctx)
	if !needed {
		t.Fatal("未迁移时应需要迁移")
	}

	result, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start 失败: %v", err)
	}
	if !result.Success || result.State.Status != string(model.MigrationCompleted) {
		t.Fatalf("迁移应成功: %+v", result)
	}
	if result.State.RecordsConverted != 2 || len(result.State.BackupTableNames) != 2 {
		t.Fatalf("迁移结果不正确: %+v", result.State)
	}
	for _, name := range result.State.BackupTableNames {
		if !strings.HasPrefix(name, "backup_") || !repos.schema.tables[name] {
			t.Fatalf("备份表 %s 不存在或命名不正确", name)
		}
	}
	if !repos.schema.columnsBigint {
		t.Fatal("迁移完成后积分列应转换为整数")
	}

	acc := repos.schema.accounts[0]
	if !acc.Balance.Equal(dec("10")) || !acc.LifetimeRedeemed.Equal(dec("5")) {
		t.Fatalf("账户未取整: %+v", acc)
	}

	corrections := repos.entries.byAccount("acc-frac")
	if len(corrections) != 1 || corrections[0].Kind != model.EntryKindMigrationCorrection || corrections[0].Amount != 1 {
		t.Fatalf("期望一条校正流水 +1: %+v", corrections)
	}
	if len(repos.entries.byAccount("acc-whole")) != 0 {
		t.Fatal("整数账户不应产生校正流水")
	}

	if repos.options.migrationState().Status != model.MigrationCompleted {
		t.Fatal("迁移状态应持久化为 completed")
	}
	needed, _ = svc.IsMigrationNeeded(ctx)
	if needed {
		t.Fatal("完成后不应再需要迁移")
	}

	again, err := svc.Start(ctx)
	if err != nil || !again.Success || len(repos.entries.byAccount("acc-frac")) != 1 {
		t.Fatalf("重复启动应为无操作: %+v err=%v", again, err)
	}
}

func TestMigrationService_RecordErrorsMarkFailed(t *testing.T) {
	svc, repos := setupTestMigrationService()
	ctx := context.Background()
	seedLegacy(repos)
	repos.schema.failAccounts["acc-frac"] = true

	result, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start 不应返回基础设施错误: %v", err)
	}
	if result.Success || result.State.Status != string(model.MigrationFailed) {
		t.Fatalf("存在记录错误时应为 failed: %+v", result)
	}
	if len(result.State.Errors) != 1 || result.State.RecordsConverted != 1 {
		t.Fatalf("错误记录不正确: %+v", result.State)
	}
	if repos.schema.columnsBigint {
		t.Fatal("失败时不应转换积分列")
	}
	backups := result.State.BackupTableNames

	// 修复数据后重试，复用原有备份
	delete(repos.schema.failAccounts, "acc-frac")
	retry, err := svc.Start(ctx)
	if err != nil || !retry.Success {
		t.Fatalf("重试应成功: %+v err=%v", retry, err)
	}
	if strings.Join(retry.State.BackupTableNames, ",") != strings.Join(backups, ",") {
		t.Fatalf("重试应复用备份: %v vs %v", retry.State.BackupTableNames, backups)
	}
	if len(retry.State.Errors) != 0 {
		t.Fatalf("重试成功后错误列表应清空: %v", retry.State.Errors)
	}
}

func TestMigrationService_BackupFailure(t *testing.T) {
	svc, repos := setupTestMigrationService()
	seedLegacy(repos)
	repos.schema.copyErr = errors.New("no space left")

	result, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start 不应返回基础设施错误: %v", err)
	}
	if result.Success || len(result.State.BackupTableNames) != 0 {
		t.Fatalf("备份失败应中止迁移: %+v", result.State)
	}
	if !repos.schema.accounts[0].Balance.Equal(dec("10.7")) {
		t.Fatal("备份失败时不应修改任何数据")
	}
}

func TestMigrationService_InProgress(t *testing.T) {
	svc, repos := setupTestMigrationService()
	running := model.NewMigrationState()
	running.Status = model.MigrationRunning
	_ = repos.options.Set(context.Background(), model.MigrationOptionKey, running)

	result, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start 失败: %v", err)
	}
	if result.Success || result.Message != ErrMigrationInProgress.Error() {
		t.Fatalf("迁移进行中应拒绝: %+v", result)
	}

	rb, _ := svc.Rollback(context.Background())
	if rb.Success || rb.Message != ErrMigrationInProgress.Error() {
		t.Fatalf("迁移进行中回滚应拒绝: %+v", rb)
	}
}

func TestMigrationService_RollbackWithoutBackup(t *testing.T) {
	svc, _ := setupTestMigrationService()

	result, err := svc.Rollback(context.Background())
	if err != nil {
		t.Fatalf("Rollback 失败: %v", err)
	}
	if result.Success || result.Message != ErrMigrationBackupMissing.Error() {
		t.Fatalf("无备份时回滚应失败: %+v", result)
	}
}

func TestMigrationService_RollbackRestores(t *testing.T) {
	svc, repos := setupTestMigrationService()
	ctx := context.Background()
	seedLegacy(repos)

	started, _ := svc.Start(ctx)
	backups := started.State.BackupTableNames

	result, err := svc.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback 失败: %v", err)
	}
	if !result.Success || result.State.Status != string(model.MigrationNotStarted) {
		t.Fatalf("回滚应成功并重置状态: %+v", result)
	}
	if repos.schema.columnsBigint {
		t.Fatal("回滚后积分列应恢复为小数")
	}
	if len(repos.schema.restored) != 2 {
		t.Fatalf("应恢复两张表: %v", repos.schema.restored)
	}
	for _, name := range backups {
		if repos.schema.tables[name] {
			t.Fatalf("回滚后备份表 %s 应被删除", name)
		}
	}
	if st := repos.options.migrationState(); st.Status != model.MigrationNotStarted || st.HasBackup() {
		t.Fatalf("持久化状态应重置: %+v", st)
	}

	again, _ := svc.Rollback(ctx)
	if again.Success {
		t.Fatal("备份已删除，再次回滚应失败")
	}
}

func TestMigrationService_RollbackMissingBackupTable(t *testing.T) {
	svc, repos := setupTestMigrationService()
	ctx := context.Background()
	seedLegacy(repos)

	started, _ := svc.Start(ctx)
	delete(repos.schema.tables, started.State.BackupTableNames[0])

	result, _ := svc.Rollback(ctx)
	if result.Success {
		t.Fatal("备份表缺失时回滚应失败")
	}
	if len(repos.schema.restored) != 0 {
		t.Fatal("备份不完整时不应恢复任何表")
	}
}

func TestMigrationService_RecoverInterrupted(t *testing.T) {
	svc, repos := setupTestMigrationService()
	ctx := context.Background()

	running := model.NewMigrationState()
	running.Status = model.MigrationRunning
	running.BackupTableNames = []string{"backup_points_accounts_20260101000000"}
	_ = repos.options.Set(ctx, model.MigrationOptionKey, running)

	if err := svc.RecoverInterrupted(ctx); err != nil {
		t.Fatalf("RecoverInterrupted 失败: %v", err)
	}
	st := repos.options.migrationState()
	if st.Status != model.MigrationFailed || len(st.Errors) != 1 || !st.HasBackup() {
		t.Fatalf("中断的迁移应标记为 failed 并保留备份: %+v", st)
	}
}

func TestMigrationService_StartIfEmpty(t *testing.T) {
	svc, repos := setupTestMigrationService()
	ctx := context.Background()

	if err := svc.StartIfEmpty(ctx); err != nil {
		t.Fatalf("StartIfEmpty 失败: %v", err)
	}
	if repos.options.migrationState().Status != model.MigrationCompleted {
		t.Fatal("空库应直接完成迁移")
	}

	svc2, repos2 := setupTestMigrationService()
	seedLegacy(repos2)
	if err := svc2.StartIfEmpty(ctx); err != nil {
		t.Fatalf("StartIfEmpty 失败: %v", err)
	}
	if repos2.options.migrationState().Status != model.MigrationNotStarted {
		t.Fatal("存在历史数据时不应自动迁移")
	}
}

func TestBackupSource(t *testing.T) {
	if got := backupSource("backup_points_accounts_20261017120000"); got != "points_accounts" {
		t.Fatalf("期望 points_accounts，实际=%s", got)
	}
	if got := backupSource("backup_ledger_entries_20261017120000"); got != "ledger_entries" {
		t.Fatalf("期望 ledger_entries，实际=%s", got)
	}
	if got := backupSource("random_table"); got != "" {
		t.Fatalf("未知表应返回空，实际=%s", got)
	}
}
