package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
	pkgerrors "coach-loyalty/backend/pkg/errors"
)

// ── Mock PointsAccountRepository ──

type mockPointsAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.PointsAccount
}

func newMockPointsAccountRepo() *mockPointsAccountRepo {
	return &mockPointsAccountRepo{accounts: make(map[string]*model.PointsAccount)}
}

func (m *mockPointsAccountRepo) GetByID(_ context.Context, accountID string) (*model.PointsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[accountID]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPointsAccountRepo) LockOrCreate(_ context.Context, accountID string) (*model.PointsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[accountID]
	if !ok {
		now := time.Now()
		acc = &model.PointsAccount{AccountID: accountID, Version: 1, Timestamps: model.Timestamps{CreatedAt: now, UpdatedAt: now}}
		m.accounts[accountID] = acc
	}
	cp := *acc
	return &cp, nil
}

func (m *mockPointsAccountRepo) UpdateTotals(_ context.Context, account *model.PointsAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[account.AccountID]
	if !ok || stored.Version != account.Version {
		return pkgerrors.ErrOptimisticLock
	}
	account.Version++
	account.UpdatedAt = time.Now()
	cp := *account
	m.accounts[account.AccountID] = &cp
	return nil
}

// ── Mock LedgerEntryRepository ──

type mockLedgerEntryRepo struct {
	mu      sync.Mutex
	entries []model.LedgerEntry
}

func newMockLedgerEntryRepo() *mockLedgerEntryRepo {
	return &mockLedgerEntryRepo{}
}

func (m *mockLedgerEntryRepo) Create(_ context.Context, entry *model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockLedgerEntryRepo) ListByAccount(_ context.Context, accountID string, offset, limit int) ([]model.LedgerEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].AccountID == accountID {
			matched = append(matched, m.entries[i])
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.LedgerEntry{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockLedgerEntryRepo) ExistsForOrder(_ context.Context, accountID, orderID string, kind model.EntryKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.AccountID == accountID && e.Kind == kind && e.OrderID != nil && *e.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

// byAccount 按写入顺序返回账户流水
func (m *mockLedgerEntryRepo) byAccount(accountID string) []model.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result
}

// ── Mock ReferralCodeRepository ──

type mockReferralCodeRepo struct {
	codes map[string]*model.ReferralCode
}

func newMockReferralCodeRepo() *mockReferralCodeRepo {
	return &mockReferralCodeRepo{codes: make(map[string]*model.ReferralCode)}
}

func (m *mockReferralCodeRepo) Create(_ context.Context, code *model.ReferralCode) error {
	if _, ok := m.codes[code.Code]; ok {
		return gorm.ErrDuplicatedKey
	}
	for _, c := range m.codes {
		if c.OwnerID == code.OwnerID {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *code
	m.codes[code.Code] = &cp
	return nil
}

func (m *mockReferralCodeRepo) GetByCode(_ context.Context, code string) (*model.ReferralCode, error) {
	if c, ok := m.codes[code]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferralCodeRepo) GetByOwner(_ context.Context, ownerID string) (*model.ReferralCode, error) {
	for _, c := range m.codes {
		if c.OwnerID == ownerID {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferralCodeRepo) ListByKind(_ context.Context, kind model.AccountKind) ([]model.ReferralCode, error) {
	var result []model.ReferralCode
	for _, c := range m.codes {
		if c.OwnerKind == kind {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

// ── Mock CoachCustomerRepository ──

type mockCoachCustomerRepo struct {
	links map[string]*model.CoachCustomer
}

func newMockCoachCustomerRepo() *mockCoachCustomerRepo {
	return &mockCoachCustomerRepo{links: make(map[string]*model.CoachCustomer)}
}

func (m *mockCoachCustomerRepo) GetByCustomer(_ context.Context, customerID string) (*model.CoachCustomer, error) {
	if l, ok := m.links[customerID]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCoachCustomerRepo) CreateIfAbsent(_ context.Context, link *model.CoachCustomer) (bool, error) {
	if _, ok := m.links[link.CustomerID]; ok {
		return false, nil
	}
	cp := *link
	m.links[link.CustomerID] = &cp
	return true, nil
}

func (m *mockCoachCustomerRepo) CountByCoach(_ context.Context, coachID string) (int64, error) {
	var n int64
	for _, l := range m.links {
		if l.CoachID == coachID {
			n++
		}
	}
	return n, nil
}

func (m *mockCoachCustomerRepo) CountByCoaches(ctx context.Context, coachIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(coachIDs))
	for _, id := range coachIDs {
		n, _ := m.CountByCoach(ctx, id)
		if n > 0 {
			result[id] = n
		}
	}
	return result, nil
}

// ── Mock CommissionRepository ──

type mockCommissionRepo struct {
	records map[string]*model.CommissionRecord
}

func newMockCommissionRepo() *mockCommissionRepo {
	return &mockCommissionRepo{records: make(map[string]*model.CommissionRecord)}
}

func (m *mockCommissionRepo) CreateIfAbsent(_ context.Context, rec *model.CommissionRecord) (bool, error) {
	if _, ok := m.records[rec.OrderID]; ok {
		return false, nil
	}
	cp := *rec
	m.records[rec.OrderID] = &cp
	return true, nil
}

func (m *mockCommissionRepo) GetByOrder(_ context.Context, orderID string) (*model.CommissionRecord, error) {
	if r, ok := m.records[orderID]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCommissionRepo) TotalsByCoach(_ context.Context, coachID string) (*model.CommissionTotals, error) {
	totals := &model.CommissionTotals{CoachID: coachID}
	for _, r := range m.records {
		if r.CoachID == coachID {
			totals.OrderCount++
			totals.Total = totals.Total.Add(r.Amount)
		}
	}
	return totals, nil
}

func (m *mockCommissionRepo) TotalsByCoaches(ctx context.Context, coachIDs []string) (map[string]model.CommissionTotals, error) {
	result := make(map[string]model.CommissionTotals, len(coachIDs))
	for _, id := range coachIDs {
		t, _ := m.TotalsByCoach(ctx, id)
		if t.OrderCount > 0 {
			result[id] = *t
		}
	}
	return result, nil
}

// ── Mock EligibilityRepository ──

type mockEligibilityRepo struct {
	records map[string]*model.EligibilityRecord
	// raw 模拟数据库中的原始 JSON，非空时 Get 走严格解析
	raw map[string][]byte
}

func newMockEligibilityRepo() *mockEligibilityRepo {
	return &mockEligibilityRepo{
		records: make(map[string]*model.EligibilityRecord),
		raw:     make(map[string][]byte),
	}
}

func (m *mockEligibilityRepo) Get(_ context.Context, coachID string) (*model.EligibilityRecord, error) {
	if raw, ok := m.raw[coachID]; ok {
		overrides, err := model.ParseOverrides(raw)
		if err != nil {
			return nil, err
		}
		return &model.EligibilityRecord{CoachID: coachID, Eligible: true, Reason: model.ReasonNoHistory, Overrides: overrides}, nil
	}
	if r, ok := m.records[coachID]; ok {
		return cloneRecord(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEligibilityRepo) GetForUpdate(ctx context.Context, coachID string) (*model.EligibilityRecord, error) {
	return m.Get(ctx, coachID)
}

func (m *mockEligibilityRepo) Save(_ context.Context, rec *model.EligibilityRecord) error {
	m.records[rec.CoachID] = cloneRecord(rec)
	return nil
}

func (m *mockEligibilityRepo) ListByCoaches(ctx context.Context, coachIDs []string) (map[string]*model.EligibilityRecord, error) {
	result := make(map[string]*model.EligibilityRecord)
	for _, id := range coachIDs {
		if r, err := m.Get(ctx, id); err == nil {
			result[id] = r
		}
	}
	return result, nil
}

func cloneRecord(r *model.EligibilityRecord) *model.EligibilityRecord {
	cp := *r
	cp.Overrides = append([]model.OverrideEntry(nil), r.Overrides...)
	return &cp
}

// ── Mock OptionRepository ──

type mockOptionRepo struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMockOptionRepo() *mockOptionRepo {
	return &mockOptionRepo{values: make(map[string][]byte)}
}

func (m *mockOptionRepo) Get(_ context.Context, name string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[name]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockOptionRepo) GetForUpdate(ctx context.Context, name string, dest interface{}) error {
	return m.Get(ctx, name, dest)
}

func (m *mockOptionRepo) Set(_ context.Context, name string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = raw
	return nil
}

func (m *mockOptionRepo) SetIfAbsent(ctx context.Context, name string, value interface{}) error {
	m.mu.Lock()
	_, ok := m.values[name]
	m.mu.Unlock()
	if ok {
		return nil
	}
	return m.Set(ctx, name, value)
}

func (m *mockOptionRepo) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
	return nil
}

func (m *mockOptionRepo) migrationState() model.MigrationState {
	var state model.MigrationState
	_ = m.Get(context.Background(), model.MigrationOptionKey, &state)
	return state
}

// ── Mock PointsSchemaRepository ──

type mockPointsSchemaRepo struct {
	tables        map[string]bool
	accounts      []repository.LegacyAccount
	entries       map[string][]repository.LegacyEntry
	failAccounts  map[string]bool
	copyErr       error
	columnsBigint bool
	restored      []string
}

func newMockPointsSchemaRepo() *mockPointsSchemaRepo {
	return &mockPointsSchemaRepo{
		tables:       map[string]bool{"points_accounts": true, "ledger_entries": true},
		entries:      make(map[string][]repository.LegacyEntry),
		failAccounts: make(map[string]bool),
	}
}

func (m *mockPointsSchemaRepo) TableExists(_ context.Context, table string) (bool, error) {
	return m.tables[table], nil
}

func (m *mockPointsSchemaRepo) CopyTable(_ context.Context, source, target string) error {
	if m.copyErr != nil {
		return m.copyErr
	}
	if !m.tables[source] {
		return errors.New("source table missing")
	}
	m.tables[target] = true
	return nil
}

func (m *mockPointsSchemaRepo) DropTable(_ context.Context, table string) error {
	delete(m.tables, table)
	return nil
}

func (m *mockPointsSchemaRepo) ListLegacyAccounts(_ context.Context) ([]repository.LegacyAccount, error) {
	return append([]repository.LegacyAccount(nil), m.accounts...), nil
}

func (m *mockPointsSchemaRepo) ListLegacyEntries(_ context.Context, accountID string) ([]repository.LegacyEntry, error) {
	if m.failAccounts[accountID] {
		return nil, errors.New("disk on fire")
	}
	return append([]repository.LegacyEntry(nil), m.entries[accountID]...), nil
}

func (m *mockPointsSchemaRepo) UpdateEntryAmount(_ context.Context, entryID string, amount int64) error {
	for accountID, list := range m.entries {
		for i := range list {
			if list[i].EntryID == entryID {
				m.entries[accountID][i].Amount = decimal.NewFromInt(amount)
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockPointsSchemaRepo) UpdateAccountTotals(_ context.Context, accountID string, balance, earned, redeemed int64) error {
	for i := range m.accounts {
		if m.accounts[i].AccountID == accountID {
			m.accounts[i].Balance = decimal.NewFromInt(balance)
			m.accounts[i].LifetimeEarned = decimal.NewFromInt(earned)
			m.accounts[i].LifetimeRedeemed = decimal.NewFromInt(redeemed)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockPointsSchemaRepo) ConvertColumnsToInteger(_ context.Context) error {
	m.columnsBigint = true
	return nil
}

func (m *mockPointsSchemaRepo) RestoreColumnsToNumeric(_ context.Context) error {
	m.columnsBigint = false
	return nil
}

func (m *mockPointsSchemaRepo) ReplaceContents(_ context.Context, table, backup string) error {
	if !m.tables[backup] {
		return errors.New("backup missing")
	}
	m.restored = append(m.restored, table+"<-"+backup)
	return nil
}

// ── Mock APIClientRepository ──

type mockAPIClientRepo struct {
	clients map[string]*model.APIClient
}

func newMockAPIClientRepo() *mockAPIClientRepo {
	return &mockAPIClientRepo{clients: make(map[string]*model.APIClient)}
}

func (m *mockAPIClientRepo) GetByID(_ context.Context, clientID string) (*model.APIClient, error) {
	if c, ok := m.clients[clientID]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAPIClientRepo) Create(_ context.Context, client *model.APIClient) error {
	if _, ok := m.clients[client.ClientID]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.clients[client.ClientID] = client
	return nil
}

// ── 测试仓库聚合 ──

type testRepos struct {
	repo        *repository.Repository
	accounts    *mockPointsAccountRepo
	entries     *mockLedgerEntryRepo
	codes       *mockReferralCodeRepo
	links       *mockCoachCustomerRepo
	commissions *mockCommissionRepo
	eligibility *mockEligibilityRepo
	options     *mockOptionRepo
	schema      *mockPointsSchemaRepo
	clients     *mockAPIClientRepo
	sessions    repository.CartSessionRepository
}

// newTestRepos 组装 mock 仓库；积分迁移默认已完成
func newTestRepos() *testRepos {
	r := &testRepos{
		accounts:    newMockPointsAccountRepo(),
		entries:     newMockLedgerEntryRepo(),
		codes:       newMockReferralCodeRepo(),
		links:       newMockCoachCustomerRepo(),
		commissions: newMockCommissionRepo(),
		eligibility: newMockEligibilityRepo(),
		options:     newMockOptionRepo(),
		schema:      newMockPointsSchemaRepo(),
		clients:     newMockAPIClientRepo(),
		sessions:    repository.NewCartSessionRepo(repository.NewMemoryHashStore(), time.Hour),
	}
	r.repo = &repository.Repository{
		PointsAccount: r.accounts,
		LedgerEntry:   r.entries,
		ReferralCode:  r.codes,
		CoachCustomer: r.links,
		Commission:    r.commissions,
		Eligibility:   r.eligibility,
		Option:        r.options,
		PointsSchema:  r.schema,
		APIClient:     r.clients,
		CartSession:   r.sessions,
	}

	completed := model.NewMigrationState()
	completed.Status = model.MigrationCompleted
	_ = r.options.Set(context.Background(), model.MigrationOptionKey, completed)
	return r
}
