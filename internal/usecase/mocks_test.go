// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/adapter"
	"telegram-ai-generation/internal/domain/ports/repository"
)

// ---- in-memory grant repo ----

type memGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*model.Grant

	ChargeFunc func(ctx context.Context, tx repository.Tx, userID int64, kind model.CreditKind, now time.Time) (int, error)
	RefundFunc func(ctx context.Context, tx repository.Tx, userID int64, kind model.CreditKind) (int, error)
}

func newMemGrantRepo() *memGrantRepo {
	return &memGrantRepo{grants: make(map[string]*model.Grant)}
}

func (m *memGrantRepo) Save(ctx context.Context, tx repository.Tx, g *model.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.grants[g.ID] = &cp
	return nil
}

func (m *memGrantRepo) activeLocked(userID int64) *model.Grant {
	for _, g := range m.grants {
		if g.UserID == userID && g.Status == model.GrantStatusActive {
			return g
		}
	}
	return nil
}

func (m *memGrantRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.activeLocked(userID); g != nil {
		cp := *g
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// Charge mirrors the SQL conditional update: decrement under one lock, or
// fail without side effects.
func (m *memGrantRepo) Charge(ctx context.Context, tx repository.Tx, userID int64, kind model.CreditKind, now time.Time) (int, error) {
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, tx, userID, kind, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.activeLocked(userID)
	if g == nil || !g.ExpiresAt.After(now) {
		return 0, domain.ErrNoCreditsLeft
	}
	switch kind {
	case model.CreditPhoto:
		if g.RemainingPhoto <= 0 {
			return 0, domain.ErrNoCreditsLeft
		}
		g.RemainingPhoto--
		return g.RemainingPhoto, nil
	case model.CreditVideo:
		if g.RemainingVideo <= 0 {
			return 0, domain.ErrNoCreditsLeft
		}
		g.RemainingVideo--
		return g.RemainingVideo, nil
	default:
		return 0, domain.ErrInvalidArgument
	}
}

func (m *memGrantRepo) Refund(ctx context.Context, tx repository.Tx, userID int64, kind model.CreditKind) (int, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, tx, userID, kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.activeLocked(userID)
	if g == nil {
		return 0, domain.ErrNoActiveGrant
	}
	if kind == model.CreditVideo {
		g.RemainingVideo++
		return g.RemainingVideo, nil
	}
	g.RemainingPhoto++
	return g.RemainingPhoto, nil
}

func (m *memGrantRepo) DeactivateByUser(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, g := range m.grants {
		if g.UserID == userID && g.Status == model.GrantStatusActive {
			g.Status = model.GrantStatusInactive
			n++
		}
	}
	return n, nil
}

func (m *memGrantRepo) ListExpiredActive(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Grant
	for _, g := range m.grants {
		if g.Status == model.GrantStatusActive && !g.ExpiresAt.After(now) {
			cp := *g
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memGrantRepo) LockUser(ctx context.Context, tx repository.Tx, userID int64) error {
	return nil
}

// remaining reads counters without going through the use case.
func (m *memGrantRepo) remaining(userID int64, kind model.CreditKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.activeLocked(userID)
	if g == nil {
		return -1
	}
	if kind == model.CreditVideo {
		return g.RemainingVideo
	}
	return g.RemainingPhoto
}

// ---- in-memory plan repo ----

type memPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: make(map[string]*model.Plan)}
}

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.plans[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memPlanRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.plans {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ---- in-memory user repo ----

type memUserRepo struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.TelegramID] = &cp
	return nil
}

func (m *memUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[telegramID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) TouchLastActive(ctx context.Context, tx repository.Tx, telegramID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[telegramID]
	if !ok {
		return domain.ErrNotFound
	}
	u.LastActiveAt = time.Now()
	return nil
}

func (m *memUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// ---- in-memory generation job repo ----

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.GenerationJob

	SaveFunc func(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*model.GenerationJob)}
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) ListNonTerminal(ctx context.Context, tx repository.Tx) ([]*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GenerationJob
	for _, j := range m.jobs {
		if !j.State.Terminal() {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memJobRepo) CountByState(ctx context.Context, tx repository.Tx) (map[model.JobState]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.JobState]int)
	for _, j := range m.jobs {
		out[j.State]++
	}
	return out, nil
}

func (m *memJobRepo) get(id string) *model.GenerationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp
	}
	return nil
}

// ---- in-memory payment repo ----

type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindByTxID(ctx context.Context, tx repository.Tx, txID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.TxID == txID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

// ---- mock transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs the callback immediately with NoTX unless a test overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- mock generation provider ----

type mockProvider struct {
	mu  sync.Mutex
	seq int

	UploadErr   error
	CreateErr   error
	PollErr     error
	DownloadErr error
	// Statuses are returned in order; the last one repeats.
	Statuses []adapter.TaskStatus
	pollIdx  int
}

// script replaces the poll sequence and rewinds it.
func (p *mockProvider) script(statuses ...adapter.TaskStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Statuses = statuses
	p.pollIdx = 0
}

func (p *mockProvider) Name() string { return "mock" }

func (p *mockProvider) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	if p.UploadErr != nil {
		return "", p.UploadErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return fmt.Sprintf("https://example.test/up/%d", p.seq), nil
}

func (p *mockProvider) CreateTask(ctx context.Context, req adapter.GenerationRequest) (string, error) {
	if p.CreateErr != nil {
		return "", p.CreateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return fmt.Sprintf("task-%d", p.seq), nil
}

func (p *mockProvider) PollTask(ctx context.Context, taskID string) (adapter.TaskStatus, error) {
	if p.PollErr != nil {
		return adapter.TaskStatus{}, p.PollErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Statuses) == 0 {
		return adapter.TaskStatus{State: adapter.TaskStateRunning}, nil
	}
	st := p.Statuses[p.pollIdx]
	if p.pollIdx < len(p.Statuses)-1 {
		p.pollIdx++
	}
	return st, nil
}

func (p *mockProvider) Download(ctx context.Context, url string) ([]byte, error) {
	if p.DownloadErr != nil {
		return nil, p.DownloadErr
	}
	return []byte("artifact:" + url), nil
}

// ---- mock delivery sink / file source ----

type mockSink struct {
	mu        sync.Mutex
	Artifacts []adapter.Artifact
	Failures  []string
	Notices   []string
}

func (s *mockSink) DeliverArtifacts(ctx context.Context, chatID int64, artifacts []adapter.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Artifacts = append(s.Artifacts, artifacts...)
	return nil
}

func (s *mockSink) DeliverFailure(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failures = append(s.Failures, text)
	return nil
}

func (s *mockSink) Notify(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notices = append(s.Notices, text)
	return nil
}

func (s *mockSink) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Failures)
}

func (s *mockSink) artifactCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Artifacts)
}

type mockFiles struct{}

func (mockFiles) FetchFile(ctx context.Context, chatID int64, fileID string) ([]byte, error) {
	return []byte("file:" + fileID), nil
}

// ---- mock payment gateway ----

type mockGateway struct {
	mu       sync.Mutex
	seq      int
	statuses map[string]string

	CreateErr error
}

func newMockGateway() *mockGateway {
	return &mockGateway{statuses: make(map[string]string)}
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) CreateTransaction(ctx context.Context, amountRUB int64, description string) (string, string, error) {
	if g.CreateErr != nil {
		return "", "", g.CreateErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	txID := fmt.Sprintf("tx-%d", g.seq)
	g.statuses[txID] = adapter.TxStatusPending
	return txID, "https://example.test/pay/" + txID, nil
}

func (g *mockGateway) TransactionStatus(ctx context.Context, txID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.statuses[txID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return st, nil
}

func (g *mockGateway) setStatus(txID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[txID] = status
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
