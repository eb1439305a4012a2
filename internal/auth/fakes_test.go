package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"citbif/internal/models"
)

var errStoreDown = errors.New("connection refused")

type memSessions struct {
	mu       sync.Mutex
	rows     map[string]*models.Session
	writeErr error
	readErr  error
}

func newMemSessions() *memSessions {
	return &memSessions{rows: map[string]*models.Session{}}
}

func (m *memSessions) CreateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.rows[s.TokenID] = s
	return nil
}

func (m *memSessions) FindActiveSession(_ context.Context, tokenID string, now time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	s, ok := m.rows[tokenID]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, nil
	}
	return s, nil
}

func (m *memSessions) DeleteSession(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[tokenID]; !ok {
		return false, nil
	}
	delete(m.rows, tokenID)
	return true, nil
}

func (m *memSessions) DeleteAccountSessions(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.rows {
		if s.AccountID == accountID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.rows {
		if !s.ExpiresAt.After(now) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memAccounts struct {
	accounts map[string]*models.Account
	profiles map[string]*models.AdminProfile
	err      error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: map[string]*models.Account{}, profiles: map[string]*models.AdminProfile{}}
}

func (m *memAccounts) FindAccountByID(_ context.Context, id string) (*models.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.accounts[id], nil
}

func (m *memAccounts) FindAdminProfileByAccountID(_ context.Context, accountID string) (*models.AdminProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.profiles[accountID], nil
}

func (m *memAccounts) addIndividual(id string) *models.Account {
	a := &models.Account{ID: id, Email: id + "@example.com", Username: id, Role: models.RoleIndividual}
	m.accounts[id] = a
	return a
}

func (m *memAccounts) addAdmin(id string, level models.AdminLevel) (*models.Account, *models.AdminProfile) {
	a := &models.Account{ID: id, Email: id + "@example.com", Username: id, Role: models.RoleAdmin}
	p := models.NewAdminProfile(id, level)
	m.accounts[id] = a
	m.profiles[id] = p
	return a, p
}

func testOptions() Options {
	return Options{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     24 * time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
	}
}

func newTestService(opts Options) (*Service, *memSessions, *memAccounts) {
	sessions, accounts := newMemSessions(), newMemAccounts()
	return NewService(opts, sessions, accounts, nil, zap.NewNop().Sugar()), sessions, accounts
}
