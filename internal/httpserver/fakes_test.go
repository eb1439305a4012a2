package httpserver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"citbif/internal/auth"
	"citbif/internal/httpserver/handlers"
	"citbif/internal/models"
	"citbif/internal/store"
)

var (
	_ handlers.AccountStore   = (*memStore)(nil)
	_ handlers.ActivityLister = (*memStore)(nil)
	_ auth.SessionStore       = (*memStore)(nil)
)

// memStore keeps copies of every row so handlers cannot mutate stored
// state without going through a save method.
type memStore struct {
	mu         sync.Mutex
	accounts   map[string]models.Account
	profiles   map[string]models.AdminProfile
	adminLog   map[string][]models.AdminActivity
	sessions   map[string]models.Session
	activities []models.ActivityRecord
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]models.Account{},
		profiles: map[string]models.AdminProfile{},
		adminLog: map[string][]models.AdminActivity{},
		sessions: map[string]models.Session{},
	}
}

func (m *memStore) FindAccountByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) AccountExists(_ context.Context, email, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == strings.ToLower(email) || a.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email || existing.Username == a.Username {
			return store.ErrDuplicate
		}
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, accountID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[accountID]
	a.PasswordHash = hash
	m.accounts[accountID] = a
	return nil
}

func (m *memStore) FindAdminProfileByAccountID(_ context.Context, accountID string) (*models.AdminProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[accountID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) PromoteToAdmin(_ context.Context, account *models.Account, profile *models.AdminProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[account.ID]; ok {
		return store.ErrDuplicate
	}
	a := m.accounts[account.ID]
	a.Role = models.RoleAdmin
	m.accounts[account.ID] = a
	m.profiles[account.ID] = *profile
	account.Role = models.RoleAdmin
	return nil
}

// UpdateAdminProfile applies mutate under the store lock, standing in for
// the row lock the gorm store takes.
func (m *memStore) UpdateAdminProfile(_ context.Context, accountID string, mutate func(*models.AdminProfile), _ ...string) (*models.AdminProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[accountID]
	if !ok {
		return nil, nil
	}
	mutate(&p)
	m.profiles[accountID] = p
	return &p, nil
}

func (m *memStore) SaveAdminProfile(_ context.Context, p *models.AdminProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.AccountID] = *p
	return nil
}

func (m *memStore) AppendAdminActivity(_ context.Context, a *models.AdminActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append([]models.AdminActivity{*a}, m.adminLog[a.AdminProfileID]...)
	if len(list) > models.RecentActivityLimit {
		list = list[:models.RecentActivityLimit]
	}
	m.adminLog[a.AdminProfileID] = list
	return nil
}

func (m *memStore) ListAdminActivity(_ context.Context, profileID string) ([]models.AdminActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AdminActivity(nil), m.adminLog[profileID]...), nil
}

func (m *memStore) CreateActivity(_ context.Context, rec *models.ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, *rec)
	return nil
}

func (m *memStore) ListActivity(_ context.Context, f store.ActivityFilter) ([]models.ActivityRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var match []models.ActivityRecord
	for _, rec := range m.activities {
		if f.AccountID != "" && rec.AccountID != f.AccountID {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		match = append(match, rec)
	}
	sort.SliceStable(match, func(i, j int) bool { return match[i].ID > match[j].ID })
	total := int64(len(match))
	if f.Offset >= len(match) {
		return []models.ActivityRecord{}, total, nil
	}
	match = match[f.Offset:]
	if f.Limit > 0 && len(match) > f.Limit {
		match = match[:f.Limit]
	}
	return match, total, nil
}

func (m *memStore) CreateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.TokenID] = *s
	return nil
}

func (m *memStore) FindActiveSession(_ context.Context, tokenID string, now time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tokenID]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) DeleteSession(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[tokenID]; !ok {
		return false, nil
	}
	delete(m.sessions, tokenID)
	return true, nil
}

func (m *memStore) DeleteAccountSessions(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.AccountID == accountID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) sessionCount(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.AccountID == accountID {
			n++
		}
	}
	return n
}

func (m *memStore) profile(accountID string) models.AdminProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[accountID]
}

func (m *memStore) account(id string) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}
