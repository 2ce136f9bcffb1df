package memory

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/store"
	"saledesk/backend/internal/wizard"
	"saledesk/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	sessionsByID    map[string]wizard.State
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory operator accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD; if
// unset, dev defaults are used with a warning. These accounts never exist in
// production, where DATABASE_URL selects the postgres store.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"seller", sellerPwd, domain.RoleSeller},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	return s
}

// New returns an empty store with no operator accounts.
func New() *Store {
	return &Store{
		sessionsByID:    make(map[string]wizard.State),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func (s *Store) CreateSession(_ context.Context, session wizard.State) (*wizard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = xid.New("wiz")
	}
	if strings.TrimSpace(session.Operator) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.sessionsByID[session.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	if s.saleTaken(session.ID, session.Sale.SaleID) {
		return nil, store.ErrConflict
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.UpdatedAt = session.CreatedAt
	session.Version = 1

	stored, err := cloneSession(session)
	if err != nil {
		return nil, err
	}
	s.sessionsByID[session.ID] = stored
	return sessionPtr(cloneSession(stored))
}

func (s *Store) GetSession(_ context.Context, id string) (*wizard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return sessionPtr(cloneSession(session))
}

func (s *Store) FindSessionBySale(_ context.Context, saleID int64) (*wizard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessionsByID {
		if saleID != 0 && session.Sale.SaleID == saleID {
			return sessionPtr(cloneSession(session))
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SaveSession(_ context.Context, session wizard.State) (*wizard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.sessionsByID[session.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if current.Version != session.Version {
		return nil, store.ErrConflict
	}
	if s.saleTaken(session.ID, session.Sale.SaleID) {
		return nil, store.ErrConflict
	}
	session.Version++
	if session.UpdatedAt.IsZero() || session.UpdatedAt.Before(current.UpdatedAt) {
		session.UpdatedAt = time.Now().UTC()
	}

	stored, err := cloneSession(session)
	if err != nil {
		return nil, err
	}
	s.sessionsByID[session.ID] = stored
	return sessionPtr(cloneSession(stored))
}

// saleTaken reports whether a session other than id already holds saleID.
// Callers hold s.mu.
func (s *Store) saleTaken(id string, saleID int64) bool {
	if saleID == 0 {
		return false
	}
	for otherID, existing := range s.sessionsByID {
		if otherID != id && existing.Sale.SaleID == saleID {
			return true
		}
	}
	return false
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessionsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.sessionsByID, id)
	return nil
}

func (s *Store) ListSessions(_ context.Context, operator string, limit int) ([]wizard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]wizard.State, 0, len(s.sessionsByID))
	for _, session := range s.sessionsByID {
		if operator != "" && session.Operator != operator {
			continue
		}
		copied, err := cloneSession(session)
		if err != nil {
			return nil, err
		}
		result = append(result, copied)
	}
	slices.SortFunc(result, func(a, b wizard.State) int {
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.UpdatedAt.After(b.UpdatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidTransaction
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleSeller
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// cloneSession deep-copies through JSON, the same representation the
// postgres store persists, so both stores hand back equivalent values.
func cloneSession(src wizard.State) (wizard.State, error) {
	payload, err := json.Marshal(src)
	if err != nil {
		return wizard.State{}, err
	}
	var out wizard.State
	if err := json.Unmarshal(payload, &out); err != nil {
		return wizard.State{}, err
	}
	return out, nil
}

func sessionPtr(session wizard.State, err error) (*wizard.State, error) {
	if err != nil {
		return nil, err
	}
	return &session, nil
}
