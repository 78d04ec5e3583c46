package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"asha-portal/internal/model"
	"asha-portal/internal/util"
)

// UserStore is an in-memory credential store. It backs tests and the
// development configuration; production runs on the Scylla store.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string // normalized email -> user_id
	now     func() time.Time
}

func NewUserStore(now func() time.Time) *UserStore {
	if now == nil {
		now = time.Now
	}
	return &UserStore{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
		now:     now,
	}
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.Email = util.NormalizeEmail(user.Email)
	if _, exists := s.byEmail[user.Email]; exists {
		return fmt.Errorf("user already exists with email: %s", user.Email)
	}

	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	clone := *user
	s.byID[user.UserID] = &clone
	s.byEmail[user.Email] = user.UserID
	return nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[util.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return cloneUser(s.byID[userID]), nil
}

func (s *UserStore) FindByID(ctx context.Context, userID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.byID[userID]), nil
}

func (s *UserStore) IncrementLoginAttempts(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return 0, fmt.Errorf("user not found: %s", userID)
	}
	user.LoginAttempts++
	user.UpdatedAt = s.now().UTC()
	return user.LoginAttempts, nil
}

func (s *UserStore) ResetLoginAttempts(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	user.LoginAttempts = 0
	user.UpdatedAt = s.now().UTC()
	return nil
}

func (s *UserStore) SetLocked(ctx context.Context, userID string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	user.IsLocked = locked
	user.UpdatedAt = s.now().UTC()
	return nil
}

func (s *UserStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	at = at.UTC()
	user.LastLoginAt = &at
	user.UpdatedAt = s.now().UTC()
	return nil
}

func cloneUser(user *model.User) *model.User {
	if user == nil {
		return nil
	}
	clone := *user
	if user.LastLoginAt != nil {
		at := *user.LastLoginAt
		clone.LastLoginAt = &at
	}
	return &clone
}
