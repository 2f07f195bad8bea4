package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/udea/innosistemas/pkg/auth"
)

// ErrDuplicateEmail is returned when a user with the same email already exists
var ErrDuplicateEmail = errors.New("email already registered")

// MemoryUserStore keeps users in memory. Returned users are copies.
type MemoryUserStore struct {
	mu     sync.RWMutex
	byID   map[int64]*auth.User
	nextID int64
	now    func() time.Time
}

// NewMemoryUserStore creates an empty store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:   make(map[int64]*auth.User),
		nextID: 1,
		now:    time.Now,
	}
}

// CreateUser stores a copy of user. A zero ID is assigned the next free id.
func (s *MemoryUserStore) CreateUser(ctx context.Context, user *auth.User) error {
	email := auth.NormalizeEmail(user.Email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !user.Role.Valid() {
		return fmt.Errorf("invalid role %q", user.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.Email == email {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}
	}

	u := *user
	u.Email = email
	if u.ID == 0 {
		u.ID = s.nextID
	}
	if u.ID >= s.nextID {
		s.nextID = u.ID + 1
	}
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	s.byID[u.ID] = &u
	user.ID = u.ID
	return nil
}

// GetByEmail returns the user with email or auth.ErrUserNotFound
func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

// GetByID returns the user with id or auth.ErrUserNotFound
func (s *MemoryUserStore) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// ListByTeam returns the members of teamID ordered by id
func (s *MemoryUserStore) ListByTeam(ctx context.Context, teamID int64) ([]*auth.User, error) {
	return s.filter(func(u *auth.User) bool {
		return u.TeamID != nil && *u.TeamID == teamID
	}), nil
}

// ListByCourse returns the users enrolled in courseID ordered by id
func (s *MemoryUserStore) ListByCourse(ctx context.Context, courseID int64) ([]*auth.User, error) {
	return s.filter(func(u *auth.User) bool {
		return u.CourseID != nil && *u.CourseID == courseID
	}), nil
}

// HealthCheck always succeeds
func (s *MemoryUserStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *MemoryUserStore) filter(keep func(*auth.User) bool) []*auth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*auth.User, 0)
	for _, u := range s.byID {
		if keep(u) {
			c := *u
			users = append(users, &c)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
