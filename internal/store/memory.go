package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marvinalivio/p4-backend/types"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// username uniqueness as the persistent backends and preserves insertion
// order for listings.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]types.User
	order []string
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]types.User),
		now:   time.Now,
	}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user.Clone(), nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if user := r.users[id]; user.Username == username {
			return user.Clone(), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		if r.users[id].Username == user.Username {
			return types.User{}, ErrDuplicateKey
		}
	}

	now := r.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	user = user.Clone()

	r.users[user.ID] = user
	r.order = append(r.order, user.ID)
	return user.Clone(), nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, id string, update types.UserUpdate) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if update.IsEmpty() {
		return user.Clone(), nil
	}

	if update.Profile != nil {
		user.Profile = append([]types.ProfileBlock(nil), (*update.Profile)...)
	}
	if update.Education != nil {
		user.Education = append([]types.Education(nil), (*update.Education)...)
	}
	if update.WorkExperience != nil {
		user.WorkExperience = append([]types.WorkExperience(nil), (*update.WorkExperience)...)
	}
	if update.Skills != nil {
		user.Skills = append([]types.Skill(nil), (*update.Skills)...)
	}
	if update.Portfolio != nil {
		user.Portfolio = append([]types.PortfolioItem(nil), (*update.Portfolio)...)
	}
	if update.Deleted != nil {
		user.Deleted = *update.Deleted
	}
	user.UpdatedAt = r.now()
	user.Normalize()

	r.users[id] = user
	return user.Clone(), nil
}

func (r *MemoryUserRepository) ListActive(ctx context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]types.User, 0, len(r.order))
	for _, id := range r.order {
		user := r.users[id]
		if user.Deleted {
			continue
		}
		users = append(users, user.Clone())
	}
	return users, nil
}

// Ping always succeeds.
func (r *MemoryUserRepository) Ping(ctx context.Context) error {
	return nil
}
