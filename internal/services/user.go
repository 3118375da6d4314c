package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marvinalivio/p4-backend/internal/metrics"
	"github.com/marvinalivio/p4-backend/internal/store"
	"github.com/marvinalivio/p4-backend/types"
	"go.uber.org/zap"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id string, update types.UserUpdate) (types.User, error)
	ListActive(ctx context.Context) ([]types.User, error)
}

// PasswordHasher computes and verifies salted password hashes.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPasswordHash(password, hash string) bool
}

// EventPublisher delivers user lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event types.UserEvent) error
}

// SignupInput carries the fields required to create an account.
type SignupInput struct {
	FirstName string
	LastName  string
	Username  string
	Password  string
}

// UserService encapsulates the account lifecycle: signup, login, section
// updates and soft deletion.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

type UserServiceOption func(*UserService)

// WithEventPublisher publishes an event after every committed mutation.
func WithEventPublisher(publisher EventPublisher) UserServiceOption {
	return func(s *UserService) {
		s.events = publisher
	}
}

func WithLogger(logger *zap.Logger) UserServiceOption {
	return func(s *UserService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewUserService(repo UserRepository, hasher PasswordHasher, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:   repo,
		hasher: hasher,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates an account. The username must not belong to any existing
// record, soft-deleted ones included.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (user types.User, err error) {
	defer s.observe("signup", &err)

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)

	var missing []string
	if in.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if in.LastName == "" {
		missing = append(missing, "last_name")
	}
	if in.Username == "" {
		missing = append(missing, "username")
	}
	if in.Password == "" {
		missing = append(missing, "userPassword")
	}
	if len(missing) > 0 {
		return types.User{}, fmt.Errorf("%w: %s", ErrValidation, strings.Join(missing, ", "))
	}

	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return types.User{}, ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, storeError("check username", err)
	}

	hashed, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("signup: %w", err)
	}

	created := types.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		PasswordHash: hashed,
		Deleted:      false,
	}
	created.Normalize()

	user, err = s.repo.Create(ctx, created)
	if err != nil {
		// A concurrent signup can pass the lookup above; the unique index
		// catches it here.
		if errors.Is(err, store.ErrDuplicateKey) {
			return types.User{}, ErrDuplicateUsername
		}
		return types.User{}, storeError("create user", err)
	}

	s.publish(ctx, types.EventUserCreated, user)
	return user, nil
}

// Login verifies credentials. Unknown and soft-deleted accounts produce the
// same ErrNotFound.
func (s *UserService) Login(ctx context.Context, username, password string) (user types.User, err error) {
	defer s.observe("login", &err)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, ErrMissingCredentials
	}

	user, err = s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, storeError("find user", err)
	}
	if user.Deleted {
		return types.User{}, ErrNotFound
	}

	if !s.hasher.CheckPasswordHash(password, user.PasswordHash) {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateProfile replaces the profile sequence. Each block needs a phone
// number and at most one block is accepted.
func (s *UserService) UpdateProfile(ctx context.Context, id string, profile []types.ProfileBlock) (user types.User, err error) {
	defer s.observe("update_profile", &err)

	if len(profile) > 1 {
		return types.User{}, fmt.Errorf("%w: at most one profile block is allowed", ErrValidation)
	}
	for i := range profile {
		if strings.TrimSpace(profile[i].Phone) == "" {
			return types.User{}, fmt.Errorf("%w: profile.phone", ErrValidation)
		}
	}

	profile = nonNil(profile)
	return s.updateSection(ctx, id, types.EventProfileUpdated, types.UserUpdate{Profile: &profile})
}

// UpdateEducation replaces the education sequence.
func (s *UserService) UpdateEducation(ctx context.Context, id string, education []types.Education) (user types.User, err error) {
	defer s.observe("update_education", &err)

	education = nonNil(education)
	return s.updateSection(ctx, id, types.EventEducationUpdated, types.UserUpdate{Education: &education})
}

// UpdatePortfolio replaces the portfolio sequence.
func (s *UserService) UpdatePortfolio(ctx context.Context, id string, portfolio []types.PortfolioItem) (user types.User, err error) {
	defer s.observe("update_portfolio", &err)

	portfolio = nonNil(portfolio)
	return s.updateSection(ctx, id, types.EventPortfolioUpdated, types.UserUpdate{Portfolio: &portfolio})
}

// UpdateWorkExperience replaces the work experience sequence.
func (s *UserService) UpdateWorkExperience(ctx context.Context, id string, experience []types.WorkExperience) (user types.User, err error) {
	defer s.observe("update_work_experience", &err)

	experience = nonNil(experience)
	return s.updateSection(ctx, id, types.EventWorkExperienceUpdated, types.UserUpdate{WorkExperience: &experience})
}

// UpdateSkills replaces the skills sequence.
func (s *UserService) UpdateSkills(ctx context.Context, id string, skills []types.Skill) (user types.User, err error) {
	defer s.observe("update_skills", &err)

	skills = nonNil(skills)
	return s.updateSection(ctx, id, types.EventSkillsUpdated, types.UserUpdate{Skills: &skills})
}

// SoftDelete flags the account as deleted. Repeating it succeeds.
func (s *UserService) SoftDelete(ctx context.Context, id string) (user types.User, err error) {
	defer s.observe("soft_delete", &err)

	deleted := true
	return s.updateSection(ctx, id, types.EventUserDeleted, types.UserUpdate{Deleted: &deleted})
}

// ListActiveUsers returns every account that is not soft-deleted, in store
// order.
func (s *UserService) ListActiveUsers(ctx context.Context) (users []types.User, err error) {
	defer s.observe("list_active", &err)

	users, err = s.repo.ListActive(ctx)
	if err != nil {
		return nil, storeError("list users", err)
	}
	if users == nil {
		users = []types.User{}
	}
	return users, nil
}

// Get fetches an account by id regardless of its deleted flag.
func (s *UserService) Get(ctx context.Context, id string) (user types.User, err error) {
	defer s.observe("get", &err)

	user, err = s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, storeError("find user", err)
	}
	return user, nil
}

func (s *UserService) updateSection(ctx context.Context, id, eventType string, update types.UserUpdate) (types.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.User{}, ErrNotFound
	}

	user, err := s.repo.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, storeError("update user", err)
	}

	s.publish(ctx, eventType, user)
	return user, nil
}

func (s *UserService) publish(ctx context.Context, eventType string, user types.User) {
	if s.events == nil {
		return
	}

	event := types.UserEvent{
		Type:       eventType,
		UserID:     user.ID,
		Username:   user.Username,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues(eventType, "error").Inc()
		s.logger.Warn("publish user event failed",
			zap.String("event", eventType),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType, "ok").Inc()
}

func (s *UserService) observe(op string, err *error) {
	metrics.UserOperations.WithLabelValues(op, resultLabel(*err)).Inc()
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
