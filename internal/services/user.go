package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/todolist-api/apiserver/internal/auth"
	"github.com/todolist-api/apiserver/internal/events"
	"github.com/todolist-api/apiserver/internal/store"
	"github.com/todolist-api/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserInput is the payload for signup and profile replacement.
type UserInput struct {
	Username string
	Email    string
	Password string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	events events.Publisher
}

func NewUserService(repo UserRepository, publisher events.Publisher) *UserService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &UserService{repo: repo, events: publisher}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	offset, limit = clampPage(offset, limit)
	return s.repo.List(ctx, offset, limit)
}

// Create registers a new account. The username is checked before the email
// so a payload colliding on both reports the username.
func (s *UserService) Create(ctx context.Context, in UserInput) (types.User, error) {
	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return types.User{}, ErrUsernameExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check username: %w", err)
	}
	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashed,
	})
	if err != nil {
		// A concurrent signup won the race between the checks and the insert.
		var conflict *store.ConflictError
		if errors.As(err, &conflict) {
			if conflict.Column == "email" {
				return types.User{}, ErrEmailExists
			}
			return types.User{}, ErrUsernameExists
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	publish(ctx, s.events, events.Event{Type: events.UserCreated, UserID: user.ID})
	return user, nil
}

// Update replaces the account identified by id. Only the account owner may
// do so.
func (s *UserService) Update(ctx context.Context, current types.User, id int, in UserInput) (types.User, error) {
	if current.ID != id {
		return types.User{}, ErrForbidden
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	updated, err := s.repo.Update(ctx, types.User{
		ID:           current.ID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrUserConflict
		}
		return types.User{}, err
	}

	publish(ctx, s.events, events.Event{Type: events.UserUpdated, UserID: updated.ID})
	return updated, nil
}

// Delete removes the account identified by id together with its todos.
// Only the account owner may do so.
func (s *UserService) Delete(ctx context.Context, current types.User, id int) error {
	if current.ID != id {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	publish(ctx, s.events, events.Event{Type: events.UserDeleted, UserID: id})
	return nil
}

// dummyHash is compared against when the email is unknown so both login
// failure paths pay for one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	hashed, _ := auth.HashPassword("not-a-real-password")
	return hashed
})

// Authenticate resolves login credentials. The username field of the login
// form carries the email.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.VerifyPassword(password, dummyHash())
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}
