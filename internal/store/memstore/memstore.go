// Package memstore is an in-memory implementation of the user and todo
// repositories. It enforces the same unique, ownership and cascade rules as
// the PostgreSQL schema and is used to exercise services and handlers
// without a database.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/todolist-api/apiserver/internal/store"
	"github.com/todolist-api/apiserver/types"
)

// Store holds users and todos. The zero value is not usable; call New.
type Store struct {
	mu         sync.Mutex
	users      map[int]types.User
	todos      map[int]types.Todo
	nextUserID int
	nextTodoID int
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:      make(map[int]types.User),
		todos:      make(map[int]types.Todo),
		nextUserID: 1,
		nextTodoID: 1,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users returns the user repository view of the store.
func (s *Store) Users() *Users { return &Users{s: s} }

// Todos returns the todo repository view of the store.
func (s *Store) Todos() *Todos { return &Todos{s: s} }

// Users implements services.UserRepository.
type Users struct {
	s *Store
}

func (u *Users) List(_ context.Context, offset, limit int) ([]types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	ids := make([]int, 0, len(u.s.users))
	for id := range u.s.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	users := make([]types.User, 0, len(ids))
	for _, id := range page(ids, offset, limit) {
		users = append(users, u.s.users[id])
	}
	return users, nil
}

func (u *Users) GetByID(_ context.Context, id int) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) GetByUsername(_ context.Context, username string) (types.User, error) {
	return u.find(func(user types.User) bool { return user.Username == username })
}

func (u *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	return u.find(func(user types.User) bool { return user.Email == email })
}

func (u *Users) Create(_ context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if err := u.checkUnique(user); err != nil {
		return types.User{}, err
	}
	now := u.s.now()
	user.ID = u.s.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.nextUserID++
	u.s.users[user.ID] = user
	return user, nil
}

func (u *Users) Update(_ context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	existing, ok := u.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if err := u.checkUnique(user); err != nil {
		return types.User{}, err
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = u.s.now()
	u.s.users[user.ID] = user
	return user, nil
}

func (u *Users) Delete(_ context.Context, id int) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, ok := u.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(u.s.users, id)
	for todoID, todo := range u.s.todos {
		if todo.UserID == id {
			delete(u.s.todos, todoID)
		}
	}
	return nil
}

func (u *Users) find(match func(types.User) bool) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, user := range u.s.users {
		if match(user) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

// checkUnique must be called with the lock held.
func (u *Users) checkUnique(user types.User) error {
	for id, other := range u.s.users {
		if id == user.ID {
			continue
		}
		if other.Username == user.Username {
			return &store.ConflictError{Column: "username"}
		}
		if other.Email == user.Email {
			return &store.ConflictError{Column: "email"}
		}
	}
	return nil
}

// Todos implements services.TodoRepository.
type Todos struct {
	s *Store
}

func (t *Todos) List(_ context.Context, filter types.TodoFilter) ([]types.Todo, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	ids := make([]int, 0, len(t.s.todos))
	for id, todo := range t.s.todos {
		if todo.UserID != filter.UserID {
			continue
		}
		if filter.Title != "" && !strings.Contains(todo.Title, filter.Title) {
			continue
		}
		if filter.Description != "" && !strings.Contains(todo.Description, filter.Description) {
			continue
		}
		if filter.State != "" && todo.State != filter.State {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}
	todos := make([]types.Todo, 0, limit)
	for _, id := range page(ids, filter.Offset, limit) {
		todos = append(todos, t.s.todos[id])
	}
	return todos, nil
}

func (t *Todos) Get(_ context.Context, userID, id int) (types.Todo, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	todo, ok := t.s.todos[id]
	if !ok || todo.UserID != userID {
		return types.Todo{}, store.ErrNotFound
	}
	return todo, nil
}

func (t *Todos) Create(_ context.Context, todo types.Todo) (types.Todo, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	now := t.s.now()
	todo.ID = t.s.nextTodoID
	todo.CreatedAt = now
	todo.UpdatedAt = now
	t.s.nextTodoID++
	t.s.todos[todo.ID] = todo
	return todo, nil
}

func (t *Todos) Update(_ context.Context, todo types.Todo) (types.Todo, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	existing, ok := t.s.todos[todo.ID]
	if !ok || existing.UserID != todo.UserID {
		return types.Todo{}, store.ErrNotFound
	}
	todo.CreatedAt = existing.CreatedAt
	todo.UpdatedAt = t.s.now()
	t.s.todos[todo.ID] = todo
	return todo, nil
}

func (t *Todos) Delete(_ context.Context, userID, id int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	todo, ok := t.s.todos[id]
	if !ok || todo.UserID != userID {
		return store.ErrNotFound
	}
	delete(t.s.todos, id)
	return nil
}

func page(ids []int, offset, limit int) []int {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return ids[offset:end]
}
