package services

import (
	"context"

	"github.com/todolist-api/apiserver/internal/events"
	"github.com/todolist-api/apiserver/types"
)

// TodoRepository defines persistence operations for todos. Every method
// that takes a userID treats todos of other users as missing.
type TodoRepository interface {
	List(ctx context.Context, filter types.TodoFilter) ([]types.Todo, error)
	Get(ctx context.Context, userID, id int) (types.Todo, error)
	Create(ctx context.Context, todo types.Todo) (types.Todo, error)
	Update(ctx context.Context, todo types.Todo) (types.Todo, error)
	Delete(ctx context.Context, userID, id int) error
}

// TodoService encapsulates todo use-cases for the authenticated owner.
type TodoService struct {
	repo   TodoRepository
	events events.Publisher
}

func NewTodoService(repo TodoRepository, publisher events.Publisher) *TodoService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &TodoService{repo: repo, events: publisher}
}

func (s *TodoService) Create(ctx context.Context, owner types.User, todo types.Todo) (types.Todo, error) {
	todo.ID = 0
	todo.UserID = owner.ID
	created, err := s.repo.Create(ctx, todo)
	if err != nil {
		return types.Todo{}, err
	}

	publish(ctx, s.events, events.Event{Type: events.TodoCreated, UserID: owner.ID, TodoID: created.ID})
	return created, nil
}

// List returns the owner's todos matching filter. The owner always
// overrides filter.UserID.
func (s *TodoService) List(ctx context.Context, owner types.User, filter types.TodoFilter) ([]types.Todo, error) {
	filter.UserID = owner.ID
	filter.Offset, filter.Limit = clampPage(filter.Offset, filter.Limit)
	return s.repo.List(ctx, filter)
}

// Patch applies the fields present in patch. An empty patch returns the
// stored todo untouched.
func (s *TodoService) Patch(ctx context.Context, owner types.User, id int, patch types.TodoPatch) (types.Todo, error) {
	existing, err := s.repo.Get(ctx, owner.ID, id)
	if err != nil {
		return types.Todo{}, err
	}
	if patch.Empty() {
		return existing, nil
	}

	updated, err := s.repo.Update(ctx, patch.Apply(existing))
	if err != nil {
		return types.Todo{}, err
	}

	publish(ctx, s.events, events.Event{Type: events.TodoUpdated, UserID: owner.ID, TodoID: updated.ID})
	return updated, nil
}

func (s *TodoService) Delete(ctx context.Context, owner types.User, id int) error {
	if err := s.repo.Delete(ctx, owner.ID, id); err != nil {
		return err
	}

	publish(ctx, s.events, events.Event{Type: events.TodoDeleted, UserID: owner.ID, TodoID: id})
	return nil
}
