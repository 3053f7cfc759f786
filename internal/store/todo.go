package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/todolist-api/apiserver/types"
)

const todoColumns = `id, title, description, state, user_id, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// TodoRepository handles persistence for todos. Every lookup is scoped to
// the owning user, so another user's todo behaves as a missing row.
type TodoRepository struct {
	db *sql.DB
}

func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) List(ctx context.Context, filter types.TodoFilter) ([]types.Todo, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	conditions := []string{"user_id = $1"}
	args := []any{filter.UserID}
	if filter.Title != "" {
		args = append(args, likeEscaper.Replace(filter.Title))
		conditions = append(conditions, fmt.Sprintf("title LIKE '%%' || $%d || '%%'", len(args)))
	}
	if filter.Description != "" {
		args = append(args, likeEscaper.Replace(filter.Description))
		conditions = append(conditions, fmt.Sprintf("description LIKE '%%' || $%d || '%%'", len(args)))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}
	args = append(args, filter.Offset, filter.Limit)

	query := fmt.Sprintf(
		`SELECT %s FROM todos WHERE %s ORDER BY id OFFSET $%d LIMIT $%d`,
		todoColumns,
		strings.Join(conditions, " AND "),
		len(args)-1,
		len(args),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]types.Todo, 0, filter.Limit)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *TodoRepository) Get(ctx context.Context, userID, id int) (types.Todo, error) {
	const query = `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND user_id = $2`
	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Todo{}, ErrNotFound
		}
		return types.Todo{}, err
	}
	return todo, nil
}

func (r *TodoRepository) Create(ctx context.Context, todo types.Todo) (types.Todo, error) {
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	const query = `
		INSERT INTO todos (title, description, state, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		todo.Title,
		todo.Description,
		string(todo.State),
		todo.UserID,
		todo.CreatedAt,
		todo.UpdatedAt,
	).Scan(&todo.ID); err != nil {
		return types.Todo{}, translateError(err)
	}
	return todo, nil
}

// Update writes title, description and state. The owner is part of the
// match condition and is never rewritten.
func (r *TodoRepository) Update(ctx context.Context, todo types.Todo) (types.Todo, error) {
	todo.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE todos
		SET title = $1,
			description = $2,
			state = $3,
			updated_at = $4
		WHERE id = $5 AND user_id = $6
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		todo.Title,
		todo.Description,
		string(todo.State),
		todo.UpdatedAt,
		todo.ID,
		todo.UserID,
	).Scan(&todo.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Todo{}, ErrNotFound
		}
		return types.Todo{}, translateError(err)
	}
	return todo, nil
}

func (r *TodoRepository) Delete(ctx context.Context, userID, id int) error {
	const query = `DELETE FROM todos WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTodo(row rowScanner) (types.Todo, error) {
	var todo types.Todo
	var state string
	err := row.Scan(
		&todo.ID,
		&todo.Title,
		&todo.Description,
		&state,
		&todo.UserID,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	todo.State = types.TodoState(state)
	return todo, err
}
