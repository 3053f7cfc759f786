package types

import "time"

// TodoState is the lifecycle label of a todo. Any state may follow any other.
type TodoState string

const (
	TodoStateTodo  TodoState = "todo"
	TodoStateDoing TodoState = "doing"
	TodoStateDone  TodoState = "done"
	TodoStateTrash TodoState = "trash"
)

// TodoStates lists every valid state in display order.
var TodoStates = []TodoState{TodoStateTodo, TodoStateDoing, TodoStateDone, TodoStateTrash}

// Valid reports whether s is one of the known states.
func (s TodoState) Valid() bool {
	switch s {
	case TodoStateTodo, TodoStateDoing, TodoStateDone, TodoStateTrash:
		return true
	default:
		return false
	}
}

// Todo is a task owned by exactly one user.
type Todo struct {
	// ID is the unique identifier of the todo.
	ID int `json:"id" db:"id"`

	// Title is the short name of the task.
	Title string `json:"title" db:"title"`

	// Description holds free-form details about the task.
	Description string `json:"description" db:"description"`

	// State is the current lifecycle label of the task.
	State TodoState `json:"state" db:"state"`

	// UserID identifies the owner. It never changes after creation and is
	// not part of the API representation.
	UserID int `json:"-" db:"user_id"`

	// CreatedAt is the timestamp when the todo was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the todo.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TodoFilter narrows a todo listing. Empty fields do not filter.
// All set fields must match.
type TodoFilter struct {
	// UserID scopes the listing to a single owner.
	UserID int

	// Title matches todos whose title contains the value.
	Title string

	// Description matches todos whose description contains the value.
	Description string

	// State matches todos in exactly this state.
	State TodoState

	Offset int
	Limit  int
}

// TodoPatch carries a partial update. Nil fields keep their stored value.
type TodoPatch struct {
	Title       *string
	Description *string
	State       *TodoState
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.State == nil
}

// Apply returns todo with the patch fields merged in.
func (p TodoPatch) Apply(todo Todo) Todo {
	if p.Title != nil {
		todo.Title = *p.Title
	}
	if p.Description != nil {
		todo.Description = *p.Description
	}
	if p.State != nil {
		todo.State = *p.State
	}
	return todo
}
