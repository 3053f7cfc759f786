package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/todolist-api/apiserver/internal/events"
)

var (
	// ErrUsernameExists is returned by signup when the username is taken.
	ErrUsernameExists = errors.New("username already exists")
	// ErrEmailExists is returned by signup when the email is taken.
	ErrEmailExists = errors.New("email already exists")
	// ErrUserConflict is returned by profile updates that collide with another
	// account. It deliberately does not say which field collided.
	ErrUserConflict = errors.New("username or email already exists")
	// ErrForbidden is returned when an authenticated user acts on someone
	// else's account.
	ErrForbidden = errors.New("not enough permissions")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrExportsDisabled is returned when no object storage is configured.
	ErrExportsDisabled = errors.New("export storage is not configured")
)

func publish(ctx context.Context, publisher events.Publisher, event events.Event) {
	if publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Printf("publish %s event for user %d: %v", event.Type, event.UserID, err)
	}
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}
