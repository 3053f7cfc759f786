package handlers

import (
	"regexp"
	"strings"

	"github.com/todolist-api/apiserver/internal/auth"
	"github.com/todolist-api/apiserver/types"
)

var emailRegexp = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// validator collects the first problem found per field.
type validator struct {
	errors map[string]string
	order  []string
}

func newValidator() *validator {
	return &validator{errors: make(map[string]string)}
}

func (v *validator) valid() bool {
	return len(v.errors) == 0
}

// message renders the collected problems as "field: problem; ...".
func (v *validator) message() string {
	parts := make([]string, 0, len(v.order))
	for _, key := range v.order {
		parts = append(parts, key+": "+v.errors[key])
	}
	return strings.Join(parts, "; ")
}

func (v *validator) check(cond bool, key, msg string) {
	if cond {
		return
	}
	if _, ok := v.errors[key]; !ok {
		v.errors[key] = msg
		v.order = append(v.order, key)
	}
}

func (v *validator) checkUsername(username string) {
	v.check(strings.TrimSpace(username) != "", "username", "must be provided")
}

func (v *validator) checkEmail(email string) {
	v.check(email != "", "email", "must be provided")
	v.check(emailRegexp.MatchString(email), "email", "must be a valid email address")
}

func (v *validator) checkPassword(password string) {
	v.check(password != "", "password", "must be provided")
	v.check(len(password) <= auth.MaxPasswordBytes, "password", "must be at most 72 bytes long")
}

func (v *validator) checkTitle(title string) {
	v.check(strings.TrimSpace(title) != "", "title", "must be provided")
}

func (v *validator) checkState(state types.TodoState) {
	v.check(state.Valid(), "state", "must be one of todo, doing, done, trash")
}
