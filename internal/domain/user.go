package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a lookup by id yields no row.
var ErrUserNotFound = errors.New("user not found")

// User is the sole entity managed by the service.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// UserPatch carries a partial update. A nil field means "not provided" and
// leaves the stored value untouched; a non-nil field replaces it, even when
// it points to an empty string.
type UserPatch struct {
	Username *string
	Email    *string
}

// Apply merges the provided fields into u.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
}

// Notification names pushed to real-time subscribers.
const (
	NotifyUserAdded   = "UserAdded"
	NotifyUserFetched = "UserFetched"
	NotifyUserUpdated = "UserUpdated"
	NotifyUserDeleted = "UserDeleted"
)
