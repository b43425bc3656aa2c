package domain

import "github.com/google/uuid"

// Event is a domain event emitted after a user operation. Implementations are
// flat value types and are never mutated after construction.
type Event interface {
	EventName() string
}

// Event names double as broker topics.
const (
	EventUserCreated = "user.created"
	EventUserFetched = "user.fetched"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// UserCreated is emitted after a user row is inserted.
type UserCreated struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func (UserCreated) EventName() string { return EventUserCreated }

// UserFetched is emitted after a user is read by id.
type UserFetched struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func (UserFetched) EventName() string { return EventUserFetched }

// UserUpdated is emitted after a partial update is persisted.
type UserUpdated struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func (UserUpdated) EventName() string { return EventUserUpdated }

// UserDeleted is emitted after a user row is removed and carries its last known values.
type UserDeleted struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func (UserDeleted) EventName() string { return EventUserDeleted }

// EventNames lists every event name in a stable order.
var EventNames = []string{
	EventUserCreated,
	EventUserFetched,
	EventUserUpdated,
	EventUserDeleted,
}
