//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../mocks/mock_ports.go -package=mocks
package service

import (
	"context"

	"user-api/internal/domain"
)

// Notifier pushes a named message to every currently connected real-time client.
type Notifier interface {
	Broadcast(ctx context.Context, name string, payload any) error
}

// Publisher hands a domain event to the message broker.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
