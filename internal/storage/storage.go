package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// Service stores and lists objects in remote object storage.
type Service interface {
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// EventArchive writes consumed events to object storage as
// <prefix>/<event name>/<message id>.json.
type EventArchive struct {
	svc    Service
	bucket string
	prefix string
}

func NewEventArchive(svc Service, bucket, prefix string) *EventArchive {
	return &EventArchive{
		svc:    svc,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (a *EventArchive) Archive(ctx context.Context, eventName, messageID string, payload []byte) error {
	key := a.Key(eventName, messageID)
	if err := a.svc.PutObject(ctx, a.bucket, key, payload, "application/json"); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}

// Key returns the object key for one archived event.
func (a *EventArchive) Key(eventName, messageID string) string {
	return path.Join(a.prefix, eventName, messageID+".json")
}

// List returns archived objects, optionally narrowed to one event name.
func (a *EventArchive) List(ctx context.Context, eventName string) ([]ObjectInfo, error) {
	prefix := a.prefix
	if eventName != "" {
		prefix = path.Join(prefix, eventName)
	}
	if prefix != "" {
		prefix += "/"
	}
	return a.svc.ListObjects(ctx, a.bucket, prefix)
}
