package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by DocumentStore.Load for an absent document.
// Callers substitute a default; absence is never fatal.
var ErrNotFound = errors.New("document not found")

// DocumentStore persists whole documents last-write-wins, no partial updates.
type DocumentStore interface {
	Load(ctx context.Context, key string, out any) error
	Save(ctx context.Context, key string, doc any) error
}

// Classifier is the external text-classification oracle. Failures degrade
// to "no intents" / "no command"; output is never trusted as-is.
type Classifier interface {
	ClassifyRegistrations(ctx context.Context, batch []CollectedMessage) ([]Intent, error)
	ClassifyAdminCommand(ctx context.Context, text string, mentionedJIDs []string) (*AdminCommand, error)
}

// Messenger is the outbound side of the messaging-platform connector.
type Messenger interface {
	Send(ctx context.Context, channel, text string, mentions []string) (MessageRef, error)
	DeleteMessage(ctx context.Context, channel string, ref MessageRef) error
	// SetChannelLocked toggles the channel's send restrictions
	// (locked = announcements only).
	SetChannelLocked(ctx context.Context, channel string, locked bool) error
}

// FlushQueue carries flush jobs to the single flush worker, which gives
// every roster mutation an exclusive load-mutate-save round trip.
type FlushQueue interface {
	Enqueue(ctx context.Context, job FlushJob) error
	Pop(ctx context.Context) (FlushJob, error)
}

// Cache is a simple TTL store.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
