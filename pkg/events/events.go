package events

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Kind discriminates what sort of entity was deleted.
type Kind string

const (
	KindUser     Kind = "user"
	KindGroup    Kind = "group"
	KindResource Kind = "resource"
)

// DeleteEvent describes the deletion of one entity within a context.
type DeleteEvent struct {
	// ID identifies the event for logging and tracing.
	ID uuid.UUID

	Kind      Kind
	ContextID int

	// Entity is the id of the deleted user, group or resource.
	Entity int

	// DestinationUserID optionally names the user inheriting the deleted
	// entity's obligations. Zero means "use the context administrator".
	DestinationUserID int

	// AdminID is the context's mail administrator, the fallback delegate
	// of last resort.
	AdminID int
}

// NewDeleteEvent creates a delete event with a fresh id.
func NewDeleteEvent(kind Kind, contextID, entity, destinationUserID, adminID int) DeleteEvent {
	return DeleteEvent{
		ID:                uuid.New(),
		Kind:              kind,
		ContextID:         contextID,
		Entity:            entity,
		DestinationUserID: destinationUserID,
		AdminID:           adminID,
	}
}

// Listener reacts to a delete event. The transaction is the one wrapping
// the entity deletion; listeners must not commit or roll it back.
type Listener interface {
	HandleDeleteEvent(ctx context.Context, tx *sql.Tx, ev DeleteEvent) error
}

// Bus dispatches delete events synchronously to its subscribers, in
// subscription order. The first failing listener aborts the dispatch; the
// caller is expected to roll back the surrounding transaction.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(ctx context.Context, tx *sql.Tx, ev DeleteEvent) error {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		if err := l.HandleDeleteEvent(ctx, tx, ev); err != nil {
			return fmt.Errorf("delete event %s (%s %d in context %d): %w", ev.ID, ev.Kind, ev.Entity, ev.ContextID, err)
		}
	}
	return nil
}
