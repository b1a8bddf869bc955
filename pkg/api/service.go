package api

import (
	"context"
	"database/sql"

	"github.com/aravindb26/middleware-sub022/pkg/events"
	"github.com/aravindb26/middleware-sub022/pkg/observability"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
	"github.com/aravindb26/middleware-sub022/pkg/storage"
)

// UseCounter records bookings of resources by users, biasing personalized
// search order.
type UseCounter interface {
	IncrementUseCount(ctx context.Context, contextID, userID, principal int) error
}

// Service orchestrates resource operations: permission validation before
// writes, transaction boundaries around mutations, tombstones for sync
// clients and entity-delete event dispatch.
type Service struct {
	db        *sql.DB
	store     storage.ResourceStorage
	deps      resource.ValidatorDeps
	bus       *events.Bus
	useCounts UseCounter
	log       *observability.Logger
}

// NewService creates a service. useCounts may be nil when use-count
// tracking is disabled.
func NewService(db *sql.DB, store storage.ResourceStorage, deps resource.ValidatorDeps, bus *events.Bus, useCounts UseCounter, log *observability.Logger) *Service {
	return &Service{
		db:        db,
		store:     store,
		deps:      deps,
		bus:       bus,
		useCounts: useCounts,
		log:       log,
	}
}

// Get returns one resource.
func (s *Service) Get(ctx context.Context, contextID, resourceID int) (*resource.Resource, error) {
	return s.store.GetResource(ctx, contextID, resourceID)
}

// GetByName returns the resource with the given name, or nil.
func (s *Service) GetByName(ctx context.Context, contextID int, name string) (*resource.Resource, error) {
	return s.store.GetByName(ctx, contextID, name)
}

// List returns all resources of the context.
func (s *Service) List(ctx context.Context, contextID int) ([]*resource.Resource, error) {
	return s.store.SearchResources(ctx, contextID, "*")
}

// Search matches the wildcard pattern against name and display name. A
// positive userID orders results by that user's booking use counts.
func (s *Service) Search(ctx context.Context, contextID int, pattern string, userID int) ([]*resource.Resource, error) {
	if userID > 0 {
		return s.store.SearchResourcesForUser(ctx, contextID, pattern, userID)
	}
	return s.store.SearchResources(ctx, contextID, pattern)
}

// SearchByMail matches the wildcard pattern against mail addresses.
func (s *Service) SearchByMail(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error) {
	return s.store.SearchResourcesByMail(ctx, contextID, pattern)
}

// SearchByPrivilege returns the resources on which any of the entities
// holds the privilege, explicitly or through the implicit defaults.
func (s *Service) SearchByPrivilege(ctx context.Context, contextID int, entities []int, privilege resource.SchedulingPrivilege) ([]*resource.Resource, error) {
	return s.store.SearchResourcesByPrivilege(ctx, contextID, entities, privilege)
}

// ListModified returns resources changed after the timestamp.
func (s *Service) ListModified(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error) {
	return s.store.ListModified(ctx, contextID, since)
}

// ListDeleted returns tombstones of resources deleted after the timestamp.
func (s *Service) ListDeleted(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error) {
	return s.store.ListDeleted(ctx, contextID, since)
}

// Create validates the permission set and inserts the resource.
func (s *Service) Create(ctx context.Context, contextID int, res *resource.Resource) error {
	if err := resource.ValidatePermissions(ctx, s.deps, contextID, res.Permissions); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.store.InsertResource(ctx, tx, contextID, res, storage.TypeActive)
	})
}

// Update validates the permission set and replaces the resource fields and
// its whole permission set.
func (s *Service) Update(ctx context.Context, contextID int, res *resource.Resource) error {
	if err := resource.ValidatePermissions(ctx, s.deps, contextID, res.Permissions); err != nil {
		return err
	}
	// Existence check up front so a missing id surfaces as not-found
	// instead of a silent zero-row update.
	if _, err := s.store.GetResource(ctx, contextID, res.ID); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.store.UpdateResource(ctx, tx, contextID, res)
	})
}

// Delete removes the resource, writes its tombstone for sync clients and
// dispatches a resource-deleted event.
func (s *Service) Delete(ctx context.Context, contextID, resourceID int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.store.GetResourceWith(ctx, tx, contextID, resourceID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteResourceByID(ctx, tx, contextID, resourceID); err != nil {
			return err
		}
		tombstone := res.Clone()
		if err := s.store.InsertResource(ctx, tx, contextID, tombstone, storage.TypeDeleted); err != nil {
			return err
		}
		return s.bus.Publish(ctx, tx, events.NewDeleteEvent(events.KindResource, contextID, resourceID, 0, 0))
	})
}

// EntityDeleted runs the delete cascade for a removed user or group,
// repairing permission sets that referenced it.
func (s *Service) EntityDeleted(ctx context.Context, ev events.DeleteEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.bus.Publish(ctx, tx, ev)
	})
}

// RecordUse counts one booking of the resource by the user.
func (s *Service) RecordUse(ctx context.Context, contextID, userID, resourceID int) error {
	if s.useCounts == nil {
		return nil
	}
	if _, err := s.store.GetResource(ctx, contextID, resourceID); err != nil {
		return err
	}
	return s.useCounts.IncrementUseCount(ctx, contextID, userID, resourceID)
}

// GetGroup returns one resource group.
func (s *Service) GetGroup(ctx context.Context, contextID, groupID int) (*resource.Group, error) {
	return s.store.GetGroup(ctx, contextID, groupID)
}

// ListGroups returns all resource groups of the context.
func (s *Service) ListGroups(ctx context.Context, contextID int) ([]*resource.Group, error) {
	return s.store.GetGroups(ctx, contextID)
}

// SearchGroups matches the wildcard pattern against group identifiers.
func (s *Service) SearchGroups(ctx context.Context, contextID int, pattern string) ([]*resource.Group, error) {
	return s.store.SearchGroups(ctx, contextID, pattern)
}

func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return resource.WrapStorage("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("transaction rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return resource.WrapStorage("commit transaction", err)
	}
	return nil
}
