package events

import (
	"context"
	"database/sql"

	"github.com/aravindb26/middleware-sub022/pkg/observability"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
	"github.com/aravindb26/middleware-sub022/pkg/storage"
)

// EntityDeleteListener repairs resource permissions when a referenced user
// or group is deleted, and drops cached state when a resource itself is.
type EntityDeleteListener struct {
	store   storage.ResourceStorage
	cache   storage.CacheInvalidator // nil when no cache is layered in
	log     *observability.Logger
	metrics *observability.Metrics
}

var _ Listener = (*EntityDeleteListener)(nil)

// NewEntityDeleteListener creates the listener. cache may be nil.
func NewEntityDeleteListener(store storage.ResourceStorage, cache storage.CacheInvalidator, log *observability.Logger, metrics *observability.Metrics) *EntityDeleteListener {
	return &EntityDeleteListener{store: store, cache: cache, log: log, metrics: metrics}
}

// HandleDeleteEvent runs the cascade repair on the deletion's transaction.
// Every step either fully succeeds or propagates; nothing is swallowed,
// because a half-repaired permission set must roll back together with the
// entity deletion.
func (l *EntityDeleteListener) HandleDeleteEvent(ctx context.Context, tx *sql.Tx, ev DeleteEvent) error {
	switch ev.Kind {
	case KindResource:
		// The resource row and its permission rows are deleted together
		// elsewhere; only the cached copy needs to go.
		if l.cache != nil {
			return l.cache.Invalidate(ctx, ev.ContextID, ev.Entity)
		}
		return nil
	case KindUser, KindGroup:
		return l.repairPermissions(ctx, tx, ev)
	default:
		return nil
	}
}

func (l *EntityDeleteListener) repairPermissions(ctx context.Context, tx *sql.Tx, ev DeleteEvent) error {
	isGroup := ev.Kind == KindGroup

	fallback := ev.DestinationUserID
	if fallback <= 0 {
		fallback = ev.AdminID
	}

	affected, err := l.store.ResourcesWithPermissionsForEntity(ctx, tx, ev.ContextID, ev.Entity, isGroup)
	if err != nil {
		return err
	}

	for _, res := range affected {
		adjusted, removed := removeEntity(res.Permissions, ev.Entity, isGroup)
		if !removed {
			// Already repaired; rerunning the cascade is a no-op.
			continue
		}
		if orphanedAskToBook(adjusted) {
			adjusted = append(adjusted, resource.Permission{
				Entity:    fallback,
				Group:     false,
				Privilege: resource.PrivilegeDelegate,
			})
		}

		if _, err := l.store.DeletePermissions(ctx, tx, ev.ContextID, res.ID); err != nil {
			return err
		}
		if err := l.store.InsertPermissions(ctx, tx, ev.ContextID, res.ID, adjusted); err != nil {
			return err
		}
		if l.cache != nil {
			if err := l.cache.Invalidate(ctx, ev.ContextID, res.ID); err != nil {
				return err
			}
		}

		l.metrics.CascadeRepairsTotal.WithLabelValues(string(ev.Kind)).Inc()
		l.log.Info("repaired resource permissions after entity deletion",
			"event", ev.ID.String(),
			"kind", string(ev.Kind),
			"entity", ev.Entity,
			"context", ev.ContextID,
			"resource", res.ID,
			"remaining_permissions", len(adjusted),
		)
	}
	return nil
}

// removeEntity drops the permission of the given principal, reporting
// whether anything was removed.
func removeEntity(perms []resource.Permission, entity int, group bool) ([]resource.Permission, bool) {
	adjusted := make([]resource.Permission, 0, len(perms))
	removed := false
	for _, p := range perms {
		if p.Entity == entity && p.Group == group {
			removed = true
			continue
		}
		adjusted = append(adjusted, p)
	}
	return adjusted, removed
}

// orphanedAskToBook reports whether the set contains an ask-to-book grant
// but no delegate left to approve requests.
func orphanedAskToBook(perms []resource.Permission) bool {
	hasAsk, hasDelegate := false, false
	for _, p := range perms {
		switch p.Privilege {
		case resource.PrivilegeAskToBook:
			hasAsk = true
		case resource.PrivilegeDelegate:
			hasDelegate = true
		}
	}
	return hasAsk && !hasDelegate
}
