package storage

import (
	"context"
	"database/sql"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

// Querier is the subset of database/sql operations shared by *sql.DB,
// *sql.Conn and *sql.Tx. Store mutations take one so the caller owns the
// transaction boundary.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Type selects between the active table and the tombstone table when
// inserting resources.
type Type int

const (
	// TypeActive writes to the live resource table.
	TypeActive Type = iota
	// TypeDeleted writes to the tombstone table kept for sync clients.
	TypeDeleted
)

// ResourceStorage is the read/write contract for resources and resource
// groups, scoped by context identifier. The caching decorator implements
// the same interface.
type ResourceStorage interface {
	// GetResource fetches exactly one resource. It fails with a
	// NotFoundError if no row matches and with a ConflictError if more
	// than one does.
	GetResource(ctx context.Context, contextID, resourceID int) (*resource.Resource, error)

	// GetResourceWith is the querier-scoped variant of GetResource, used
	// inside surrounding transactions.
	GetResourceWith(ctx context.Context, q Querier, contextID, resourceID int) (*resource.Resource, error)

	// GetByName returns the resource with the given simple name, or nil
	// if the name is empty or unknown.
	GetByName(ctx context.Context, contextID int, name string) (*resource.Resource, error)

	// GetByMail returns the resource with the given mail address, or nil
	// if the address is empty or unknown.
	GetByMail(ctx context.Context, contextID int, mail string) (*resource.Resource, error)

	// SearchResources matches the wildcard pattern against resource name
	// and display name. "*" matches everything.
	SearchResources(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error)

	// SearchResourcesForUser is SearchResources ordered by the user's
	// booking use counts, most used first.
	SearchResourcesForUser(ctx context.Context, contextID int, pattern string, userID int) ([]*resource.Resource, error)

	// SearchResourcesByMail matches the wildcard pattern against the mail
	// address.
	SearchResourcesByMail(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error)

	// SearchResourcesByPrivilege returns the resources on which any of the
	// given entities holds the privilege, either through an explicit
	// permission row or through the implicit default permissions of a
	// resource without any rows.
	SearchResourcesByPrivilege(ctx context.Context, contextID int, entities []int, privilege resource.SchedulingPrivilege) ([]*resource.Resource, error)

	// ListModified returns resources modified after the given epoch-millis
	// timestamp.
	ListModified(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error)

	// ListDeleted returns tombstones of resources deleted after the given
	// epoch-millis timestamp.
	ListDeleted(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error)

	// InsertResource writes a resource and, for TypeActive, its permission
	// rows. Permission sets equal to the defaults are represented by the
	// absence of rows. Sets res.LastModified.
	InsertResource(ctx context.Context, q Querier, contextID int, res *resource.Resource, t Type) error

	// UpdateResource replaces the resource fields and its whole permission
	// set (delete-all then insert-all, never a diff). Sets res.LastModified.
	UpdateResource(ctx context.Context, q Querier, contextID int, res *resource.Resource) error

	// DeleteResourceByID removes the resource and all its permission rows.
	DeleteResourceByID(ctx context.Context, q Querier, contextID, resourceID int) error

	// InsertPermissions writes explicit permission rows for a resource.
	// Empty or default sets write nothing.
	InsertPermissions(ctx context.Context, q Querier, contextID, resourceID int, perms []resource.Permission) error

	// DeletePermissions removes all permission rows of a resource and
	// returns the number of deleted rows.
	DeletePermissions(ctx context.Context, q Querier, contextID, resourceID int) (int64, error)

	// ResourcesWithPermissionsForEntity returns the resources whose stored
	// permission set references the given principal.
	ResourcesWithPermissionsForEntity(ctx context.Context, q Querier, contextID, entity int, group bool) ([]*resource.Resource, error)

	// GetGroup fetches exactly one resource group, members included.
	GetGroup(ctx context.Context, contextID, groupID int) (*resource.Group, error)

	// GetGroups returns all resource groups of the context.
	GetGroups(ctx context.Context, contextID int) ([]*resource.Group, error)

	// SearchGroups matches the wildcard pattern against group identifiers.
	SearchGroups(ctx context.Context, contextID int, pattern string) ([]*resource.Group, error)
}

// CacheInvalidator is implemented by storage decorators that maintain a
// cache. Invalidate drops the cached state of one resource plus the list
// caches of its context; it exists separately so out-of-band database
// mutations (manual migrations, delete cascades) can restore coherence.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, contextID, resourceID int) error
}

// CachingAwareStorage combines storage access with explicit cache control.
type CachingAwareStorage interface {
	ResourceStorage
	CacheInvalidator
}
