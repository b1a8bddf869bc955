package postgres

import (
	"context"
	"database/sql"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

// Directory resolves users and user groups against the principal tables.
// It backs the existence and guest checks of the permission validator.
type Directory struct {
	db *sql.DB
}

var (
	_ resource.GroupService = (*Directory)(nil)
	_ resource.UserService  = (*Directory)(nil)
)

// NewDirectory creates a directory on the given database handle.
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// GroupExists returns nil if the group exists in the context. Group zero is
// virtual and always exists.
func (d *Directory) GroupExists(ctx context.Context, contextID, groupID int) error {
	if groupID == resource.GroupZeroID {
		return nil
	}
	var one int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE cid = $1 AND id = $2`, contextID, groupID).Scan(&one)
	if err == sql.ErrNoRows {
		return &resource.NotFoundError{Kind: "group", ID: groupID, ContextID: contextID}
	}
	if err != nil {
		return resource.WrapStorage("group lookup", err)
	}
	return nil
}

// IsGuest reports whether the user is a guest account. Guests are created
// on behalf of a regular user, so a non-zero creator marks them.
func (d *Directory) IsGuest(ctx context.Context, contextID, userID int) (bool, error) {
	var guestCreatedBy int
	err := d.db.QueryRowContext(ctx, `SELECT "guestCreatedBy" FROM "user" WHERE cid = $1 AND id = $2`, contextID, userID).Scan(&guestCreatedBy)
	if err == sql.ErrNoRows {
		return false, &resource.NotFoundError{Kind: "user", ID: userID, ContextID: contextID}
	}
	if err != nil {
		return false, resource.WrapStorage("user lookup", err)
	}
	return guestCreatedBy > 0, nil
}
