package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
	"github.com/aravindb26/middleware-sub022/pkg/storage"
)

const resourceColumns = `id,identifier,"displayName",mail,available,description,"lastModified"`

// ResourceStore implements storage.ResourceStorage on PostgreSQL.
type ResourceStore struct {
	db *sql.DB
}

var _ storage.ResourceStorage = (*ResourceStore)(nil)

// NewResourceStore creates a resource store on the given database handle.
func NewResourceStore(db *sql.DB) *ResourceStore {
	return &ResourceStore{db: db}
}

// DB returns the underlying database handle, for callers that open their
// own transactions around store operations.
func (s *ResourceStore) DB() *sql.DB {
	return s.db
}

// GetResource fetches exactly one resource using a pooled connection.
func (s *ResourceStore) GetResource(ctx context.Context, contextID, resourceID int) (*resource.Resource, error) {
	return s.GetResourceWith(ctx, s.db, contextID, resourceID)
}

// GetResourceWith fetches exactly one resource through the given querier.
func (s *ResourceStore) GetResourceWith(ctx context.Context, q storage.Querier, contextID, resourceID int) (*resource.Resource, error) {
	resources, err := s.getResources(ctx, q, contextID, []int{resourceID})
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, &resource.NotFoundError{Kind: "resource", ID: resourceID, ContextID: contextID}
	}
	if len(resources) > 1 {
		// Impossible under a correct (cid, id) primary key.
		return nil, &resource.ConflictError{Kind: "resource", ID: resourceID, ContextID: contextID}
	}
	return resources[0], nil
}

// GetByName returns the resource with the given simple name, or nil if the
// name is empty or unknown.
func (s *ResourceStore) GetByName(ctx context.Context, contextID int, name string) (*resource.Resource, error) {
	if name == "" {
		return nil, nil
	}
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE cid = $1 AND identifier = $2`
	return s.queryOptionalResource(ctx, "get resource by name", query, contextID, name)
}

// GetByMail returns the resource with the given mail address, or nil if the
// address is empty or unknown.
func (s *ResourceStore) GetByMail(ctx context.Context, contextID int, mail string) (*resource.Resource, error) {
	if mail == "" {
		return nil, nil
	}
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE cid = $1 AND mail = $2`
	return s.queryOptionalResource(ctx, "get resource by mail", query, contextID, mail)
}

func (s *ResourceStore) queryOptionalResource(ctx context.Context, op, query string, contextID int, key string) (*resource.Resource, error) {
	row := s.db.QueryRowContext(ctx, query, contextID, key)
	res, err := scanResourceRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, resource.WrapStorage(op, err)
	}
	if err := s.loadPermissions(ctx, s.db, contextID, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SearchResources matches the wildcard pattern against resource name and
// display name. An empty pattern matches nothing.
func (s *ResourceStore) SearchResources(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error) {
	if pattern == "" {
		return nil, nil
	}
	like := preparePattern(pattern)
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE cid = $1 AND (identifier LIKE $2 OR "displayName" LIKE $3)`
	return s.queryResources(ctx, s.db, "search resources", query, contextID, contextID, like, like)
}

// SearchResourcesForUser is SearchResources with results ordered by the
// user's booking use counts, biasing toward frequently booked resources.
func (s *ResourceStore) SearchResourcesForUser(ctx context.Context, contextID int, pattern string, userID int) ([]*resource.Resource, error) {
	if pattern == "" {
		return nil, nil
	}
	like := preparePattern(pattern)
	query := `SELECT res.id,res.identifier,res."displayName",res.mail,res.available,res.description,res."lastModified" ` +
		`FROM resource AS res ` +
		`LEFT JOIN "principalUseCount" AS uc ON res.cid = uc.cid AND res.id = uc.principal AND uc."user" = $1 ` +
		`WHERE res.cid = $2 AND (res.identifier LIKE $3 OR res."displayName" LIKE $4) ` +
		`ORDER BY uc.value DESC NULLS LAST`
	return s.queryResources(ctx, s.db, "search resources with use count", query, contextID, userID, contextID, like, like)
}

// SearchResourcesByMail matches the wildcard pattern against the mail
// address.
func (s *ResourceStore) SearchResourcesByMail(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error) {
	if pattern == "" {
		return nil, nil
	}
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE cid = $1 AND mail LIKE $2`
	return s.queryResources(ctx, s.db, "search resources by mail", query, contextID, contextID, preparePattern(pattern))
}

// SearchResourcesByPrivilege returns the resources on which any of the
// entities holds the privilege. Permission rows are an override of the
// default baseline, not an exhaustive enumeration: when the requested
// privilege matches a default grant for one of the entities, resources
// without any stored rows are part of the result as well.
func (s *ResourceStore) SearchResourcesByPrivilege(ctx context.Context, contextID int, entities []int, privilege resource.SchedulingPrivilege) ([]*resource.Resource, error) {
	if len(entities) == 0 || privilege == "" {
		return nil, nil
	}

	idSet := make(map[int]struct{})

	query := `SELECT resource FROM resource_permissions WHERE cid = $1 AND entity IN (` +
		placeholders(len(entities), 2) + `) AND privilege = $` + fmt.Sprint(len(entities)+2)
	args := make([]interface{}, 0, len(entities)+2)
	args = append(args, contextID)
	for _, e := range entities {
		args = append(args, e)
	}
	args = append(args, string(privilege))
	if err := s.collectIDs(ctx, s.db, "search resources by privilege", query, args, idSet); err != nil {
		return nil, err
	}

	if matchesDefaultPermissions(entities, privilege) {
		query := `SELECT r.id FROM resource AS r WHERE r.cid = $1 AND NOT EXISTS ` +
			`(SELECT 1 FROM resource_permissions AS p WHERE p.cid = $1 AND p.resource = r.id)`
		if err := s.collectIDs(ctx, s.db, "search resources without permissions", query, []interface{}{contextID}, idSet); err != nil {
			return nil, err
		}
	}

	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return s.getResources(ctx, s.db, contextID, ids)
}

// ListModified returns resources modified after the given epoch-millis
// timestamp.
func (s *ResourceStore) ListModified(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE cid = $1 AND "lastModified" > $2`
	return s.queryResources(ctx, s.db, "list modified resources", query, contextID, contextID, since)
}

// ListDeleted returns tombstones of resources deleted after the given
// epoch-millis timestamp. Tombstones carry no permission rows; their
// permission set is the default.
func (s *ResourceStore) ListDeleted(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM del_resource WHERE cid = $1 AND "lastModified" > $2`
	return s.queryResources(ctx, s.db, "list deleted resources", query, contextID, contextID, since)
}

// InsertResource writes a resource row and, for the active table, its
// permission rows. Sets res.LastModified.
func (s *ResourceStore) InsertResource(ctx context.Context, q storage.Querier, contextID int, res *resource.Resource, t storage.Type) error {
	table := "resource"
	if t == storage.TypeDeleted {
		table = "del_resource"
	}
	lastModified := time.Now().UnixMilli()
	query := `INSERT INTO ` + table + ` (cid,id,identifier,"displayName",mail,available,description,"lastModified") VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := q.ExecContext(ctx, query,
		contextID,
		res.ID,
		res.Name,
		res.DisplayName,
		nullable(res.Mail),
		res.Available,
		nullable(res.Description),
		lastModified,
	)
	if err != nil {
		return resource.WrapStorage("insert resource", err)
	}
	if t == storage.TypeActive {
		if err := s.InsertPermissions(ctx, q, contextID, res.ID, res.Permissions); err != nil {
			return err
		}
	}
	res.LastModified = lastModified
	return nil
}

// UpdateResource replaces the resource fields and its whole permission set.
// Sets res.LastModified.
func (s *ResourceStore) UpdateResource(ctx context.Context, q storage.Querier, contextID int, res *resource.Resource) error {
	lastModified := time.Now().UnixMilli()
	query := `UPDATE resource SET identifier = $1, "displayName" = $2, mail = $3, available = $4, description = $5, "lastModified" = $6 WHERE cid = $7 AND id = $8`
	_, err := q.ExecContext(ctx, query,
		res.Name,
		res.DisplayName,
		nullable(res.Mail),
		res.Available,
		nullable(res.Description),
		lastModified,
		contextID,
		res.ID,
	)
	if err != nil {
		return resource.WrapStorage("update resource", err)
	}
	if _, err := s.DeletePermissions(ctx, q, contextID, res.ID); err != nil {
		return err
	}
	if err := s.InsertPermissions(ctx, q, contextID, res.ID, res.Permissions); err != nil {
		return err
	}
	res.LastModified = lastModified
	return nil
}

// DeleteResourceByID removes the resource and all its permission rows.
func (s *ResourceStore) DeleteResourceByID(ctx context.Context, q storage.Querier, contextID, resourceID int) error {
	_, err := q.ExecContext(ctx, `DELETE FROM resource WHERE cid = $1 AND id = $2`, contextID, resourceID)
	if err != nil {
		return resource.WrapStorage("delete resource", err)
	}
	_, err = s.DeletePermissions(ctx, q, contextID, resourceID)
	return err
}

// InsertPermissions writes explicit permission rows. Empty or default sets
// write nothing: zero rows is how "default permissions" is represented.
func (s *ResourceStore) InsertPermissions(ctx context.Context, q storage.Querier, contextID, resourceID int, perms []resource.Permission) error {
	if len(perms) == 0 || resource.IsDefaultPermissions(perms) {
		return nil
	}
	query := `INSERT INTO resource_permissions (cid,resource,entity,"group",privilege) VALUES ($1,$2,$3,$4,$5)`
	for _, p := range perms {
		if _, err := q.ExecContext(ctx, query, contextID, resourceID, p.Entity, p.Group, string(p.Privilege)); err != nil {
			return resource.WrapStorage("insert resource permission", err)
		}
	}
	return nil
}

// DeletePermissions removes all permission rows of a resource.
func (s *ResourceStore) DeletePermissions(ctx context.Context, q storage.Querier, contextID, resourceID int) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM resource_permissions WHERE cid = $1 AND resource = $2`, contextID, resourceID)
	if err != nil {
		return 0, resource.WrapStorage("delete resource permissions", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, resource.WrapStorage("delete resource permissions", err)
	}
	return n, nil
}

// ResourcesWithPermissionsForEntity returns the resources whose stored
// permission set references the given principal.
func (s *ResourceStore) ResourcesWithPermissionsForEntity(ctx context.Context, q storage.Querier, contextID, entity int, group bool) ([]*resource.Resource, error) {
	idSet := make(map[int]struct{})
	query := `SELECT resource FROM resource_permissions WHERE cid = $1 AND entity = $2 AND "group" = $3`
	if err := s.collectIDs(ctx, q, "resources with permissions for entity", query, []interface{}{contextID, entity, group}, idSet); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return s.getResources(ctx, q, contextID, ids)
}

// getResources reads multiple resources, permissions included, through the
// given querier.
func (s *ResourceStore) getResources(ctx context.Context, q storage.Querier, contextID int, ids []int) ([]*resource.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE cid = $1 AND id IN (` + placeholders(len(ids), 2) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, contextID)
	for _, id := range ids {
		args = append(args, id)
	}
	return s.queryResources(ctx, q, "get resources", query, contextID, args...)
}

func (s *ResourceStore) queryResources(ctx context.Context, q storage.Querier, op, query string, contextID int, args ...interface{}) ([]*resource.Resource, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, resource.WrapStorage(op, err)
	}
	defer rows.Close()

	var resources []*resource.Resource
	for rows.Next() {
		res, err := scanResourceRow(rows)
		if err != nil {
			return nil, resource.WrapStorage(op, err)
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, resource.WrapStorage(op, err)
	}

	for _, res := range resources {
		if err := s.loadPermissions(ctx, q, contextID, res); err != nil {
			return nil, err
		}
	}
	return resources, nil
}

// SelectPermissions reads the stored permission rows of a resource. Zero
// rows come back as an empty slice; callers wanting the effective set
// substitute the defaults.
func (s *ResourceStore) SelectPermissions(ctx context.Context, q storage.Querier, contextID, resourceID int) ([]resource.Permission, error) {
	rows, err := q.QueryContext(ctx, `SELECT entity,"group",privilege FROM resource_permissions WHERE cid = $1 AND resource = $2`, contextID, resourceID)
	if err != nil {
		return nil, resource.WrapStorage("select resource permissions", err)
	}
	defer rows.Close()

	var perms []resource.Permission
	for rows.Next() {
		var entity int
		var group bool
		var privilege string
		if err := rows.Scan(&entity, &group, &privilege); err != nil {
			return nil, resource.WrapStorage("select resource permissions", err)
		}
		perms = append(perms, resource.Permission{
			Entity:    entity,
			Group:     group,
			Privilege: resource.ParseSchedulingPrivilege(privilege),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, resource.WrapStorage("select resource permissions", err)
	}
	return perms, nil
}

// loadPermissions attaches the effective permission set to a resource,
// substituting the defaults when no rows exist.
func (s *ResourceStore) loadPermissions(ctx context.Context, q storage.Querier, contextID int, res *resource.Resource) error {
	perms, err := s.SelectPermissions(ctx, q, contextID, res.ID)
	if err != nil {
		return err
	}
	if len(perms) == 0 {
		perms = resource.DefaultPermissions()
	}
	res.Permissions = perms
	return nil
}

func (s *ResourceStore) collectIDs(ctx context.Context, q storage.Querier, op, query string, args []interface{}, into map[int]struct{}) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return resource.WrapStorage(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return resource.WrapStorage(op, err)
		}
		into[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return resource.WrapStorage(op, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResourceRow(row rowScanner) (*resource.Resource, error) {
	var res resource.Resource
	var mail, description sql.NullString
	if err := row.Scan(&res.ID, &res.Name, &res.DisplayName, &mail, &res.Available, &description, &res.LastModified); err != nil {
		return nil, err
	}
	res.Mail = mail.String
	res.Description = description.String
	return &res, nil
}

func matchesDefaultPermissions(entities []int, privilege resource.SchedulingPrivilege) bool {
	for _, p := range resource.DefaultPermissions() {
		if p.Privilege != privilege {
			continue
		}
		for _, e := range entities {
			if e == p.Entity {
				return true
			}
		}
	}
	return false
}

// preparePattern normalizes a wildcard search pattern to SQL LIKE syntax.
func preparePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "*", "%")
	return strings.ReplaceAll(pattern, "?", "_")
}

// placeholders renders n comma-separated placeholders starting at $start.
func placeholders(n, start int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "$%d", start+i)
	}
	return b.String()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
