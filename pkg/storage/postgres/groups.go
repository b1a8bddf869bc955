package postgres

import (
	"context"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
	"github.com/aravindb26/middleware-sub022/pkg/storage"
)

const groupColumns = `id,identifier,"displayName",available`

// GetGroup fetches exactly one resource group, members included.
func (s *ResourceStore) GetGroup(ctx context.Context, contextID, groupID int) (*resource.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM resource_group WHERE cid = $1 AND id = $2`
	groups, err := s.queryGroups(ctx, "get resource group", query, contextID, contextID, groupID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, &resource.NotFoundError{Kind: "resource group", ID: groupID, ContextID: contextID}
	}
	if len(groups) > 1 {
		return nil, &resource.ConflictError{Kind: "resource group", ID: groupID, ContextID: contextID}
	}
	return groups[0], nil
}

// GetGroups returns all resource groups of the context.
func (s *ResourceStore) GetGroups(ctx context.Context, contextID int) ([]*resource.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM resource_group WHERE cid = $1`
	return s.queryGroups(ctx, "get resource groups", query, contextID, contextID)
}

// SearchGroups matches the wildcard pattern against group identifiers.
func (s *ResourceStore) SearchGroups(ctx context.Context, contextID int, pattern string) ([]*resource.Group, error) {
	if pattern == "" {
		return nil, nil
	}
	query := `SELECT ` + groupColumns + ` FROM resource_group WHERE cid = $1 AND identifier LIKE $2`
	return s.queryGroups(ctx, "search resource groups", query, contextID, contextID, preparePattern(pattern))
}

func (s *ResourceStore) queryGroups(ctx context.Context, op, query string, contextID int, args ...interface{}) ([]*resource.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, resource.WrapStorage(op, err)
	}
	defer rows.Close()

	var groups []*resource.Group
	for rows.Next() {
		var g resource.Group
		if err := rows.Scan(&g.ID, &g.Identifier, &g.DisplayName, &g.Available); err != nil {
			return nil, resource.WrapStorage(op, err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, resource.WrapStorage(op, err)
	}

	for _, g := range groups {
		if err := s.loadMembers(ctx, s.db, contextID, g); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *ResourceStore) loadMembers(ctx context.Context, q storage.Querier, contextID int, g *resource.Group) error {
	rows, err := q.QueryContext(ctx, `SELECT member FROM resource_group_member WHERE cid = $1 AND id = $2`, contextID, g.ID)
	if err != nil {
		return resource.WrapStorage("select resource group members", err)
	}
	defer rows.Close()

	members := make([]int, 0, 4)
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			return resource.WrapStorage("select resource group members", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return resource.WrapStorage("select resource group members", err)
	}
	g.Member = members
	return nil
}
