package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

func groupRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "identifier", "displayName", "available"})
}

func TestGetGroupLoadsMembers(t *testing.T) {
	store, mock := newStoreMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM resource_group WHERE cid = \$1 AND id = \$2`).
		WithArgs(1, 7).
		WillReturnRows(groupRows().AddRow(7, "rooms", "Meeting Rooms", true))
	mock.ExpectQuery(`SELECT member FROM resource_group_member WHERE`).
		WithArgs(1, 7).
		WillReturnRows(sqlmock.NewRows([]string{"member"}).AddRow(5).AddRow(6))

	g, err := store.GetGroup(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, "rooms", g.Identifier)
	assert.Equal(t, []int{5, 6}, g.Member)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGroupNotFound(t *testing.T) {
	store, mock := newStoreMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM resource_group WHERE cid = \$1 AND id = \$2`).
		WithArgs(1, 404).
		WillReturnRows(groupRows())

	_, err := store.GetGroup(context.Background(), 1, 404)
	assert.True(t, resource.IsNotFound(err))
}

func TestGetGroupWithoutMembers(t *testing.T) {
	store, mock := newStoreMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM resource_group WHERE cid = \$1 AND id = \$2`).
		WithArgs(1, 7).
		WillReturnRows(groupRows().AddRow(7, "rooms", "Meeting Rooms", true))
	mock.ExpectQuery(`SELECT member FROM resource_group_member WHERE`).
		WithArgs(1, 7).
		WillReturnRows(sqlmock.NewRows([]string{"member"}))

	g, err := store.GetGroup(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Empty(t, g.Member)
	assert.NotNil(t, g.Member, "members serialize as an empty list, not null")
}

func TestSearchGroupsNormalizesWildcards(t *testing.T) {
	store, mock := newStoreMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM resource_group WHERE cid = \$1 AND identifier LIKE \$2`).
		WithArgs(1, "room%").
		WillReturnRows(groupRows())

	groups, err := store.SearchGroups(context.Background(), 1, "room*")
	require.NoError(t, err)
	assert.Nil(t, groups)
	require.NoError(t, mock.ExpectationsWereMet())

	groups, err = store.SearchGroups(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Nil(t, groups)
}
