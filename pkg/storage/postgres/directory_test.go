package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

func newDirectoryMock(t *testing.T) (*Directory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDirectory(db), mock
}

func TestGroupZeroExistsWithoutLookup(t *testing.T) {
	dir, mock := newDirectoryMock(t)

	require.NoError(t, dir.GroupExists(context.Background(), 1, resource.GroupZeroID))
	require.NoError(t, mock.ExpectationsWereMet(), "the virtual group must not hit the database")
}

func TestGroupExists(t *testing.T) {
	dir, mock := newDirectoryMock(t)

	mock.ExpectQuery(`SELECT 1 FROM groups WHERE`).
		WithArgs(1, 7).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, dir.GroupExists(context.Background(), 1, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupExistsNotFound(t *testing.T) {
	dir, mock := newDirectoryMock(t)

	mock.ExpectQuery(`SELECT 1 FROM groups WHERE`).
		WithArgs(1, 99).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	err := dir.GroupExists(context.Background(), 1, 99)
	assert.True(t, resource.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsGuest(t *testing.T) {
	dir, mock := newDirectoryMock(t)

	mock.ExpectQuery(`SELECT "guestCreatedBy" FROM "user" WHERE`).
		WithArgs(1, 12).
		WillReturnRows(sqlmock.NewRows([]string{"guestCreatedBy"}).AddRow(3))

	guest, err := dir.IsGuest(context.Background(), 1, 12)
	require.NoError(t, err)
	assert.True(t, guest)
}

func TestIsGuestRegularUser(t *testing.T) {
	dir, mock := newDirectoryMock(t)

	mock.ExpectQuery(`SELECT "guestCreatedBy" FROM "user" WHERE`).
		WithArgs(1, 3).
		WillReturnRows(sqlmock.NewRows([]string{"guestCreatedBy"}).AddRow(0))

	guest, err := dir.IsGuest(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.False(t, guest)
}

func TestIsGuestUnknownUser(t *testing.T) {
	dir, mock := newDirectoryMock(t)

	mock.ExpectQuery(`SELECT "guestCreatedBy" FROM "user" WHERE`).
		WithArgs(1, 404).
		WillReturnRows(sqlmock.NewRows([]string{"guestCreatedBy"}))

	_, err := dir.IsGuest(context.Background(), 1, 404)
	assert.True(t, resource.IsNotFound(err))
}
