package events

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aravindb26/middleware-sub022/pkg/observability"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
	"github.com/aravindb26/middleware-sub022/pkg/storage/storagetest"
)

type recordingInvalidator struct {
	invalidated [][2]int
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, contextID, resourceID int) error {
	r.invalidated = append(r.invalidated, [2]int{contextID, resourceID})
	return nil
}

func newTestTx(t *testing.T) *sql.Tx {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

func newTestListener(store *storagetest.FakeStorage, cache *recordingInvalidator) *EntityDeleteListener {
	if cache == nil {
		return NewEntityDeleteListener(store, nil, observability.NopLogger(), observability.NewTestMetrics())
	}
	return NewEntityDeleteListener(store, cache, observability.NopLogger(), observability.NewTestMetrics())
}

func TestHandleDeleteEventRemovesUserPermission(t *testing.T) {
	store := storagetest.NewFakeStorage()
	store.Seed(1, &resource.Resource{
		ID:   7,
		Name: "beamer",
		Permissions: []resource.Permission{
			{Entity: 3, Group: false, Privilege: resource.PrivilegeBookDirectly},
			{Entity: 4, Group: false, Privilege: resource.PrivilegeBookDirectly},
		},
	})
	cache := &recordingInvalidator{}
	listener := newTestListener(store, cache)

	ev := NewDeleteEvent(KindUser, 1, 3, 0, 2)
	err := listener.HandleDeleteEvent(context.Background(), newTestTx(t), ev)
	require.NoError(t, err)

	res, err := store.GetResource(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, []resource.Permission{
		{Entity: 4, Group: false, Privilege: resource.PrivilegeBookDirectly},
	}, res.Permissions)
	assert.Equal(t, [][2]int{{1, 7}}, cache.invalidated)
}

func TestHandleDeleteEventSynthesizesDelegate(t *testing.T) {
	store := storagetest.NewFakeStorage()
	store.Seed(1, &resource.Resource{
		ID:   7,
		Name: "beamer",
		Permissions: []resource.Permission{
			{Entity: resource.GroupZeroID, Group: true, Privilege: resource.PrivilegeAskToBook},
			{Entity: 3, Group: false, Privilege: resource.PrivilegeDelegate},
		},
	})
	listener := newTestListener(store, nil)

	// The deleted user 3 was the only delegate; user 9 inherits.
	ev := NewDeleteEvent(KindUser, 1, 3, 9, 2)
	err := listener.HandleDeleteEvent(context.Background(), newTestTx(t), ev)
	require.NoError(t, err)

	res, err := store.GetResource(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, []resource.Permission{
		{Entity: resource.GroupZeroID, Group: true, Privilege: resource.PrivilegeAskToBook},
		{Entity: 9, Group: false, Privilege: resource.PrivilegeDelegate},
	}, res.Permissions)
}

func TestHandleDeleteEventFallsBackToAdmin(t *testing.T) {
	store := storagetest.NewFakeStorage()
	store.Seed(1, &resource.Resource{
		ID:   7,
		Name: "beamer",
		Permissions: []resource.Permission{
			{Entity: resource.GroupZeroID, Group: true, Privilege: resource.PrivilegeAskToBook},
			{Entity: 3, Group: false, Privilege: resource.PrivilegeDelegate},
		},
	})
	listener := newTestListener(store, nil)

	// No destination user; the context admin becomes the delegate.
	ev := NewDeleteEvent(KindUser, 1, 3, 0, 2)
	err := listener.HandleDeleteEvent(context.Background(), newTestTx(t), ev)
	require.NoError(t, err)

	res, err := store.GetResource(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Contains(t, res.Permissions, resource.Permission{Entity: 2, Group: false, Privilege: resource.PrivilegeDelegate})
}

func TestHandleDeleteEventGroupKind(t *testing.T) {
	store := storagetest.NewFakeStorage()
	store.Seed(1, &resource.Resource{
		ID:   7,
		Name: "beamer",
		Permissions: []resource.Permission{
			{Entity: 5, Group: true, Privilege: resource.PrivilegeBookDirectly},
			{Entity: 5, Group: false, Privilege: resource.PrivilegeDelegate},
		},
	})
	listener := newTestListener(store, nil)

	// Deleting group 5 must leave user 5 untouched.
	ev := NewDeleteEvent(KindGroup, 1, 5, 0, 2)
	err := listener.HandleDeleteEvent(context.Background(), newTestTx(t), ev)
	require.NoError(t, err)

	res, err := store.GetResource(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, []resource.Permission{
		{Entity: 5, Group: false, Privilege: resource.PrivilegeDelegate},
	}, res.Permissions)
}

func TestHandleDeleteEventIsIdempotent(t *testing.T) {
	store := storagetest.NewFakeStorage()
	store.Seed(1, &resource.Resource{
		ID:   7,
		Name: "beamer",
		Permissions: []resource.Permission{
			{Entity: 3, Group: false, Privilege: resource.PrivilegeBookDirectly},
			{Entity: 4, Group: false, Privilege: resource.PrivilegeBookDirectly},
		},
	})
	listener := newTestListener(store, nil)

	ev := NewDeleteEvent(KindUser, 1, 3, 0, 2)
	require.NoError(t, listener.HandleDeleteEvent(context.Background(), newTestTx(t), ev))
	after, err := store.GetResource(context.Background(), 1, 7)
	require.NoError(t, err)

	writes := store.Calls["InsertPermissions"]
	require.NoError(t, listener.HandleDeleteEvent(context.Background(), newTestTx(t), ev))
	again, err := store.GetResource(context.Background(), 1, 7)
	require.NoError(t, err)

	assert.Equal(t, after.Permissions, again.Permissions)
	assert.Equal(t, writes, store.Calls["InsertPermissions"], "second run must not rewrite permissions")
}

func TestHandleDeleteEventResourceKindInvalidatesCache(t *testing.T) {
	store := storagetest.NewFakeStorage()
	cache := &recordingInvalidator{}
	listener := newTestListener(store, cache)

	ev := NewDeleteEvent(KindResource, 1, 7, 0, 2)
	err := listener.HandleDeleteEvent(context.Background(), newTestTx(t), ev)
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 7}}, cache.invalidated)
	assert.Zero(t, store.Calls["ResourcesWithPermissionsForEntity"])
}

func TestHandleDeleteEventUntouchedResourcesStay(t *testing.T) {
	store := storagetest.NewFakeStorage()
	store.Seed(1, &resource.Resource{
		ID:          8,
		Name:        "car",
		Permissions: resource.DefaultPermissions(),
	})
	listener := newTestListener(store, nil)

	ev := NewDeleteEvent(KindUser, 1, 3, 0, 2)
	require.NoError(t, listener.HandleDeleteEvent(context.Background(), newTestTx(t), ev))

	res, err := store.GetResource(context.Background(), 1, 8)
	require.NoError(t, err)
	assert.Equal(t, resource.DefaultPermissions(), res.Permissions)
	assert.Zero(t, store.Calls["DeletePermissions"])
}
