package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aravindb26/middleware-sub022/pkg/observability"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

func testPropertiesConfig() PropertiesConfig {
	return PropertiesConfig{
		Defaults:         map[string]string{},
		ContextCacheSize: 16,
		ContextCacheTTL:  time.Minute,
	}
}

func TestBoolPropertyCallerDefault(t *testing.T) {
	svc := NewPropertyService(nil, testPropertiesConfig(), observability.NopLogger())

	got, err := svc.BoolProperty(context.Background(), 1, resource.SimplePermissionModeProperty, true)
	require.NoError(t, err)
	assert.True(t, got, "unset property must fall back to the caller default")

	got, err = svc.BoolProperty(context.Background(), 1, resource.SimplePermissionModeProperty, false)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestBoolPropertyInlineDefault(t *testing.T) {
	cfg := testPropertiesConfig()
	cfg.Defaults[resource.SimplePermissionModeProperty] = "false"
	svc := NewPropertyService(nil, cfg, observability.NopLogger())

	got, err := svc.BoolProperty(context.Background(), 1, resource.SimplePermissionModeProperty, true)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestBoolPropertyParsing(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{"garbage", true, true},
		{"garbage", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := testPropertiesConfig()
			cfg.Defaults["prop"] = tt.value
			svc := NewPropertyService(nil, cfg, observability.NopLogger())

			got, err := svc.BoolProperty(context.Background(), 1, "prop", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextOverrideWinsOverDefault(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT name, value FROM context_attribute WHERE cid = $1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow(resource.SimplePermissionModeProperty, "false"))

	cfg := testPropertiesConfig()
	cfg.Defaults[resource.SimplePermissionModeProperty] = "true"
	svc := NewPropertyService(db, cfg, observability.NopLogger())

	got, err := svc.BoolProperty(context.Background(), 7, resource.SimplePermissionModeProperty, true)
	require.NoError(t, err)
	assert.False(t, got, "context attribute must override the default")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContextOverridesAreCached(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	// One query only, despite two lookups.
	mock.ExpectQuery(`SELECT name, value FROM context_attribute WHERE cid = $1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("some.prop", "abc"))

	svc := NewPropertyService(db, testPropertiesConfig(), observability.NopLogger())

	for i := 0; i < 2; i++ {
		got, err := svc.StringProperty(context.Background(), 7, "some.prop", "")
		require.NoError(t, err)
		assert.Equal(t, "abc", got)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateContextForcesReRead(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT name, value FROM context_attribute WHERE cid = $1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("some.prop", "old"))
	mock.ExpectQuery(`SELECT name, value FROM context_attribute WHERE cid = $1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("some.prop", "new"))

	svc := NewPropertyService(db, testPropertiesConfig(), observability.NopLogger())

	got, err := svc.StringProperty(context.Background(), 7, "some.prop", "")
	require.NoError(t, err)
	assert.Equal(t, "old", got)

	svc.InvalidateContext(7)

	got, err = svc.StringProperty(context.Background(), 7, "some.prop", "")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchFileLoadsDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "properties.yaml")
	require.NoError(t, os.WriteFile(file, []byte("properties:\n  some.prop: \"file-value\"\n"), 0o600))

	svc := NewPropertyService(nil, testPropertiesConfig(), observability.NopLogger())
	require.NoError(t, svc.WatchFile(file))
	defer svc.Close()

	got, err := svc.StringProperty(context.Background(), 1, "some.prop", "")
	require.NoError(t, err)
	assert.Equal(t, "file-value", got)
}

func TestWatchFileReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "properties.yaml")
	require.NoError(t, os.WriteFile(file, []byte("properties:\n  some.prop: \"before\"\n"), 0o600))

	svc := NewPropertyService(nil, testPropertiesConfig(), observability.NopLogger())
	require.NoError(t, svc.WatchFile(file))
	defer svc.Close()

	require.NoError(t, os.WriteFile(file, []byte("properties:\n  some.prop: \"after\"\n"), 0o600))

	require.Eventually(t, func() bool {
		got, err := svc.StringProperty(context.Background(), 1, "some.prop", "")
		return err == nil && got == "after"
	}, 5*time.Second, 10*time.Millisecond)
}
