package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGroups struct {
	existing map[int]bool
	err      error
	calls    []int
}

func (f *fakeGroups) GroupExists(ctx context.Context, contextID, groupID int) error {
	f.calls = append(f.calls, groupID)
	if f.err != nil {
		return f.err
	}
	if !f.existing[groupID] {
		return &NotFoundError{Kind: "group", ID: groupID, ContextID: contextID}
	}
	return nil
}

type fakeUsers struct {
	guests map[int]bool
	err    error
}

func (f *fakeUsers) IsGuest(ctx context.Context, contextID, userID int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.guests[userID], nil
}

type fakeProperties struct {
	simpleMode bool
	err        error
}

func (f *fakeProperties) BoolProperty(ctx context.Context, contextID int, name string, def bool) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if name == SimplePermissionModeProperty {
		return f.simpleMode, nil
	}
	return def, nil
}

func testDeps(simpleMode bool) ValidatorDeps {
	return ValidatorDeps{
		Groups:     &fakeGroups{existing: map[int]bool{8: true}},
		Users:      &fakeUsers{guests: map[int]bool{66: true}},
		Properties: &fakeProperties{simpleMode: simpleMode},
	}
}

func validationKind(t *testing.T, err error) ValidationKind {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Kind
}

func TestValidateEmptyAndDefaultSets(t *testing.T) {
	deps := testDeps(true)

	assert.NoError(t, ValidatePermissions(context.Background(), deps, 1, nil))
	assert.NoError(t, ValidatePermissions(context.Background(), deps, 1, []Permission{}))
	assert.NoError(t, ValidatePermissions(context.Background(), deps, 1, DefaultPermissions()))
}

func TestValidateDuplicateEntity(t *testing.T) {
	err := ValidatePermissions(context.Background(), testDeps(false), 1, []Permission{
		{Entity: 3, Group: false, Privilege: PrivilegeBookDirectly},
		{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
	})
	assert.Equal(t, ValidationDuplicateEntity, validationKind(t, err))
}

func TestValidateSameIDUserAndGroupAllowed(t *testing.T) {
	// The same numeric id as user and as group is two distinct principals.
	err := ValidatePermissions(context.Background(), testDeps(false), 1, []Permission{
		{Entity: 8, Group: false, Privilege: PrivilegeBookDirectly},
		{Entity: 8, Group: true, Privilege: PrivilegeBookDirectly},
	})
	assert.NoError(t, err)
}

func TestValidateGuestGroupRejected(t *testing.T) {
	err := ValidatePermissions(context.Background(), testDeps(false), 1, []Permission{
		{Entity: GuestGroupID, Group: true, Privilege: PrivilegeBookDirectly},
	})
	assert.Equal(t, ValidationGuestPrivilege, validationKind(t, err))
}

func TestValidateGuestUserRejected(t *testing.T) {
	err := ValidatePermissions(context.Background(), testDeps(false), 1, []Permission{
		{Entity: 66, Group: false, Privilege: PrivilegeBookDirectly},
	})
	assert.Equal(t, ValidationGuestPrivilege, validationKind(t, err))
}

func TestValidateGroupZeroSkipsLookup(t *testing.T) {
	groups := &fakeGroups{existing: map[int]bool{}}
	deps := testDeps(false)
	deps.Groups = groups

	err := ValidatePermissions(context.Background(), deps, 1, []Permission{
		{Entity: GroupZeroID, Group: true, Privilege: PrivilegeAskToBook},
		{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
	})
	require.NoError(t, err)
	assert.Empty(t, groups.calls, "group zero must not be resolved")
}

func TestValidateUnknownGroupPropagates(t *testing.T) {
	err := ValidatePermissions(context.Background(), testDeps(false), 1, []Permission{
		{Entity: 42, Group: true, Privilege: PrivilegeBookDirectly},
	})
	assert.True(t, IsNotFound(err))
}

func TestValidateLookupErrorPropagatesVerbatim(t *testing.T) {
	boom := errors.New("directory unavailable")
	deps := testDeps(false)
	deps.Users = &fakeUsers{err: boom}

	err := ValidatePermissions(context.Background(), deps, 1, []Permission{
		{Entity: 3, Group: false, Privilege: PrivilegeBookDirectly},
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsValidation(err))
}

func TestValidateInvalidPrivilege(t *testing.T) {
	for _, privilege := range []SchedulingPrivilege{PrivilegeNone, SchedulingPrivilege("OWNER"), ""} {
		err := ValidatePermissions(context.Background(), testDeps(false), 1, []Permission{
			{Entity: 3, Group: false, Privilege: privilege},
		})
		assert.Equal(t, ValidationInvalidPrivilege, validationKind(t, err))
	}
}

func TestValidateAskWithoutDelegate(t *testing.T) {
	err := ValidatePermissions(context.Background(), testDeps(false), 1, []Permission{
		{Entity: GroupZeroID, Group: true, Privilege: PrivilegeAskToBook},
	})
	assert.Equal(t, ValidationMissingDelegate, validationKind(t, err))
}

func TestValidateNonSimpleModeFreeCombinations(t *testing.T) {
	// With simple mode off, mixed shapes are fine as long as ask-to-book
	// grants have a delegate.
	err := ValidatePermissions(context.Background(), testDeps(false), 1, []Permission{
		{Entity: 3, Group: false, Privilege: PrivilegeBookDirectly},
		{Entity: 8, Group: true, Privilege: PrivilegeAskToBook},
		{Entity: 4, Group: false, Privilege: PrivilegeDelegate},
		{Entity: 5, Group: false, Privilege: PrivilegeDelegate},
	})
	assert.NoError(t, err)
}

func TestValidateSimpleModeShapes(t *testing.T) {
	tests := []struct {
		name  string
		perms []Permission
		want  ValidationKind // empty = valid
	}{
		{
			name: "canonical ask plus delegate",
			perms: []Permission{
				{Entity: GroupZeroID, Group: true, Privilege: PrivilegeAskToBook},
				{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
			},
		},
		{
			name: "multiple delegates allowed",
			perms: []Permission{
				{Entity: GroupZeroID, Group: true, Privilege: PrivilegeAskToBook},
				{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
				{Entity: 4, Group: false, Privilege: PrivilegeDelegate},
			},
		},
		{
			name: "non-default without delegate",
			perms: []Permission{
				{Entity: 3, Group: false, Privilege: PrivilegeBookDirectly},
			},
			want: ValidationSimpleModeCombination,
		},
		{
			name: "book directly next to delegate",
			perms: []Permission{
				{Entity: GroupZeroID, Group: true, Privilege: PrivilegeAskToBook},
				{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
				{Entity: 4, Group: false, Privilege: PrivilegeBookDirectly},
			},
			want: ValidationSimpleModeCombination,
		},
		{
			name: "two ask grants",
			perms: []Permission{
				{Entity: GroupZeroID, Group: true, Privilege: PrivilegeAskToBook},
				{Entity: 8, Group: true, Privilege: PrivilegeAskToBook},
				{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
			},
			want: ValidationSimpleModeCombination,
		},
		{
			name: "ask not granted to group zero",
			perms: []Permission{
				{Entity: 8, Group: true, Privilege: PrivilegeAskToBook},
				{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
			},
			want: ValidationSimpleModeCombination,
		},
		{
			name: "delegates only",
			perms: []Permission{
				{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
			},
			want: ValidationSimpleModeCombination,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePermissions(context.Background(), testDeps(true), 1, tt.perms)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, validationKind(t, err))
		})
	}
}

func TestValidatePropertyErrorPropagates(t *testing.T) {
	boom := errors.New("property store down")
	deps := testDeps(true)
	deps.Properties = &fakeProperties{err: boom}

	err := ValidatePermissions(context.Background(), deps, 1, []Permission{
		{Entity: GroupZeroID, Group: true, Privilege: PrivilegeAskToBook},
		{Entity: 3, Group: false, Privilege: PrivilegeDelegate},
	})
	assert.ErrorIs(t, err, boom)
}
