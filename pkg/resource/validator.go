package resource

import (
	"context"
)

// SimplePermissionModeProperty is the per-context configuration property
// restricting permission sets to two canonical shapes.
const SimplePermissionModeProperty = "com.openexchange.resource.simplePermissionMode"

// GroupService resolves user groups within a context.
type GroupService interface {
	// GroupExists returns nil if the group exists, a NotFoundError
	// otherwise.
	GroupExists(ctx context.Context, contextID, groupID int) error
}

// UserService resolves users within a context.
type UserService interface {
	// IsGuest reports whether the user is a guest account. Returns a
	// NotFoundError if the user does not exist.
	IsGuest(ctx context.Context, contextID, userID int) (bool, error)
}

// PropertyLookup reads per-context configuration properties.
type PropertyLookup interface {
	BoolProperty(ctx context.Context, contextID int, name string, def bool) (bool, error)
}

// ValidatorDeps bundles the external lookups the validator needs.
type ValidatorDeps struct {
	Groups     GroupService
	Users      UserService
	Properties PropertyLookup
}

// ValidatePermissions checks a permission set against the rules of the
// permission model. A nil or empty set, or a set value-equal to
// DefaultPermissions, is always valid. The check has no side effects;
// failures are ValidationErrors, except for principal lookups which
// propagate their own errors as-is.
func ValidatePermissions(ctx context.Context, deps ValidatorDeps, contextID int, perms []Permission) error {
	if len(perms) == 0 || IsDefaultPermissions(perms) {
		return nil
	}

	type principal struct {
		entity int
		group  bool
	}
	seen := make(map[principal]struct{}, len(perms))
	counts := make(map[SchedulingPrivilege]int, 3)
	var askEntity int
	var askIsGroup bool

	for _, p := range perms {
		key := principal{p.Entity, p.Group}
		if _, dup := seen[key]; dup {
			return validationErrorf(ValidationDuplicateEntity,
				"entity %d (group %t) is listed more than once", p.Entity, p.Group)
		}
		seen[key] = struct{}{}

		if p.Group {
			if p.Entity == GuestGroupID {
				return validationErrorf(ValidationGuestPrivilege,
					"the guest group may not hold a scheduling privilege")
			}
			// Group zero always exists; everything else has to resolve.
			if p.Entity != GroupZeroID {
				if err := deps.Groups.GroupExists(ctx, contextID, p.Entity); err != nil {
					return err
				}
			}
		} else {
			guest, err := deps.Users.IsGuest(ctx, contextID, p.Entity)
			if err != nil {
				return err
			}
			if guest {
				return validationErrorf(ValidationGuestPrivilege,
					"guest user %d may not hold a scheduling privilege", p.Entity)
			}
		}

		switch p.Privilege {
		case PrivilegeBookDirectly, PrivilegeAskToBook, PrivilegeDelegate:
			counts[p.Privilege]++
			if p.Privilege == PrivilegeAskToBook {
				askEntity, askIsGroup = p.Entity, p.Group
			}
		default:
			return validationErrorf(ValidationInvalidPrivilege,
				"entity %d (group %t) has no valid privilege: an entity without privileges is omitted from the set", p.Entity, p.Group)
		}
	}

	if counts[PrivilegeAskToBook] > 0 && counts[PrivilegeDelegate] == 0 {
		return validationErrorf(ValidationMissingDelegate,
			"ask-to-book permissions require at least one booking delegate")
	}

	simpleMode, err := deps.Properties.BoolProperty(ctx, contextID, SimplePermissionModeProperty, true)
	if err != nil {
		return err
	}
	if !simpleMode {
		return nil
	}

	// Simple mode allows exactly two shapes: the default set (handled by
	// the short-circuit above) or one ask-to-book grant for group zero plus
	// one or more delegates.
	if counts[PrivilegeDelegate] == 0 {
		return validationErrorf(ValidationSimpleModeCombination,
			"without a delegate, only the default permissions are allowed in simple permission mode")
	}
	if counts[PrivilegeBookDirectly] > 0 {
		return validationErrorf(ValidationSimpleModeCombination,
			"book-directly permissions cannot be combined with delegates in simple permission mode")
	}
	if counts[PrivilegeAskToBook] != 1 {
		return validationErrorf(ValidationSimpleModeCombination,
			"exactly one ask-to-book permission is required in simple permission mode, got %d", counts[PrivilegeAskToBook])
	}
	if !askIsGroup || askEntity != GroupZeroID {
		return validationErrorf(ValidationSimpleModeCombination,
			"the ask-to-book permission must be granted to the all-users group, not entity %d (group %t)", askEntity, askIsGroup)
	}
	return nil
}
