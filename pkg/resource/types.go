package resource

import (
	"strings"
)

const (
	// GroupZeroID identifies the virtual "all users" group.
	GroupZeroID = 0

	// GuestGroupID identifies the virtual group containing all guest users.
	// Guests may never hold scheduling privileges.
	GuestGroupID = 2147483647
)

// SchedulingPrivilege is the kind of booking authority a principal holds
// over a resource. The string values are the persisted representation.
type SchedulingPrivilege string

const (
	// PrivilegeNone grants nothing. It is never stored: absence from a
	// permission set already means "no privilege".
	PrivilegeNone SchedulingPrivilege = "NONE"

	// PrivilegeBookDirectly allows booking without approval.
	PrivilegeBookDirectly SchedulingPrivilege = "BOOK_DIRECTLY"

	// PrivilegeAskToBook allows submitting booking requests that a
	// delegate has to approve.
	PrivilegeAskToBook SchedulingPrivilege = "ASK_TO_BOOK"

	// PrivilegeDelegate allows approving or denying booking requests.
	PrivilegeDelegate SchedulingPrivilege = "DELEGATE"
)

// ParseSchedulingPrivilege parses a stored privilege name, case-insensitively.
// Unknown values fall back to PrivilegeNone, matching how unreadable rows
// are treated on load.
func ParseSchedulingPrivilege(s string) SchedulingPrivilege {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PrivilegeBookDirectly):
		return PrivilegeBookDirectly
	case string(PrivilegeAskToBook):
		return PrivilegeAskToBook
	case string(PrivilegeDelegate):
		return PrivilegeDelegate
	default:
		return PrivilegeNone
	}
}

// Permission is one grant for one principal on one resource. Within one
// resource's permission set the pair (Entity, Group) is unique.
type Permission struct {
	Entity    int                 `json:"entity"`
	Group     bool                `json:"group"`
	Privilege SchedulingPrivilege `json:"privilege"`
}

// DefaultPermissions returns the implicit permission set assumed for a
// resource that has no permission rows stored: the universal group may book
// directly. A fresh slice is returned on every call so callers can never
// alias a shared instance.
func DefaultPermissions() []Permission {
	return []Permission{{Entity: GroupZeroID, Group: true, Privilege: PrivilegeBookDirectly}}
}

// IsDefaultPermissions reports whether perms is value-equal to the default
// permission set.
func IsDefaultPermissions(perms []Permission) bool {
	return len(perms) == 1 &&
		perms[0].Entity == GroupZeroID &&
		perms[0].Group &&
		perms[0].Privilege == PrivilegeBookDirectly
}

// Resource is a bookable entity scoped to a context.
type Resource struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	DisplayName  string       `json:"display_name"`
	Mail         string       `json:"mail,omitempty"`
	Available    bool         `json:"available"`
	Description  string       `json:"description,omitempty"`
	LastModified int64        `json:"last_modified"`
	Permissions  []Permission `json:"permissions"`
}

// Clone returns a deep copy of the resource.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	c.Permissions = make([]Permission, len(r.Permissions))
	copy(c.Permissions, r.Permissions)
	return &c
}

// HasPermissionFor reports whether the resource carries an explicit grant
// for the given principal.
func (r *Resource) HasPermissionFor(entity int, group bool) bool {
	for _, p := range r.Permissions {
		if p.Entity == entity && p.Group == group {
			return true
		}
	}
	return false
}

// Group is a named collection of resource identifiers. It carries no
// permission semantics of its own.
type Group struct {
	ID          int    `json:"id"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Available   bool   `json:"available"`
	Member      []int  `json:"member"`
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	c.Member = make([]int, len(g.Member))
	copy(c.Member, g.Member)
	return &c
}
