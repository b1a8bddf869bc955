// Package resource defines the domain model for bookable resources
// (meeting rooms, equipment) and their scheduling permissions.
//
// # Overview
//
// A Resource carries an ordered set of ResourcePermission grants, each
// binding a principal (user or group) to a SchedulingPrivilege. A resource
// with no explicitly stored grants implicitly carries DefaultPermissions:
// the universal group may book it directly. This sparse representation is
// load-bearing for the storage layer and must not be "normalized away".
//
// # Validation
//
// ValidatePermissions checks a permission set against the closed rules of
// the permission model: no duplicate principals, no grants for guests, a
// booking delegate whenever ask-to-book is present, and (when simple
// permission mode is enabled for the context) one of exactly two canonical
// set shapes.
//
// # Related Packages
//
//   - pkg/storage/postgres: relational persistence of resources and grants
//   - pkg/storage/cache: read-through caching decorator
//   - pkg/events: cascade repair of grants when principals are deleted
package resource
