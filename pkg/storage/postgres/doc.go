// Package postgres implements the relational resource store on PostgreSQL.
//
// Two tables carry the permission model: resource holds the bookable
// entities, resource_permissions holds one row per explicit grant. A
// resource with zero permission rows implicitly carries the default
// permissions; this sparse representation is deliberate and the
// search-by-privilege union depends on it, so default sets are never
// persisted as rows.
//
// The package also provides the principal directory lookups (users and
// groups) the permission validator needs, booking use-count tracking for
// personalized search ordering, and the ordered schema migrations.
package postgres
