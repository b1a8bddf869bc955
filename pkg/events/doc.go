// Package events carries entity-deletion notifications to interested
// subsystems before the deleted record is finally purged.
//
// Dispatch is synchronous and runs on the transaction of the surrounding
// deletion, so a listener's repairs commit or roll back together with the
// deletion itself. The resource listener rewrites permission sets that
// referenced a deleted user or group, synthesizing a fallback delegate
// where the removal would leave ask-to-book grants unapprovable.
package events
