package postgres

import (
	"context"
	"time"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

// IncrementUseCount records one booking of a principal by a user. The
// counter biases personalized resource search toward frequently booked
// resources.
func (s *ResourceStore) IncrementUseCount(ctx context.Context, contextID, userID, principal int) error {
	query := `INSERT INTO "principalUseCount" (cid,"user",principal,value,"lastModified") VALUES ($1,$2,$3,1,$4) ` +
		`ON CONFLICT (cid,"user",principal) DO UPDATE SET value = "principalUseCount".value + 1, "lastModified" = $4`
	_, err := s.db.ExecContext(ctx, query, contextID, userID, principal, time.Now().UnixMilli())
	if err != nil {
		return resource.WrapStorage("increment use count", err)
	}
	return nil
}

// DeleteOutdatedUseCounts purges use-count rows not touched since the given
// retention window and returns the number of deleted rows. Run periodically
// so stale booking habits stop dominating search order.
func (s *ResourceStore) DeleteOutdatedUseCounts(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM "principalUseCount" WHERE "lastModified" < $1`, cutoff)
	if err != nil {
		return 0, resource.WrapStorage("delete outdated use counts", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, resource.WrapStorage("delete outdated use counts", err)
	}
	return n, nil
}
