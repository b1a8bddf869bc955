package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aravindb26/middleware-sub022/pkg/observability"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
	"github.com/aravindb26/middleware-sub022/pkg/storage"
)

// CachingResourceStore wraps a ResourceStorage with Redis caching.
type CachingResourceStore struct {
	delegate storage.ResourceStorage
	redis    *redis.Client
	cfg      storage.Config
	log      *observability.Logger
	metrics  *observability.Metrics
}

var _ storage.CachingAwareStorage = (*CachingResourceStore)(nil)

// New creates a caching decorator over delegate using the given Redis
// client. The client is assumed to be connected; ownership stays with the
// caller.
func New(delegate storage.ResourceStorage, client *redis.Client, cfg storage.Config, log *observability.Logger, metrics *observability.Metrics) *CachingResourceStore {
	return &CachingResourceStore{
		delegate: delegate,
		redis:    client,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
	}
}

// Connect dials Redis per the storage configuration and verifies
// connectivity.
func Connect(ctx context.Context, cfg storage.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func resourceKey(contextID, resourceID int) string {
	return fmt.Sprintf("resource:%d:%d", contextID, resourceID)
}

func listKey(contextID int) string {
	return fmt.Sprintf("resource:%d:all", contextID)
}

// GetResource serves the resource from cache when possible. Every hit
// decodes a fresh copy, so callers cannot mutate the cached state.
func (c *CachingResourceStore) GetResource(ctx context.Context, contextID, resourceID int) (*resource.Resource, error) {
	key := resourceKey(contextID, resourceID)
	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var res resource.Resource
		if err := json.Unmarshal([]byte(cached), &res); err == nil {
			c.metrics.CacheHitsTotal.WithLabelValues("resource").Inc()
			return &res, nil
		}
	} else if err != redis.Nil {
		c.log.Warn("cache read failed, falling through to store", "key", key, "error", err.Error())
	}

	c.metrics.CacheMissesTotal.WithLabelValues("resource").Inc()
	res, err := c.delegate.GetResource(ctx, contextID, resourceID)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, res, c.cfg.ResourceTTL)
	return res, nil
}

// GetResourceWith bypasses the cache: querier-scoped reads run inside a
// caller-owned transaction whose uncommitted state the cache cannot see.
func (c *CachingResourceStore) GetResourceWith(ctx context.Context, q storage.Querier, contextID, resourceID int) (*resource.Resource, error) {
	return c.delegate.GetResourceWith(ctx, q, contextID, resourceID)
}

// GetByName is served from the backing store.
func (c *CachingResourceStore) GetByName(ctx context.Context, contextID int, name string) (*resource.Resource, error) {
	return c.delegate.GetByName(ctx, contextID, name)
}

// GetByMail is served from the backing store.
func (c *CachingResourceStore) GetByMail(ctx context.Context, contextID int, mail string) (*resource.Resource, error) {
	return c.delegate.GetByMail(ctx, contextID, mail)
}

// SearchResources caches the id list for the universal wildcard pattern and
// resolves each id through GetResource, composing the list cache with the
// per-resource cache. Other patterns go to the backing store.
func (c *CachingResourceStore) SearchResources(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error) {
	if pattern != "*" {
		return c.delegate.SearchResources(ctx, contextID, pattern)
	}

	key := listKey(contextID)
	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var ids []int
		if jsonErr := json.Unmarshal([]byte(cached), &ids); jsonErr == nil {
			c.metrics.CacheHitsTotal.WithLabelValues("list").Inc()
			resources := make([]*resource.Resource, 0, len(ids))
			for _, id := range ids {
				res, err := c.GetResource(ctx, contextID, id)
				if err != nil {
					// A list entry can go stale between the id-list read
					// and the per-id resolve; a vanished resource is not
					// an error for the list as a whole.
					if resource.IsNotFound(err) {
						continue
					}
					return nil, err
				}
				resources = append(resources, res)
			}
			return resources, nil
		}
	} else if err != redis.Nil {
		c.log.Warn("cache read failed, falling through to store", "key", key, "error", err.Error())
	}

	c.metrics.CacheMissesTotal.WithLabelValues("list").Inc()
	resources, err := c.delegate.SearchResources(ctx, contextID, pattern)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(resources))
	for i, res := range resources {
		ids[i] = res.ID
		c.put(ctx, resourceKey(contextID, res.ID), res, c.cfg.ResourceTTL)
	}
	c.put(ctx, key, ids, c.cfg.ListTTL)
	return resources, nil
}

// SearchResourcesForUser is served from the backing store: its ordering
// depends on per-user use counts, which makes shared caching useless.
func (c *CachingResourceStore) SearchResourcesForUser(ctx context.Context, contextID int, pattern string, userID int) ([]*resource.Resource, error) {
	return c.delegate.SearchResourcesForUser(ctx, contextID, pattern, userID)
}

// SearchResourcesByMail is served from the backing store.
func (c *CachingResourceStore) SearchResourcesByMail(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error) {
	return c.delegate.SearchResourcesByMail(ctx, contextID, pattern)
}

// SearchResourcesByPrivilege is served from the backing store.
func (c *CachingResourceStore) SearchResourcesByPrivilege(ctx context.Context, contextID int, entities []int, privilege resource.SchedulingPrivilege) ([]*resource.Resource, error) {
	return c.delegate.SearchResourcesByPrivilege(ctx, contextID, entities, privilege)
}

// ListModified is served from the backing store.
func (c *CachingResourceStore) ListModified(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error) {
	return c.delegate.ListModified(ctx, contextID, since)
}

// ListDeleted is served from the backing store.
func (c *CachingResourceStore) ListDeleted(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error) {
	return c.delegate.ListDeleted(ctx, contextID, since)
}

// InsertResource delegates, then invalidates. Tombstone inserts leave the
// active caches untouched.
func (c *CachingResourceStore) InsertResource(ctx context.Context, q storage.Querier, contextID int, res *resource.Resource, t storage.Type) error {
	if err := c.delegate.InsertResource(ctx, q, contextID, res, t); err != nil {
		return err
	}
	if t != storage.TypeActive {
		return nil
	}
	return c.invalidate(ctx, contextID, res.ID, "insert")
}

// UpdateResource delegates, then invalidates.
func (c *CachingResourceStore) UpdateResource(ctx context.Context, q storage.Querier, contextID int, res *resource.Resource) error {
	if err := c.delegate.UpdateResource(ctx, q, contextID, res); err != nil {
		return err
	}
	return c.invalidate(ctx, contextID, res.ID, "update")
}

// DeleteResourceByID delegates, then invalidates.
func (c *CachingResourceStore) DeleteResourceByID(ctx context.Context, q storage.Querier, contextID, resourceID int) error {
	if err := c.delegate.DeleteResourceByID(ctx, q, contextID, resourceID); err != nil {
		return err
	}
	return c.invalidate(ctx, contextID, resourceID, "delete")
}

// InsertPermissions delegates, then invalidates.
func (c *CachingResourceStore) InsertPermissions(ctx context.Context, q storage.Querier, contextID, resourceID int, perms []resource.Permission) error {
	if err := c.delegate.InsertPermissions(ctx, q, contextID, resourceID, perms); err != nil {
		return err
	}
	return c.invalidate(ctx, contextID, resourceID, "insert_permissions")
}

// DeletePermissions delegates, then invalidates.
func (c *CachingResourceStore) DeletePermissions(ctx context.Context, q storage.Querier, contextID, resourceID int) (int64, error) {
	n, err := c.delegate.DeletePermissions(ctx, q, contextID, resourceID)
	if err != nil {
		return n, err
	}
	return n, c.invalidate(ctx, contextID, resourceID, "delete_permissions")
}

// ResourcesWithPermissionsForEntity is served from the backing store.
func (c *CachingResourceStore) ResourcesWithPermissionsForEntity(ctx context.Context, q storage.Querier, contextID, entity int, group bool) ([]*resource.Resource, error) {
	return c.delegate.ResourcesWithPermissionsForEntity(ctx, q, contextID, entity, group)
}

// GetGroup is served from the backing store.
func (c *CachingResourceStore) GetGroup(ctx context.Context, contextID, groupID int) (*resource.Group, error) {
	return c.delegate.GetGroup(ctx, contextID, groupID)
}

// GetGroups is served from the backing store.
func (c *CachingResourceStore) GetGroups(ctx context.Context, contextID int) ([]*resource.Group, error) {
	return c.delegate.GetGroups(ctx, contextID)
}

// SearchGroups is served from the backing store.
func (c *CachingResourceStore) SearchGroups(ctx context.Context, contextID int, pattern string) ([]*resource.Group, error) {
	return c.delegate.SearchGroups(ctx, contextID, pattern)
}

// Invalidate drops the cached state of one resource and the list cache of
// its context. It exists for out-of-band database mutations that bypass
// this decorator.
func (c *CachingResourceStore) Invalidate(ctx context.Context, contextID, resourceID int) error {
	return c.invalidate(ctx, contextID, resourceID, "explicit")
}

func (c *CachingResourceStore) invalidate(ctx context.Context, contextID, resourceID int, reason string) error {
	if err := c.redis.Del(ctx, resourceKey(contextID, resourceID), listKey(contextID)).Err(); err != nil {
		return resource.WrapStorage("cache invalidate", err)
	}
	c.metrics.CacheInvalidationsTotal.WithLabelValues(reason).Inc()
	return nil
}

func (c *CachingResourceStore) put(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err.Error())
	}
}
