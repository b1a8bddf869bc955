// Package storagetest provides an in-memory ResourceStorage used by the
// cache and event tests. It keeps the interface semantics of the Postgres
// store without a database.
package storagetest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aravindb26/middleware-sub022/pkg/resource"
	"github.com/aravindb26/middleware-sub022/pkg/storage"
)

// FakeStorage is a thread-safe in-memory ResourceStorage.
type FakeStorage struct {
	mu        sync.Mutex
	resources map[int]map[int]*resource.Resource
	deleted   map[int]map[int]*resource.Resource
	groups    map[int]map[int]*resource.Group

	// Calls counts invocations per method name, for decorator tests that
	// assert pass-through and cache-hit behavior.
	Calls map[string]int

	clock int64
}

var _ storage.ResourceStorage = (*FakeStorage)(nil)

// NewFakeStorage creates an empty fake.
func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		resources: make(map[int]map[int]*resource.Resource),
		deleted:   make(map[int]map[int]*resource.Resource),
		groups:    make(map[int]map[int]*resource.Group),
		Calls:     make(map[string]int),
	}
}

// Seed puts a resource into the store without going through InsertResource.
// A resource without permissions carries the implicit defaults.
func (f *FakeStorage) Seed(contextID int, res *resource.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := res.Clone()
	if len(clone.Permissions) == 0 {
		clone.Permissions = resource.DefaultPermissions()
	}
	f.contextResources(contextID)[res.ID] = clone
}

// SeedGroup puts a resource group into the store.
func (f *FakeStorage) SeedGroup(contextID int, g *resource.Group) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[contextID] == nil {
		f.groups[contextID] = make(map[int]*resource.Group)
	}
	f.groups[contextID][g.ID] = g.Clone()
}

func (f *FakeStorage) contextResources(contextID int) map[int]*resource.Resource {
	if f.resources[contextID] == nil {
		f.resources[contextID] = make(map[int]*resource.Resource)
	}
	return f.resources[contextID]
}

func (f *FakeStorage) record(method string) {
	f.Calls[method]++
}

func (f *FakeStorage) tick() int64 {
	f.clock++
	return f.clock
}

func (f *FakeStorage) GetResource(ctx context.Context, contextID, resourceID int) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetResource")
	res, ok := f.contextResources(contextID)[resourceID]
	if !ok {
		return nil, &resource.NotFoundError{Kind: "resource", ID: resourceID, ContextID: contextID}
	}
	return res.Clone(), nil
}

func (f *FakeStorage) GetResourceWith(ctx context.Context, q storage.Querier, contextID, resourceID int) (*resource.Resource, error) {
	f.mu.Lock()
	f.record("GetResourceWith")
	f.mu.Unlock()
	return f.GetResource(ctx, contextID, resourceID)
}

func (f *FakeStorage) GetByName(ctx context.Context, contextID int, name string) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetByName")
	if name == "" {
		return nil, nil
	}
	for _, res := range f.contextResources(contextID) {
		if res.Name == name {
			return res.Clone(), nil
		}
	}
	return nil, nil
}

func (f *FakeStorage) GetByMail(ctx context.Context, contextID int, mail string) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetByMail")
	if mail == "" {
		return nil, nil
	}
	for _, res := range f.contextResources(contextID) {
		if strings.EqualFold(res.Mail, mail) {
			return res.Clone(), nil
		}
	}
	return nil, nil
}

func (f *FakeStorage) SearchResources(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SearchResources")
	if pattern == "" {
		return nil, nil
	}
	var out []*resource.Resource
	for _, res := range f.contextResources(contextID) {
		if matchPattern(pattern, res.Name) || matchPattern(pattern, res.DisplayName) {
			out = append(out, res.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (f *FakeStorage) SearchResourcesForUser(ctx context.Context, contextID int, pattern string, userID int) ([]*resource.Resource, error) {
	f.mu.Lock()
	f.record("SearchResourcesForUser")
	f.mu.Unlock()
	return f.SearchResources(ctx, contextID, pattern)
}

func (f *FakeStorage) SearchResourcesByMail(ctx context.Context, contextID int, pattern string) ([]*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SearchResourcesByMail")
	if pattern == "" {
		return nil, nil
	}
	var out []*resource.Resource
	for _, res := range f.contextResources(contextID) {
		if matchPattern(pattern, res.Mail) {
			out = append(out, res.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (f *FakeStorage) SearchResourcesByPrivilege(ctx context.Context, contextID int, entities []int, privilege resource.SchedulingPrivilege) ([]*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SearchResourcesByPrivilege")
	var out []*resource.Resource
	for _, res := range f.contextResources(contextID) {
		for _, p := range res.Permissions {
			if p.Privilege != privilege {
				continue
			}
			for _, e := range entities {
				if p.Entity == e {
					out = append(out, res.Clone())
				}
			}
		}
	}
	sortByID(out)
	return out, nil
}

func (f *FakeStorage) ListModified(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListModified")
	var out []*resource.Resource
	for _, res := range f.contextResources(contextID) {
		if res.LastModified > since {
			out = append(out, res.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (f *FakeStorage) ListDeleted(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListDeleted")
	var out []*resource.Resource
	for _, res := range f.deleted[contextID] {
		if res.LastModified > since {
			out = append(out, res.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (f *FakeStorage) InsertResource(ctx context.Context, q storage.Querier, contextID int, res *resource.Resource, t storage.Type) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertResource")
	res.LastModified = f.tick()
	switch t {
	case storage.TypeDeleted:
		if f.deleted[contextID] == nil {
			f.deleted[contextID] = make(map[int]*resource.Resource)
		}
		f.deleted[contextID][res.ID] = res.Clone()
	default:
		clone := res.Clone()
		if len(clone.Permissions) == 0 {
			clone.Permissions = resource.DefaultPermissions()
		}
		f.contextResources(contextID)[res.ID] = clone
	}
	return nil
}

func (f *FakeStorage) UpdateResource(ctx context.Context, q storage.Querier, contextID int, res *resource.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateResource")
	if _, ok := f.contextResources(contextID)[res.ID]; !ok {
		return &resource.NotFoundError{Kind: "resource", ID: res.ID, ContextID: contextID}
	}
	res.LastModified = f.tick()
	f.contextResources(contextID)[res.ID] = res.Clone()
	return nil
}

func (f *FakeStorage) DeleteResourceByID(ctx context.Context, q storage.Querier, contextID, resourceID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteResourceByID")
	delete(f.contextResources(contextID), resourceID)
	return nil
}

func (f *FakeStorage) InsertPermissions(ctx context.Context, q storage.Querier, contextID, resourceID int, perms []resource.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertPermissions")
	res, ok := f.contextResources(contextID)[resourceID]
	if !ok {
		return &resource.NotFoundError{Kind: "resource", ID: resourceID, ContextID: contextID}
	}
	if len(perms) == 0 || resource.IsDefaultPermissions(perms) {
		res.Permissions = resource.DefaultPermissions()
		return nil
	}
	res.Permissions = append([]resource.Permission(nil), perms...)
	return nil
}

func (f *FakeStorage) DeletePermissions(ctx context.Context, q storage.Querier, contextID, resourceID int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeletePermissions")
	res, ok := f.contextResources(contextID)[resourceID]
	if !ok {
		return 0, nil
	}
	n := int64(len(res.Permissions))
	res.Permissions = resource.DefaultPermissions()
	return n, nil
}

func (f *FakeStorage) ResourcesWithPermissionsForEntity(ctx context.Context, q storage.Querier, contextID, entity int, group bool) ([]*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ResourcesWithPermissionsForEntity")
	var out []*resource.Resource
	for _, res := range f.contextResources(contextID) {
		if resource.IsDefaultPermissions(res.Permissions) {
			continue
		}
		for _, p := range res.Permissions {
			if p.Entity == entity && p.Group == group {
				out = append(out, res.Clone())
				break
			}
		}
	}
	sortByID(out)
	return out, nil
}

func (f *FakeStorage) GetGroup(ctx context.Context, contextID, groupID int) (*resource.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetGroup")
	g, ok := f.groups[contextID][groupID]
	if !ok {
		return nil, &resource.NotFoundError{Kind: "resource group", ID: groupID, ContextID: contextID}
	}
	return g.Clone(), nil
}

func (f *FakeStorage) GetGroups(ctx context.Context, contextID int) ([]*resource.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetGroups")
	var out []*resource.Group
	for _, g := range f.groups[contextID] {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeStorage) SearchGroups(ctx context.Context, contextID int, pattern string) ([]*resource.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SearchGroups")
	if pattern == "" {
		return nil, nil
	}
	var out []*resource.Group
	for _, g := range f.groups[contextID] {
		if matchPattern(pattern, g.Identifier) {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sortByID(res []*resource.Resource) {
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
}

// matchPattern evaluates the "*"/"?" wildcard syntax case-insensitively.
func matchPattern(pattern, value string) bool {
	return matchRunes([]rune(strings.ToLower(pattern)), []rune(strings.ToLower(value)))
}

func matchRunes(pattern, value []rune) bool {
	if len(pattern) == 0 {
		return len(value) == 0
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(value); i++ {
			if matchRunes(pattern[1:], value[i:]) {
				return true
			}
		}
		return false
	case '?':
		return len(value) > 0 && matchRunes(pattern[1:], value[1:])
	default:
		return len(value) > 0 && value[0] == pattern[0] && matchRunes(pattern[1:], value[1:])
	}
}
