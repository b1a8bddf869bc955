package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gopkg.in/yaml.v3"

	"github.com/aravindb26/middleware-sub022/pkg/observability"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

// PropertyService resolves configuration properties. Resolution order is
// per-context value from the context_attribute table, then the file or
// inline default, then the caller's default. Per-context values are cached
// with a TTL; file defaults are hot-reloaded when the file changes.
type PropertyService struct {
	db  *sql.DB
	log *observability.Logger

	mu           sync.RWMutex
	fileDefaults map[string]string
	defaults     map[string]string

	overrides *expirable.LRU[int, map[string]string]

	watcher *fsnotify.Watcher
	done    chan struct{}
}

var _ resource.PropertyLookup = (*PropertyService)(nil)

// NewPropertyService creates a property service. db may be nil, in which
// case only defaults are served.
func NewPropertyService(db *sql.DB, cfg PropertiesConfig, log *observability.Logger) *PropertyService {
	defaults := make(map[string]string, len(cfg.Defaults))
	for name, value := range cfg.Defaults {
		defaults[name] = value
	}
	return &PropertyService{
		db:        db,
		log:       log,
		defaults:  defaults,
		overrides: expirable.NewLRU[int, map[string]string](cfg.ContextCacheSize, nil, cfg.ContextCacheTTL),
		done:      make(chan struct{}),
	}
}

// WatchFile loads property defaults from the YAML file and reloads them
// whenever the file changes.
func (s *PropertyService) WatchFile(path string) error {
	if err := s.loadFile(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create property file watcher: %w", err)
	}
	// Watch the directory: editors replace the file rather than write in
	// place, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch property file %s: %w", path, err)
	}
	s.watcher = watcher

	go s.watchLoop(path)
	return nil
}

// Close stops the file watcher, if any.
func (s *PropertyService) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *PropertyService) watchLoop(path string) {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.loadFile(path); err != nil {
				s.log.WithError(err).Warn("property file reload failed", "file", path)
				continue
			}
			s.log.Info("property file reloaded", "file", path)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("property file watcher error", "file", path)
		}
	}
}

func (s *PropertyService) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read property file %s: %w", path, err)
	}
	var file struct {
		Properties map[string]string `yaml:"properties"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse property file %s: %w", path, err)
	}

	s.mu.Lock()
	s.fileDefaults = file.Properties
	s.mu.Unlock()
	return nil
}

// SetDefault overrides an inline default, mainly for tests.
func (s *PropertyService) SetDefault(name, value string) {
	s.mu.Lock()
	s.defaults[name] = value
	s.mu.Unlock()
}

// InvalidateContext drops the cached overrides of one context, forcing a
// database re-read on the next lookup.
func (s *PropertyService) InvalidateContext(contextID int) {
	s.overrides.Remove(contextID)
}

// StringProperty resolves a property to a string.
func (s *PropertyService) StringProperty(ctx context.Context, contextID int, name, defaultValue string) (string, error) {
	overrides, err := s.contextOverrides(ctx, contextID)
	if err != nil {
		return "", err
	}
	if value, ok := overrides[name]; ok {
		return value, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok := s.fileDefaults[name]; ok {
		return value, nil
	}
	if value, ok := s.defaults[name]; ok {
		return value, nil
	}
	return defaultValue, nil
}

// BoolProperty resolves a property to a boolean. Unparseable values fall
// back to the default.
func (s *PropertyService) BoolProperty(ctx context.Context, contextID int, name string, defaultValue bool) (bool, error) {
	value, err := s.StringProperty(ctx, contextID, name, "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return defaultValue, nil
	}
}

func (s *PropertyService) contextOverrides(ctx context.Context, contextID int) (map[string]string, error) {
	if s.db == nil {
		return nil, nil
	}
	if cached, ok := s.overrides.Get(contextID); ok {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM context_attribute WHERE cid = $1`, contextID)
	if err != nil {
		return nil, resource.WrapStorage("load context attributes", err)
	}
	defer rows.Close()

	overrides := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, resource.WrapStorage("scan context attribute", err)
		}
		overrides[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, resource.WrapStorage("load context attributes", err)
	}

	s.overrides.Add(contextID, overrides)
	return overrides, nil
}
