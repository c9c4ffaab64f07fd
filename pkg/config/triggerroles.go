package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/meshfoundry/idhub/pkg/observability"
)

// triggerRolesFile is the YAML layout of the trigger roles file:
//
//	trigger_roles:
//	  technical_roles_management:
//	    - "Identity Wallet Management"
type triggerRolesFile struct {
	TriggerRoles map[string][]string `yaml:"trigger_roles"`
}

// LoadTriggerRoles reads the owning-client to role-name mapping from a YAML
// file
func LoadTriggerRoles(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger roles file: %w", err)
	}
	var parsed triggerRolesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse trigger roles file: %w", err)
	}
	if parsed.TriggerRoles == nil {
		parsed.TriggerRoles = map[string][]string{}
	}
	return parsed.TriggerRoles, nil
}

// TriggerRolesWatcher serves the current trigger role mapping and reloads it
// when the file changes. A reload that fails to parse keeps the previous
// mapping.
type TriggerRolesWatcher struct {
	path    string
	logger  *observability.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	roles map[string][]string
}

// NewTriggerRolesWatcher loads the file and starts watching it for changes.
// Close must be called to release the watch.
func NewTriggerRolesWatcher(path string, logger *observability.Logger) (*TriggerRolesWatcher, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	roles, err := LoadTriggerRoles(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory; editors and configmap mounts replace the file
	// rather than writing it in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch trigger roles file: %w", err)
	}

	w := &TriggerRolesWatcher{
		path:    path,
		logger:  logger,
		watcher: watcher,
		roles:   roles,
	}
	go w.run()
	return w, nil
}

// Roles returns the current mapping. The returned map must not be mutated.
func (w *TriggerRolesWatcher) Roles() map[string][]string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.roles
}

// Close stops watching the file
func (w *TriggerRolesWatcher) Close() error {
	return w.watcher.Close()
}

func (w *TriggerRolesWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("trigger roles watcher error")
		}
	}
}

func (w *TriggerRolesWatcher) reload() {
	roles, err := LoadTriggerRoles(w.path)
	if err != nil {
		w.logger.WithError(err).Error("failed to reload trigger roles, keeping previous mapping")
		return
	}
	w.mu.Lock()
	w.roles = roles
	w.mu.Unlock()
	w.logger.WithField("clients", len(roles)).Info("trigger roles reloaded")
}
