package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"runbook/internal/api"
	"runbook/internal/config"
	"runbook/pkg/logging"
)

// State is the lifecycle state of a plugin.
type State string

const (
	StateDiscovered  State = "discovered"
	StateInitialized State = "initialized"
	StateFailed      State = "failed"
)

// Descriptor is the read-only view of a plugin exposed to reporting tools.
type Descriptor struct {
	// Name is the unique plugin name
	Name string

	// Description provides human-readable documentation
	Description string

	// Dependencies are the plugin names that must initialize first
	Dependencies []string

	// Origin is "builtin" or the manifest path the plugin was loaded from
	Origin string

	// State is the current lifecycle state
	State State
}

// instance pairs a descriptor with its constructed implementation.
type instance struct {
	Descriptor
	impl api.Plugin
}

// Registry discovers installed plugins and performs dependency-ordered
// initialization with cascading-failure semantics. Discovery tolerates
// individual plugin failures: a candidate that cannot be loaded is recorded
// in the failed map, never thrown, so the rest of the system keeps working.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]api.PluginFactory
	plugins   map[string]*instance
	failed    map[string]error
}

// NewRegistry creates a plugin registry with the given factory table.
// Factories are the explicit name-to-constructor registration table that
// manifests reference through their entry field.
func NewRegistry(factories map[string]api.PluginFactory) *Registry {
	if factories == nil {
		factories = map[string]api.PluginFactory{}
	}
	return &Registry{
		factories: factories,
		plugins:   make(map[string]*instance),
		failed:    make(map[string]error),
	}
}

// RegisterFactory adds a factory to the table. Registration after discovery
// has run has no effect on already-discovered plugins.
func (r *Registry) RegisterFactory(name string, factory api.PluginFactory) error {
	if name == "" {
		return fmt.Errorf("factory name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for %s cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("factory %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Discover populates the plugin map from builtin factories and from
// plugin.yaml manifests found in the plugins directory. Individual load
// failures land in the failed map with the originating error.
func (r *Registry) Discover(pluginsDir string, builtins []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]*instance)
	r.failed = make(map[string]error)

	for _, name := range builtins {
		factory, ok := r.factories[name]
		if !ok {
			r.failed[name] = &api.PluginLoadError{Plugin: name, Err: fmt.Errorf("no factory registered for builtin %s", name)}
			continue
		}
		r.addLocked(name, "", "builtin", nil, factory)
	}

	if pluginsDir == "" {
		return
	}
	entries, err := os.ReadDir(pluginsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("PluginRegistry", "Cannot read plugins directory %s: %v", pluginsDir, err)
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(pluginsDir, entry.Name(), ManifestFileName)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		manifest, err := LoadManifest(manifestPath)
		if err != nil {
			r.failed[entry.Name()] = &api.PluginLoadError{Plugin: entry.Name(), Err: err}
			logging.Warn("PluginRegistry", "Skipping plugin %s: %v", entry.Name(), err)
			continue
		}

		factory, ok := r.factories[manifest.Entry]
		if !ok {
			r.failed[manifest.Name] = &api.PluginLoadError{
				Plugin: manifest.Name,
				Err:    fmt.Errorf("manifest entry %q has no registered factory", manifest.Entry),
			}
			logging.Warn("PluginRegistry", "Skipping plugin %s: entry %q not registered", manifest.Name, manifest.Entry)
			continue
		}

		r.addLocked(manifest.Name, manifest.Description, manifestPath, manifest.Requires, factory)
	}

	logging.Info("PluginRegistry", "Discovered %d plugins (%d failed)", len(r.plugins), len(r.failed))
}

// addLocked constructs and registers one plugin instance. The caller holds
// the write lock.
func (r *Registry) addLocked(name, description, origin string, extraDeps []string, factory api.PluginFactory) {
	impl := factory()
	if impl == nil {
		r.failed[name] = &api.PluginLoadError{Plugin: name, Err: fmt.Errorf("factory returned nil plugin")}
		return
	}
	if _, exists := r.plugins[name]; exists {
		logging.Warn("PluginRegistry", "Duplicate plugin %s ignored (origin %s)", name, origin)
		return
	}

	deps := mergeDependencies(impl.Dependencies(), extraDeps)
	r.plugins[name] = &instance{
		Descriptor: Descriptor{
			Name:         name,
			Description:  description,
			Dependencies: deps,
			Origin:       origin,
			State:        StateDiscovered,
		},
		impl: impl,
	}
}

// InitializePlugins performs dependency-ordered initialization using
// fixed-point passes over the pending set:
//
//   - a plugin whose dependency already failed is failed too, naming the
//     dependency (cascading failure)
//   - a plugin whose dependency is not yet resolved is deferred to the next
//     pass
//   - a plugin with all dependencies initialized is initialized; an
//     Initialize error marks it failed
//
// When a full pass makes no progress, every plugin still pending is failed
// with an unresolved-or-circular-dependency error. This terminates in at
// most N passes for N plugins and needs no explicit cycle detection.
func (r *Registry) InitializePlugins(ctx context.Context, cfg *config.RunbookConfig, secrets map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		pending = append(pending, name)
	}
	// Deterministic pass order makes failures reproducible
	sort.Strings(pending)

	initialized := make(map[string]bool)

	for len(pending) > 0 {
		var deferred []string
		progress := false

		for _, name := range pending {
			inst := r.plugins[name]

			failedDep, blocked := r.checkDependenciesLocked(inst, initialized)
			if failedDep != "" {
				r.markFailedLocked(name, &api.PluginInitializationError{
					Plugin: name,
					Reason: fmt.Sprintf("dependency %q failed", failedDep),
				})
				progress = true
				continue
			}
			if blocked {
				deferred = append(deferred, name)
				continue
			}

			if err := inst.impl.Initialize(ctx, cfg.PluginSettings(name), secrets); err != nil {
				r.markFailedLocked(name, &api.PluginInitializationError{
					Plugin: name,
					Reason: "initialize failed",
					Err:    err,
				})
			} else {
				inst.State = StateInitialized
				initialized[name] = true
				logging.Debug("PluginRegistry", "Initialized plugin %s", name)
			}
			progress = true
		}

		if !progress {
			for _, name := range deferred {
				r.markFailedLocked(name, &api.PluginInitializationError{
					Plugin: name,
					Reason: "unresolved or circular dependency",
				})
			}
			break
		}
		pending = deferred
	}

	logging.Info("PluginRegistry", "Initialized %d plugins (%d failed)", len(initialized), len(r.failed))
}

// checkDependenciesLocked inspects one plugin's dependencies. It returns the
// name of a failed dependency (cascade), or blocked=true when a dependency is
// neither initialized nor failed yet.
func (r *Registry) checkDependenciesLocked(inst *instance, initialized map[string]bool) (failedDep string, blocked bool) {
	for _, dep := range inst.Dependencies {
		if _, failed := r.failed[dep]; failed {
			return dep, false
		}
		if !initialized[dep] {
			blocked = true
		}
	}
	return "", blocked
}

// markFailedLocked records the failure and removes the plugin from the
// active map. The caller holds the write lock.
func (r *Registry) markFailedLocked(name string, err error) {
	r.failed[name] = err
	delete(r.plugins, name)
	logging.Warn("PluginRegistry", "Plugin %s failed: %v", name, err)
}

// Get returns an initialized plugin by name.
func (r *Registry) Get(name string) (api.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, exists := r.plugins[name]
	if !exists || inst.State != StateInitialized {
		return nil, false
	}
	return inst.impl, true
}

// ListInstalled returns the descriptors of all active plugins, sorted by
// name.
func (r *Registry) ListInstalled() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.plugins))
	for _, inst := range r.plugins {
		descriptors = append(descriptors, inst.Descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors
}

// ListFailed returns a copy of the failed plugin map.
func (r *Registry) ListFailed() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	failed := make(map[string]error, len(r.failed))
	for name, err := range r.failed {
		failed[name] = err
	}
	return failed
}

// WorkflowDirs returns the workflow directories shipped by active plugins,
// keyed by plugin name. Only manifest-based plugins have one.
func (r *Registry) WorkflowDirs() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dirs := make(map[string]string)
	for name, inst := range r.plugins {
		if inst.Origin == "builtin" {
			continue
		}
		dir := filepath.Join(filepath.Dir(inst.Origin), config.WorkflowsDirName)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs[name] = dir
		}
	}
	return dirs
}

func mergeDependencies(declared, extra []string) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, dep := range append(append([]string{}, declared...), extra...) {
		if dep == "" || seen[dep] {
			continue
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	return deps
}
