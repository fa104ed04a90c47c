package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"runbook/internal/api"
	"runbook/pkg/logging"
	pkgstrings "runbook/pkg/strings"

	"github.com/fsnotify/fsnotify"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// afterHook is the implicit hook appended at the very end of a merged step
// list, regardless of whether the base declares a placeholder for it.
const afterHook = "after"

// watchDebounce is the time to wait after the last file change before
// reloading, so editors that write in several passes trigger one reload.
const watchDebounce = 500 * time.Millisecond

// Registry composes a precedence-ordered list of workflow sources, resolves
// extends chains and hook injection, and caches the resulting parsed
// workflows for the life of the registry instance.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	cache   *gocache.Cache
}

// NewRegistry creates a workflow registry. Sources must be given in strict
// precedence order: project > user > system > plugin.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{
		sources: sources,
		cache:   gocache.New(gocache.NoExpiration, 0),
	}
}

// Discover enumerates all unique workflow names across all sources. Sources
// are scanned concurrently, then merged in precedence order: the first
// occurrence of a name wins and lower-precedence duplicates are silently
// dropped. Discovery never fails; unreadable or malformed files are skipped
// by the sources.
func (r *Registry) Discover() []api.WorkflowInfo {
	r.mu.RLock()
	sources := r.sources
	r.mu.RUnlock()

	results := make([][]api.WorkflowInfo, len(sources))
	var g errgroup.Group
	for i, source := range sources {
		g.Go(func() error {
			results[i] = source.Discover()
			return nil
		})
	}
	// Scan goroutines only collect; they never return an error.
	_ = g.Wait()

	seen := make(map[string]bool)
	var infos []api.WorkflowInfo
	for _, sourceInfos := range results {
		for _, info := range sourceInfos {
			if seen[info.Name] {
				logging.Debug("WorkflowRegistry", "Workflow %s from %s shadowed by higher-precedence source", info.Name, info.Source)
				continue
			}
			seen[info.Name] = true
			infos = append(infos, info)
		}
	}
	return infos
}

// Get resolves a workflow by name into its fully-merged, ready-to-execute
// form. The result is cached until Reload is called. The reference may be
// namespaced as "<sourceTag>:<name>" to restrict resolution to one source.
func (r *Registry) Get(ref string) (*api.ParsedWorkflow, error) {
	if cached, found := r.cache.Get(ref); found {
		return cached.(*api.ParsedWorkflow), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	def, tag, err := r.resolve(ref, make(map[string]bool), nil)
	if err != nil {
		return nil, err
	}

	parsed, err := finalize(def, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workflow %s: %w", ref, err)
	}

	r.cache.Set(ref, parsed, gocache.NoExpiration)
	logging.Debug("WorkflowRegistry", "Resolved workflow %s (%d steps) from %s", parsed.Name, len(parsed.Steps), tag)
	return parsed, nil
}

// Reload invalidates all cached parsed workflows.
func (r *Registry) Reload() {
	r.cache.Flush()
	logging.Info("WorkflowRegistry", "Workflow cache flushed")
}

// Watch monitors the directory-backed sources for changes and reloads the
// registry when a workflow file is created, modified or removed. onChange is
// invoked after each reload. Watch blocks until the context is cancelled.
func (r *Registry) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	r.mu.RLock()
	for _, source := range r.sources {
		dirSource, ok := source.(*DirSource)
		if !ok {
			continue
		}
		if err := watcher.Add(dirSource.Dir()); err != nil {
			logging.Debug("WorkflowRegistry", "Not watching %s: %v", dirSource.Dir(), err)
			continue
		}
		logging.Debug("WorkflowRegistry", "Watching %s", dirSource.Dir())
	}
	r.mu.RUnlock()

	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isWorkflowFile(event.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("WorkflowRegistry", "Watcher error: %v", err)
		case <-fire:
			r.Reload()
			if onChange != nil {
				onChange()
			}
		}
	}
}

func isWorkflowFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// resolve parses the referenced workflow definition and recursively merges
// its extends chain, depth-first. The visited set tracks in-progress
// resolutions so a cyclic extends chain fails fast instead of recursing
// indefinitely.
func (r *Registry) resolve(ref string, visited map[string]bool, chain []string) (*api.WorkflowDefinition, string, error) {
	source, path, ok := r.findWorkflowFile(ref)
	if !ok {
		return nil, "", api.NewWorkflowNotFoundError(ref)
	}

	key := source.Tag() + ":" + path
	if visited[key] {
		return nil, "", &api.CyclicExtendsError{Chain: append(chain, ref)}
	}
	visited[key] = true
	defer delete(visited, key)

	data, err := source.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read workflow file %s: %w", path, err)
	}

	var def api.WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, "", fmt.Errorf("failed to parse workflow file %s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = nameFromRef(ref)
	}

	if def.Extends == "" {
		return &def, source.Tag(), nil
	}

	base, _, err := r.resolve(def.Extends, visited, append(chain, ref))
	if err != nil {
		if api.IsNotFound(err) {
			return nil, "", &api.NotFoundError{
				ResourceType: "workflow",
				ResourceName: def.Extends,
				Message:      fmt.Sprintf("workflow %s extends unknown workflow %s", def.Name, def.Extends),
			}
		}
		return nil, "", err
	}

	return mergeConfigs(base, &def), source.Tag(), nil
}

// findWorkflowFile scans sources in precedence order for the referenced
// workflow. A reference prefixed with a source tag ("user:release",
// "plugin:github:publish") restricts the scan to that source.
func (r *Registry) findWorkflowFile(ref string) (Source, string, bool) {
	for _, source := range r.sources {
		name := ref
		if prefixed := strings.TrimPrefix(ref, source.Tag()+":"); prefixed != ref {
			name = prefixed
		} else if strings.Contains(ref, ":") {
			// Namespaced reference for a different source
			continue
		}
		if path, ok := source.Find(name); ok {
			return source, path, true
		}
	}
	return nil, "", false
}

func nameFromRef(ref string) string {
	if idx := strings.LastIndex(ref, ":"); idx >= 0 {
		return ref[idx+1:]
	}
	return ref
}

// mergeConfigs merges a fully-resolved parent definition into its child.
// Scalar metadata is overridden by the child when present, params are a
// shallow child-wins override, and the step list is resolved via hook
// injection:
//
//   - a hook placeholder in the parent is replaced in place by the steps the
//     child registered under that hook name; the placeholder itself is kept
//     (after the injected steps) so deeper descendants can inject too
//   - the implicit "after" hook is appended at the very end of the merged
//     list regardless of its position in the parent
//   - a child that declares its own steps and no hook map replaces the
//     parent's steps entirely
func mergeConfigs(parent, child *api.WorkflowDefinition) *api.WorkflowDefinition {
	merged := &api.WorkflowDefinition{
		Name:        parent.Name,
		Description: parent.Description,
		Category:    parent.Category,
		Hooks:       parent.Hooks,
	}

	if child.Name != "" {
		merged.Name = child.Name
	}
	if child.Description != "" {
		merged.Description = child.Description
	}
	if child.Category != "" {
		merged.Category = child.Category
	}

	merged.Params = make(map[string]interface{}, len(parent.Params)+len(child.Params))
	for k, v := range parent.Params {
		merged.Params[k] = v
	}
	for k, v := range child.Params {
		merged.Params[k] = v
	}

	switch {
	case len(child.Hooks.Inject) > 0:
		merged.Steps = injectHooks(parent.Steps, child.Hooks.Inject)
	case len(child.Steps) > 0:
		merged.Steps = child.Steps
	default:
		merged.Steps = parent.Steps
	}

	return merged
}

// injectHooks walks the base step list replacing hook placeholders with the
// steps registered for them.
func injectHooks(base []api.StepSpec, inject map[string][]api.StepSpec) []api.StepSpec {
	var steps []api.StepSpec
	for _, step := range base {
		if !step.IsHookPlaceholder() {
			steps = append(steps, step)
			continue
		}
		if step.Hook == afterHook {
			// Handled below, independent of its position in the base
			steps = append(steps, step)
			continue
		}
		steps = append(steps, inject[step.Hook]...)
		steps = append(steps, step)
	}
	steps = append(steps, inject[afterHook]...)
	return steps
}

// finalize validates the merged definition, strips the remaining hook
// placeholders, assigns unique step IDs and freezes the result into a
// ParsedWorkflow.
func finalize(def *api.WorkflowDefinition, sourceTag string) (*api.ParsedWorkflow, error) {
	var steps []api.StepSpec
	for i, step := range def.Steps {
		if step.IsHookPlaceholder() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("invalid step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}

	assignStepIDs(steps)

	return &api.ParsedWorkflow{
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		Source:      sourceTag,
		Params:      def.Params,
		Steps:       steps,
	}, nil
}

// assignStepIDs derives an identifier for every step that lacks one and
// disambiguates collisions by appending _1, _2, ... in discovery order.
func assignStepIDs(steps []api.StepSpec) {
	used := make(map[string]bool)
	for i := range steps {
		base := steps[i].ID
		if base == "" {
			switch {
			case steps[i].Name != "":
				base = pkgstrings.Slugify(steps[i].Name)
			case steps[i].Plugin != "":
				base = pkgstrings.Slugify(steps[i].Plugin + "_" + steps[i].Step)
			case steps[i].Workflow != "":
				base = pkgstrings.Slugify(steps[i].Workflow)
			}
		}
		if base == "" {
			base = fmt.Sprintf("step_%d", i+1)
		}

		id := base
		for n := 1; used[id]; n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		used[id] = true
		steps[i].ID = id
	}
}
