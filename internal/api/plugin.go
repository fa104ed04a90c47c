package api

import "context"

// StepFunc is the contract every plugin step function satisfies. The params
// map has already had ${name} substitution applied against the workflow
// context's shared data. Metadata returned on success or skip results is
// merged into the context for subsequent steps.
type StepFunc func(ctx context.Context, wctx *WorkflowContext, params map[string]interface{}) *Result

// Plugin is an independently loadable unit exposing named step functions and
// declaring dependencies on other plugins. Implementations are constructed by
// a registered factory, initialized once in dependency order, and never
// re-initialized for the life of the process.
type Plugin interface {
	// Name returns the unique plugin name
	Name() string

	// Dependencies returns the names of plugins that must be initialized
	// before this one
	Dependencies() []string

	// Initialize prepares the plugin for use. Settings come from the plugin's
	// section of the application config; secrets from the secret store.
	Initialize(ctx context.Context, settings map[string]interface{}, secrets map[string]string) error

	// Steps returns the table of step functions this plugin exposes. Only
	// valid after successful initialization.
	Steps() map[string]StepFunc
}

// PluginFactory constructs a plugin instance. Factories are registered
// explicitly in a name-keyed table; manifests reference them by entry name,
// so plugin resolution needs no reflection.
type PluginFactory func() Plugin
