package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"runbook/internal/api"
	"runbook/internal/config"
	"runbook/internal/plugin"
	"runbook/internal/workflow"
	"runbook/pkg/logging"
)

// App wires configuration, the plugin registry, the workflow registry and
// the executor together. Commands build one App per invocation.
type App struct {
	// Config is the merged runtime configuration
	Config config.RunbookConfig

	// UserConfigDir is the per-user configuration directory
	UserConfigDir string

	// ProjectConfigDir is the project-local configuration directory
	ProjectConfigDir string

	// Plugins is the initialized plugin registry
	Plugins *plugin.Registry

	// Workflows is the precedence-ordered workflow registry
	Workflows *workflow.Registry

	// Executor runs parsed workflows
	Executor *workflow.Executor

	// Storage persists execution history
	Storage *workflow.ExecutionStorage
}

// New bootstraps the application: configuration is loaded from the user
// config directory, plugins are discovered and initialized, and workflow
// sources are assembled in precedence order (project, user, system, then one
// source per plugin that ships workflows).
func New(ctx context.Context) (*App, error) {
	userDir, projectDir, err := config.GetConfigurationPaths()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(userDir)
	if err != nil {
		return nil, err
	}
	secrets, err := config.LoadSecrets(userDir)
	if err != nil {
		return nil, err
	}

	plugins := plugin.NewRegistry(plugin.Builtins())
	plugins.Discover(filepath.Join(userDir, config.PluginsDirName), plugin.BuiltinNames())
	plugins.InitializePlugins(ctx, &cfg, secrets)

	sources := []workflow.Source{
		workflow.NewProjectSource(projectDir),
		workflow.NewUserSource(userDir),
		workflow.NewSystemSource(workflow.DefaultWorkflowsFS()),
	}
	sources = append(sources, pluginSources(plugins)...)

	workflows := workflow.NewRegistry(sources...)
	executor := workflow.NewExecutor(plugins, workflows)
	storage := workflow.NewExecutionStorage(userDir)

	logging.Debug("App", "Bootstrapped with %d workflow sources, %d plugins installed",
		len(sources), len(plugins.ListInstalled()))

	return &App{
		Config:           cfg,
		UserConfigDir:    userDir,
		ProjectConfigDir: projectDir,
		Plugins:          plugins,
		Workflows:        workflows,
		Executor:         executor,
		Storage:          storage,
	}, nil
}

// NewContext creates a workflow context rooted in the current working
// directory with stdout output.
func (a *App) NewContext() *api.WorkflowContext {
	wctx := api.NewWorkflowContext()
	if wd, err := os.Getwd(); err == nil {
		wctx.WorkDir = wd
	}
	return wctx
}

// pluginSources builds one workflow source per initialized plugin that ships
// a workflows directory, in stable name order.
func pluginSources(plugins *plugin.Registry) []workflow.Source {
	dirs := plugins.WorkflowDirs()
	names := make([]string, 0, len(dirs))
	for name := range dirs {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]workflow.Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, workflow.NewPluginSource(name, dirs[name]))
	}
	return sources
}
