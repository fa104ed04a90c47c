package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"runbook/internal/api"
	"runbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlugin implements api.Plugin for registry tests.
type fakePlugin struct {
	name     string
	deps     []string
	initErr  error
	initLog  *[]string
	initDone bool
}

func (f *fakePlugin) Name() string           { return f.name }
func (f *fakePlugin) Dependencies() []string { return f.deps }

func (f *fakePlugin) Initialize(ctx context.Context, settings map[string]interface{}, secrets map[string]string) error {
	if f.initLog != nil {
		*f.initLog = append(*f.initLog, f.name)
	}
	if f.initErr != nil {
		return f.initErr
	}
	f.initDone = true
	return nil
}

func (f *fakePlugin) Steps() map[string]api.StepFunc {
	return map[string]api.StepFunc{}
}

func fakeFactories(initLog *[]string, plugins ...*fakePlugin) map[string]api.PluginFactory {
	factories := make(map[string]api.PluginFactory)
	for _, p := range plugins {
		p.initLog = initLog
		plugin := p
		factories[p.name] = func() api.Plugin { return plugin }
	}
	return factories
}

func names(plugins []*fakePlugin) []string {
	result := make([]string, len(plugins))
	for i, p := range plugins {
		result[i] = p.name
	}
	return result
}

func initRegistry(t *testing.T, r *Registry) {
	t.Helper()
	cfg := config.GetDefaultConfig()
	r.InitializePlugins(context.Background(), &cfg, map[string]string{})
}

func TestInitializePlugins_DependencyOrder(t *testing.T) {
	var initLog []string
	plugins := []*fakePlugin{
		{name: "c", deps: []string{"b"}},
		{name: "b", deps: []string{"a"}},
		{name: "a"},
	}
	r := NewRegistry(fakeFactories(&initLog, plugins...))
	r.Discover("", names(plugins))

	initRegistry(t, r)

	assert.Equal(t, []string{"a", "b", "c"}, initLog)
	assert.Empty(t, r.ListFailed())
	for _, name := range []string{"a", "b", "c"} {
		_, ok := r.Get(name)
		assert.True(t, ok, "plugin %s should be initialized", name)
	}
}

func TestInitializePlugins_CascadingFailure(t *testing.T) {
	plugins := []*fakePlugin{
		{name: "broken", initErr: fmt.Errorf("no credentials")},
		{name: "dependent", deps: []string{"broken"}},
		{name: "transitive", deps: []string{"dependent"}},
		{name: "healthy"},
	}
	r := NewRegistry(fakeFactories(nil, plugins...))
	r.Discover("", names(plugins))

	initRegistry(t, r)

	failed := r.ListFailed()
	require.Len(t, failed, 3)
	assert.Contains(t, failed["broken"].Error(), "no credentials")
	assert.Contains(t, failed["dependent"].Error(), `dependency "broken" failed`)
	assert.Contains(t, failed["transitive"].Error(), `dependency "dependent" failed`)

	_, ok := r.Get("healthy")
	assert.True(t, ok)
	_, ok = r.Get("dependent")
	assert.False(t, ok)
}

func TestInitializePlugins_CircularDependency(t *testing.T) {
	plugins := []*fakePlugin{
		{name: "p1", deps: []string{"p2"}},
		{name: "p2", deps: []string{"p3"}},
		{name: "p3", deps: []string{"p1"}},
	}
	r := NewRegistry(fakeFactories(nil, plugins...))
	r.Discover("", names(plugins))

	initRegistry(t, r)

	failed := r.ListFailed()
	require.Len(t, failed, 3)
	for _, name := range []string{"p1", "p2", "p3"} {
		require.Contains(t, failed, name)
		assert.Contains(t, failed[name].Error(), "unresolved or circular dependency")
		_, ok := r.Get(name)
		assert.False(t, ok)
	}
}

func TestInitializePlugins_MissingDependency(t *testing.T) {
	plugins := []*fakePlugin{
		{name: "orphan", deps: []string{"nonexistent"}},
	}
	r := NewRegistry(fakeFactories(nil, plugins...))
	r.Discover("", names(plugins))

	initRegistry(t, r)

	failed := r.ListFailed()
	require.Contains(t, failed, "orphan")
	assert.Contains(t, failed["orphan"].Error(), "unresolved or circular dependency")
}

func TestDiscover_ManifestPlugins(t *testing.T) {
	pluginsDir := t.TempDir()

	writeManifest := func(dir, content string) {
		path := filepath.Join(pluginsDir, dir)
		require.NoError(t, os.MkdirAll(path, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(path, ManifestFileName), []byte(content), 0644))
	}

	writeManifest("good", "name: good\nentry: good-entry\ndescription: a good plugin\n")
	writeManifest("no-factory", "name: no-factory\nentry: missing-entry\n")
	writeManifest("malformed", "name: [\n")
	writeManifest("incomplete", "name: incomplete\n") // no entry

	good := &fakePlugin{name: "good"}
	r := NewRegistry(map[string]api.PluginFactory{
		"good-entry": func() api.Plugin { return good },
	})
	r.Discover(pluginsDir, nil)

	installed := r.ListInstalled()
	require.Len(t, installed, 1)
	assert.Equal(t, "good", installed[0].Name)
	assert.Equal(t, "a good plugin", installed[0].Description)
	assert.Equal(t, StateDiscovered, installed[0].State)

	failed := r.ListFailed()
	assert.Len(t, failed, 3)
	var loadErr *api.PluginLoadError
	require.ErrorAs(t, failed["no-factory"], &loadErr)
	assert.Contains(t, failed["no-factory"].Error(), "no registered factory")
}

func TestDiscover_ManifestRequiresMergedWithDeclaredDeps(t *testing.T) {
	pluginsDir := t.TempDir()
	dir := filepath.Join(pluginsDir, "ext")
	require.NoError(t, os.MkdirAll(dir, 0755))
	manifest := "name: ext\nentry: ext-entry\nrequires: [git, git]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(manifest), 0644))

	ext := &fakePlugin{name: "ext", deps: []string{"core"}}
	r := NewRegistry(map[string]api.PluginFactory{
		"ext-entry": func() api.Plugin { return ext },
	})
	r.Discover(pluginsDir, nil)

	installed := r.ListInstalled()
	require.Len(t, installed, 1)
	assert.Equal(t, []string{"core", "git"}, installed[0].Dependencies)
}

func TestGet_OnlyReturnsInitialized(t *testing.T) {
	p := &fakePlugin{name: "lazy"}
	r := NewRegistry(fakeFactories(nil, p))
	r.Discover("", []string{"lazy"})

	_, ok := r.Get("lazy")
	assert.False(t, ok, "discovered but uninitialized plugin must not be returned")

	initRegistry(t, r)

	got, ok := r.Get("lazy")
	assert.True(t, ok)
	assert.Equal(t, "lazy", got.Name())
}

func TestRegisterFactory(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.RegisterFactory("x", func() api.Plugin { return &fakePlugin{name: "x"} }))
	assert.Error(t, r.RegisterFactory("x", func() api.Plugin { return nil }))
	assert.Error(t, r.RegisterFactory("", nil))
}
