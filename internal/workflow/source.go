package workflow

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"runbook/internal/api"
	"runbook/internal/config"
	"runbook/pkg/logging"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Source is a read-only provider of workflow definitions from one origin.
// Sources are composed by the registry in strict precedence order.
type Source interface {
	// Tag returns the source tag (project, user, system, plugin:<name>)
	Tag() string

	// Discover returns metadata for every workflow this source provides.
	// Per-file failures are logged and skipped; discovery never fails.
	Discover() []api.WorkflowInfo

	// Find returns the definition file path for a workflow name
	Find(name string) (string, bool)

	// Contains reports whether the given path belongs to this source
	Contains(path string) bool

	// ReadFile reads a definition file previously returned by Find or
	// Discover
	ReadFile(path string) ([]byte, error)
}

// DirSource provides workflows from a directory of YAML files. The project
// source scans recursively so workflows can be organized in subdirectories;
// user and plugin sources scan only the top level.
type DirSource struct {
	tag       string
	dir       string
	recursive bool
}

// NewProjectSource creates the project-local source rooted at
// <projectConfigDir>/workflows.
func NewProjectSource(projectConfigDir string) *DirSource {
	return &DirSource{
		tag:       api.SourceProject,
		dir:       filepath.Join(projectConfigDir, config.WorkflowsDirName),
		recursive: true,
	}
}

// NewUserSource creates the per-user source rooted at
// <userConfigDir>/workflows.
func NewUserSource(userConfigDir string) *DirSource {
	return &DirSource{
		tag: api.SourceUser,
		dir: filepath.Join(userConfigDir, config.WorkflowsDirName),
	}
}

// NewPluginSource creates a source for workflows shipped by a plugin.
func NewPluginSource(pluginName, dir string) *DirSource {
	return &DirSource{
		tag: api.PluginSourceTag(pluginName),
		dir: dir,
	}
}

// Tag implements Source.
func (s *DirSource) Tag() string { return s.tag }

// Dir returns the directory this source scans, for file watching.
func (s *DirSource) Dir() string { return s.dir }

// Discover implements Source.
func (s *DirSource) Discover() []api.WorkflowInfo {
	var infos []api.WorkflowInfo
	for _, path := range s.files() {
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn("WorkflowSource", "Cannot read %s: %v", path, err)
			continue
		}
		info, err := parseInfo(data, s.tag, path)
		if err != nil {
			logging.Warn("WorkflowSource", "Skipping malformed workflow file %s: %v", path, err)
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// Find implements Source.
func (s *DirSource) Find(name string) (string, bool) {
	for _, info := range s.Discover() {
		if info.Name == name {
			return info.Path, true
		}
	}
	return "", false
}

// Contains implements Source.
func (s *DirSource) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ReadFile implements Source.
func (s *DirSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// files lists the workflow definition files of this source. A missing
// directory yields no files.
func (s *DirSource) files() []string {
	pattern := "*.{yaml,yml}"
	if s.recursive {
		pattern = "**/*.{yaml,yml}"
	}
	matches, err := doublestar.FilepathGlob(filepath.Join(s.dir, pattern))
	if err != nil {
		logging.Warn("WorkflowSource", "Glob failed for %s: %v", s.dir, err)
		return nil
	}
	return matches
}

// FSSource provides workflows from an fs.FS, used for the workflow
// definitions bundled into the binary.
type FSSource struct {
	tag  string
	fsys fs.FS
}

// NewSystemSource creates the source for bundled system workflows.
func NewSystemSource(fsys fs.FS) *FSSource {
	return &FSSource{tag: api.SourceSystem, fsys: fsys}
}

// Tag implements Source.
func (s *FSSource) Tag() string { return s.tag }

// Discover implements Source.
func (s *FSSource) Discover() []api.WorkflowInfo {
	var infos []api.WorkflowInfo
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(s.fsys, pattern)
		if err != nil {
			logging.Warn("WorkflowSource", "Glob failed for %s source: %v", s.tag, err)
			continue
		}
		for _, path := range matches {
			data, err := fs.ReadFile(s.fsys, path)
			if err != nil {
				logging.Warn("WorkflowSource", "Cannot read bundled workflow %s: %v", path, err)
				continue
			}
			info, err := parseInfo(data, s.tag, path)
			if err != nil {
				logging.Warn("WorkflowSource", "Skipping malformed bundled workflow %s: %v", path, err)
				continue
			}
			infos = append(infos, info)
		}
	}
	return infos
}

// Find implements Source.
func (s *FSSource) Find(name string) (string, bool) {
	for _, info := range s.Discover() {
		if info.Name == name {
			return info.Path, true
		}
	}
	return "", false
}

// Contains implements Source.
func (s *FSSource) Contains(path string) bool {
	if _, err := fs.Stat(s.fsys, path); err != nil {
		return false
	}
	return true
}

// ReadFile implements Source.
func (s *FSSource) ReadFile(path string) ([]byte, error) {
	return fs.ReadFile(s.fsys, path)
}

// parseInfo extracts discovery metadata from a workflow file. The workflow
// name falls back to the file base name when the definition omits one.
func parseInfo(data []byte, tag, path string) (api.WorkflowInfo, error) {
	var def api.WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return api.WorkflowInfo{}, err
	}

	name := def.Name
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return api.WorkflowInfo{
		Name:        name,
		Description: def.Description,
		Source:      tag,
		Path:        path,
		Category:    def.Category,
	}, nil
}
