package workflow

import (
	"embed"
	"io/fs"
)

//go:embed defaults/*.yaml
var defaultWorkflows embed.FS

// DefaultWorkflowsFS returns the workflow definitions bundled into the
// binary, rooted so file names appear without the defaults/ prefix.
func DefaultWorkflowsFS() fs.FS {
	sub, err := fs.Sub(defaultWorkflows, "defaults")
	if err != nil {
		// The subdirectory is compiled in; this cannot fail at runtime.
		panic(err)
	}
	return sub
}
