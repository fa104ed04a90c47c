package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"runbook/internal/api"
	"runbook/internal/config"
	"runbook/pkg/logging"
	pkgstrings "runbook/pkg/strings"
)

// maxStoredExecutions is the per-workflow retention limit. Older records are
// pruned when a new one is written.
const maxStoredExecutions = 50

// ExecutionStorage persists execution records as JSON files under
// <configDir>/executions/<workflow>/<executionID>.json.
type ExecutionStorage struct {
	baseDir string
}

// NewExecutionStorage creates storage rooted at the given configuration
// directory.
func NewExecutionStorage(configDir string) *ExecutionStorage {
	return &ExecutionStorage{
		baseDir: filepath.Join(configDir, config.ExecutionsDirName),
	}
}

// Store writes or rewrites one execution record and prunes old records for
// the same workflow beyond the retention limit.
func (s *ExecutionStorage) Store(execution *api.WorkflowExecution) error {
	dir := filepath.Join(s.baseDir, pkgstrings.SanitizePathComponent(execution.WorkflowName))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create execution directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}

	path := filepath.Join(dir, execution.ExecutionID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write execution record: %w", err)
	}

	s.prune(dir)
	return nil
}

// Get loads one execution record by workflow name and execution ID.
func (s *ExecutionStorage) Get(workflowName, executionID string) (*api.WorkflowExecution, error) {
	path := filepath.Join(s.baseDir, pkgstrings.SanitizePathComponent(workflowName), executionID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &api.NotFoundError{
				ResourceType: "execution",
				ResourceName: executionID,
				Message:      fmt.Sprintf("no execution %s recorded for workflow %s", executionID, workflowName),
			}
		}
		return nil, err
	}

	var execution api.WorkflowExecution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("corrupt execution record %s: %w", path, err)
	}
	return &execution, nil
}

// List returns stored executions, newest first. An empty workflowName lists
// executions across all workflows. Unreadable records are skipped.
func (s *ExecutionStorage) List(workflowName string, limit int) []*api.WorkflowExecution {
	var dirs []string
	if workflowName != "" {
		dirs = []string{filepath.Join(s.baseDir, pkgstrings.SanitizePathComponent(workflowName))}
	} else {
		entries, err := os.ReadDir(s.baseDir)
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			if entry.IsDir() {
				dirs = append(dirs, filepath.Join(s.baseDir, entry.Name()))
			}
		}
	}

	var executions []*api.WorkflowExecution
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				continue
			}
			var execution api.WorkflowExecution
			if err := json.Unmarshal(data, &execution); err != nil {
				logging.Warn("ExecutionStorage", "Skipping corrupt execution record %s: %v", entry.Name(), err)
				continue
			}
			executions = append(executions, &execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})
	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}
	return executions
}

// prune removes the oldest records in one workflow directory beyond the
// retention limit. Pruning failures only log; they never fail the write.
func (s *ExecutionStorage) prune(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) <= maxStoredExecutions {
		return
	}

	type record struct {
		name    string
		modTime int64
	}
	records := make([]record, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, record{name: entry.Name(), modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].modTime < records[j].modTime })

	for _, old := range records[:len(records)-maxStoredExecutions] {
		if err := os.Remove(filepath.Join(dir, old.name)); err != nil {
			logging.Warn("ExecutionStorage", "Failed to prune old execution record %s: %v", old.name, err)
		}
	}
}

