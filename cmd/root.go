package cmd

import (
	"errors"
	"os"

	"runbook/internal/api"
	"runbook/internal/config"
	"runbook/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands. These follow common shell conventions so
// runbook invocations compose cleanly in scripts.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeHalted indicates a workflow halted at a failing step.
	ExitCodeHalted = 2
	// ExitCodeNotFound indicates the requested workflow or resource does not exist.
	ExitCodeNotFound = 4
	// ExitCodeInterrupted indicates the run was cancelled by a signal.
	ExitCodeInterrupted = 130
)

var logLevelFlag string

// rootCmd represents the base command for the runbook application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "runbook",
	Short: "Run declarative, composable automation workflows",
	Long: `runbook executes YAML-defined workflows assembled from project-local,
per-user, bundled and plugin-provided definitions. Workflows can extend
each other, inject steps into declared hooks, and mix plugin steps,
shell commands and nested workflows.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logLevelFlag
		if !cmd.Flags().Changed("log-level") {
			// The config file's log_level backs the flag default
			if userDir, err := config.GetUserConfigDir(); err == nil {
				if cfg, err := config.LoadConfig(userDir); err == nil && cfg.LogLevel != "" {
					level = cfg.LogLevel
				}
			}
		}
		logging.Init(logging.ParseLevel(level), os.Stderr)
	},
}

// SetVersion sets the version for the root command. This is called from the
// main package to inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application. It runs the root
// command and maps handled error types to semantic exit codes.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "runbook version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if api.IsNotFound(err) {
		return ExitCodeNotFound
	}
	var execErr *api.ExecutionError
	if errors.As(err, &execErr) {
		return ExitCodeHalted
	}
	var interrupted *interruptedError
	if errors.As(err, &interrupted) {
		return ExitCodeInterrupted
	}
	return ExitCodeError
}

// interruptedError marks a run cancelled by a signal so Execute can exit
// with the conventional 130.
type interruptedError struct {
	err error
}

func (e *interruptedError) Error() string { return e.err.Error() }
func (e *interruptedError) Unwrap() error { return e.err }

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn",
		"log verbosity (debug, info, warn, error)")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newVersionCmd())
}
