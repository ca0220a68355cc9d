package cli

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/iscadgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

type globalFlags struct {
	logLevel        string
	logFormat       string
	workbench       string
	healthcheckPort int
	workers         int
}

type buildFlags struct {
	outputDir string
	dryRun    bool
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	var (
		global  globalFlags
		build   buildFlags
		models  []string
		asJSON  bool
		result  *app.Config
		confErr error
	)

	// finish validates the collected values once a subcommand matched.
	finish := func(cmd app.Command, paths, symbols []string) {
		if len(paths) == 0 {
			paths = []string{"."}
		}
		result, confErr = app.NewConfig(app.Config{
			Command:         cmd,
			ModelPaths:      paths,
			WorkbenchPath:   global.workbench,
			LogFormat:       strings.ToLower(global.logFormat),
			LogLevel:        strings.ToLower(global.logLevel),
			HealthcheckPort: global.healthcheckPort,
			WorkerCount:     global.workers,
			OutputDir:       build.outputDir,
			DryRun:          build.dryRun,
			EvalSymbols:     symbols,
			JSON:            asJSON,
		})
	}

	root := &cobra.Command{
		Use:   "iscad",
		Short: "Evaluate parametric ISCAD models",
		Long: `iscad parses .iscad model scripts, builds their features and runs the
post-processing actions they declare (drawings, exports, meshes, reports).

Model paths may be files, directories or patterns such as models/**/*.iscad.
Parameters from the workbench file override defaults in the models.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	pf := root.PersistentFlags()
	pf.StringVar(&global.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&global.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&global.workbench, "workbench", "iscad.hcl", "Workbench file or directory with parameters and tool settings.")
	pf.IntVar(&global.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	pf.IntVar(&global.workers, "workers", 4, "Number of modelsteps built concurrently.")

	addBuildFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&build.outputDir, "output-dir", "o", "", "Directory for relative output paths of actions.")
		cmd.Flags().BoolVar(&build.dryRun, "dry-run", false, "Skip external processes such as gmsh and the typesetter.")
	}

	checkCmd := &cobra.Command{
		Use:   "check [PATH...]",
		Short: "Parse models and report diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			finish(app.CommandCheck, args, nil)
			return nil
		},
	}
	buildCmd := &cobra.Command{
		Use:   "build [PATH...]",
		Short: "Build all modelsteps and run the post-processing actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			finish(app.CommandBuild, args, nil)
			return nil
		},
	}
	addBuildFlags(buildCmd)
	watchCmd := &cobra.Command{
		Use:   "watch [PATH...]",
		Short: "Build, then rebuild whenever a model file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			finish(app.CommandWatch, args, nil)
			return nil
		},
	}
	addBuildFlags(watchCmd)
	evalCmd := &cobra.Command{
		Use:   "eval SYMBOL...",
		Short: "Print the values of model symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			finish(app.CommandEval, models, args)
			return nil
		},
	}
	evalCmd.Flags().StringSliceVarP(&models, "model", "m", nil, "Model file, directory or pattern (repeatable). Defaults to the current directory.")
	evalCmd.Flags().BoolVar(&asJSON, "json", false, "Print the values as a JSON object.")

	root.AddCommand(checkCmd, buildCmd, watchCmd, evalCmd)

	if err := root.Execute(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if confErr != nil {
		return nil, false, &ExitError{Code: 2, Message: confErr.Error()}
	}
	if result == nil {
		// help or a bare invocation
		slog.Debug("No command selected, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", result)
	return result, false, nil
}

// IsExitError reports whether err carries an exit code and returns it.
func IsExitError(err error) (*ExitError, bool) {
	var exitErr *ExitError
	ok := errors.As(err, &exitErr)
	return exitErr, ok
}
