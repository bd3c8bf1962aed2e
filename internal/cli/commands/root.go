package commands

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/scaffold/internal/cli/config"
	"github.com/conduit-lang/scaffold/internal/cli/ui"
	"github.com/conduit-lang/scaffold/internal/scaffold"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globals are shared by every subcommand
type globals struct {
	verbose    bool
	noColor    bool
	configFile string
	dir        string
	logger     *zap.Logger

	// fs and confirm replace the project filesystem and the terminal prompt
	// in tests
	fs      afero.Fs
	confirm scaffold.Confirmer
}

// commandError carries the formatter Execute renders an error with
type commandError struct {
	format func(message string, noColor bool) string
	err    error
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

func configError(err error) error {
	return &commandError{format: ui.ConfigError, err: err}
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globals{})
}

func newRootCommand(g *globals) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scaffold",
		Short: "Generate repository, service and handler files for API resources",
		Long: color.CyanString(`scaffold - CRUD resource generator

scaffold writes the model, repository, service and HTTP handler of a new
resource and registers it in the application's routes and provider files.
Generated code builds on the repository, web and container packages of this
module: filtering, sorting, eager loading and pagination come for free.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.noColor {
				color.NoColor = true
			}
			if g.logger != nil {
				return nil
			}

			cfg := zap.NewProductionConfig()
			cfg.Encoding = "console"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if g.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			g.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Log every file written and patched")
	flags.BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	flags.StringVarP(&g.configFile, "config", "c", "", "Config file (default: scaffold.yaml in the project root)")
	flags.StringVarP(&g.dir, "dir", "C", "", "Project root (default: nearest directory with scaffold.yaml or go.mod)")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewCompletionCommand())
	rootCmd.AddCommand(newMakeCommand(g))
	rootCmd.AddCommand(newConfigCommand(g))
	rootCmd.AddCommand(newDBCommand(g))

	return rootCmd
}

// projectRoot returns --dir or the nearest project root above the working
// directory
func (g *globals) projectRoot() (string, error) {
	if g.dir != "" {
		return g.dir, nil
	}
	return config.FindProjectRoot(".")
}

func (g *globals) loadConfig() (string, *config.Config, error) {
	root, err := g.projectRoot()
	if err != nil {
		return "", nil, configError(err)
	}
	cfg, err := config.Load(root, g.configFile)
	if err != nil {
		return "", nil, configError(err)
	}
	return root, cfg, nil
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the scaffold version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			table := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			table.AddRow("Version", Version)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", goVer)
			table.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	if err != nil {
		writeError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func writeError(w io.Writer, err error) {
	var cmdErr *commandError
	if errors.As(err, &cmdErr) {
		fmt.Fprint(w, cmdErr.format(cmdErr.Error(), color.NoColor))
		return
	}
	ui.WriteError(w, ui.ErrorOptions{Problem: err.Error(), NoColor: color.NoColor})
}
