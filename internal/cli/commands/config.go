package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/scaffold/internal/cli/ui"
	"github.com/conduit-lang/scaffold/pkg/database"
)

func newConfigCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Long: `Show the configuration make resource runs with: defaults, overridden by
scaffold.yaml, overridden by SCAFFOLD_ environment variables (a .env file in
the project root is loaded first).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			module := cfg.Module
			if module == "" {
				module = "(not set)"
			}
			dialect, err := cfg.Dialect()
			if err != nil {
				return configError(err)
			}
			dbURL := "(not set)"
			if cfg.Database.URL != "" {
				dbURL = database.Redact(cfg.Database.URL)
			}

			out := cmd.OutOrStdout()
			ui.Header(out, fmt.Sprintf("Configuration of %s", root), color.NoColor)
			table := ui.NewKeyValueTable(out, color.NoColor)
			table.AddRow("module", module)
			table.AddRow("app_dir", cfg.AppDir)
			table.AddRow("routes_file", cfg.RoutesFile)
			table.AddRow("providers_file", cfg.ProvidersFile)
			table.AddRow("migrations_dir", cfg.MigrationsDir)
			table.AddRow("default_pagination", strconv.Itoa(cfg.DefaultPerPage))
			table.AddRow("auto_binding", strconv.FormatBool(cfg.AutoBinding))
			table.AddRow("overwrite_existing", strconv.FormatBool(cfg.FileGeneration.OverwriteExisting))
			table.AddRow("create_directories", strconv.FormatBool(cfg.FileGeneration.CreateDirectories))
			table.AddRow("locale", cfg.Locale)
			table.AddRow("database.url", dbURL)
			table.AddRow("dialect", dialect.String())
			table.Render()
			return nil
		},
	}
}
