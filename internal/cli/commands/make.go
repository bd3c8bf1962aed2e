package commands

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/scaffold/internal/cli/ui"
	"github.com/conduit-lang/scaffold/internal/scaffold"
)

var resourceNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

func newMakeCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "make",
		Aliases: []string{"m"},
		Short:   "Code generation commands",
		Long: `Generate the files of a new API resource.

Available generators:
  resource   - Model, repository, service and handler of a resource

Examples:
  scaffold make resource User
  scaffold make resource BlogPost --migration --requests`,
	}

	cmd.AddCommand(newMakeResourceCommand(g))
	return cmd
}

type makeResourceFlags struct {
	model       string
	migration   bool
	requests    bool
	force       bool
	interactive bool
	uuid        bool
	softDeletes bool
}

func newMakeResourceCommand(g *globals) *cobra.Command {
	var flags makeResourceFlags

	cmd := &cobra.Command{
		Use:     "resource [Name]",
		Aliases: []string{"repository"},
		Short:   "Generate a repository, service and handler for a resource",
		Long: `Generate a new API resource in the application directory.

Writes model.go, repository.go, service.go and handler.go into
<app_dir>/<package>/, registers the resource in the routes file and binds its
repository, service and handler in the provider file's Register function.

Existing files are only overwritten after confirmation, or with --force.`,
		Example: `  scaffold make resource User
  scaffold make resource Author --model Person
  scaffold make resource Invoice --migration --requests --uuid
  scaffold make resource --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMakeResource(cmd, g, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Model name (default: the resource name)")
	cmd.Flags().BoolVar(&flags.migration, "migration", false, "Also write create table migrations")
	cmd.Flags().BoolVarP(&flags.requests, "requests", "r", false, "Also write validated store and update requests")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Overwrite existing files without asking")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "Prompt for the resource name and options")
	cmd.Flags().BoolVar(&flags.uuid, "uuid", false, "Use UUID primary keys")
	cmd.Flags().BoolVar(&flags.softDeletes, "soft-deletes", false, "Keep deleted rows with a deleted_at timestamp")

	return cmd
}

func runMakeResource(cmd *cobra.Command, g *globals, flags makeResourceFlags, args []string) error {
	var name string
	switch {
	case len(args) > 0:
		name = args[0]
	case flags.interactive:
		if err := askResource(&name, &flags); err != nil {
			return err
		}
	default:
		return fmt.Errorf("resource name required\n\nUsage: scaffold make resource <Name>")
	}

	root, cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	genConfig, err := cfg.Generator()
	if err != nil {
		return configError(err)
	}

	fs := g.fs
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), root)
	}
	confirm := g.confirm
	if confirm == nil {
		confirm = surveyConfirmer{}
	}

	gen, err := scaffold.NewGenerator(fs, genConfig, scaffold.WithConfirmer(confirm), scaffold.WithLogger(g.logger))
	if err != nil {
		return err
	}

	report, err := gen.Generate(scaffold.Options{
		Name:        name,
		Model:       flags.model,
		Migration:   flags.migration,
		Requests:    flags.requests,
		Force:       flags.force,
		UUID:        flags.uuid,
		SoftDeletes: flags.softDeletes,
	})
	if err != nil {
		if errors.Is(err, scaffold.ErrModuleRequired) {
			return configError(err)
		}
		return &commandError{format: ui.GenerateError, err: err}
	}

	printReport(cmd, name, report)
	return nil
}

func printReport(cmd *cobra.Command, name string, report *scaffold.Report) {
	out := cmd.OutOrStdout()

	table := ui.NewTable(out, color.NoColor, "STATUS", "FILE")
	for _, file := range report.Created {
		table.AddRow("created", file)
	}
	for _, file := range report.Patched {
		table.AddRow("patched", file)
	}
	for _, file := range report.Skipped {
		table.AddRow("skipped", file)
	}
	if table.Len() > 0 {
		table.Render()
		fmt.Fprintln(out)
	}

	for _, warning := range report.Warnings {
		fmt.Fprint(out, ui.Warning(warning, color.NoColor))
	}
	ui.WriteSuccess(out, fmt.Sprintf("Resource %s generated", name), color.NoColor)
}

func askResource(name *string, flags *makeResourceFlags) error {
	questions := []*survey.Question{
		{
			Name:     "name",
			Prompt:   &survey.Input{Message: "Resource name (singular, CamelCase):"},
			Validate: survey.ComposeValidators(survey.Required, validateResourceName),
		},
		{
			Name:   "model",
			Prompt: &survey.Input{Message: "Model name (empty for the resource name):"},
		},
		{
			Name:   "migration",
			Prompt: &survey.Confirm{Message: "Write migrations?", Default: flags.migration},
		},
		{
			Name:   "requests",
			Prompt: &survey.Confirm{Message: "Write store and update requests?", Default: flags.requests},
		},
	}

	answers := struct {
		Name      string `survey:"name"`
		Model     string `survey:"model"`
		Migration bool   `survey:"migration"`
		Requests  bool   `survey:"requests"`
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	*name = answers.Name
	if answers.Model != "" {
		flags.model = answers.Model
	}
	flags.migration = answers.Migration
	flags.requests = answers.Requests
	return nil
}

func validateResourceName(ans interface{}) error {
	s, _ := ans.(string)
	if !resourceNamePattern.MatchString(s) {
		return fmt.Errorf("must be CamelCase letters and digits, e.g. BlogPost")
	}
	return nil
}

// surveyConfirmer asks on the terminal
type surveyConfirmer struct{}

func (surveyConfirmer) Confirm(message string) (bool, error) {
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
