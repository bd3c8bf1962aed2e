// Package scaffold generates a resource's model, repository, service and
// handler files and registers the resource in the application's routes and
// provider files.
package scaffold

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/conduit-lang/scaffold/internal/patcher"
	"github.com/conduit-lang/scaffold/internal/stubs"
	"github.com/conduit-lang/scaffold/pkg/repository/sqlstore"
)

const (
	registerSignature = "func Register("
	containerImport   = `import "github.com/conduit-lang/scaffold/pkg/container"`
	databaseImport    = `import "github.com/conduit-lang/scaffold/pkg/database"`
	webImport         = `import "github.com/conduit-lang/scaffold/pkg/web"`
)

var registerParams = []*regexp.Regexp{
	regexp.MustCompile(`[(,]\s*c\s+\*container\.Container\b`),
	regexp.MustCompile(`[(,]\s*db\s+\*database\.DB\b`),
}

// ErrModuleRequired is returned when no target module path is configured
var ErrModuleRequired = errors.New("module path is required")

// Config locates the files of the target application. Paths are relative to
// the root of the Fs given to NewGenerator.
type Config struct {
	Module            string
	AppDir            string
	RoutesFile        string
	ProvidersFile     string
	MigrationsDir     string
	DefaultPerPage    int
	Locale            string
	Dialect           sqlstore.Dialect
	OverwriteExisting bool
	CreateDirectories bool
	// SkipBindings leaves the provider file untouched
	SkipBindings bool
}

// Options are the per-run flags of `make resource`
type Options struct {
	Name        string
	Model       string
	Migration   bool
	Requests    bool
	Force       bool
	UUID        bool
	SoftDeletes bool
}

// Confirmer asks the user a yes/no question
type Confirmer interface {
	Confirm(message string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(message string) (bool, error)

// Confirm calls f
func (f ConfirmFunc) Confirm(message string) (bool, error) {
	return f(message)
}

// Decline answers no to every question
var Decline = ConfirmFunc(func(string) (bool, error) { return false, nil })

// Report lists what a run did
type Report struct {
	Created  []string
	Patched  []string
	Skipped  []string
	Warnings []string
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Generator writes and patches resource files
type Generator struct {
	fs      afero.Fs
	config  Config
	stubs   *stubs.Stubs
	confirm Confirmer
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithConfirmer sets the confirmer asked before overwriting files
func WithConfirmer(c Confirmer) Option {
	return func(g *Generator) {
		g.confirm = c
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithClock sets the clock used for migration timestamps
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator writing to fs
func NewGenerator(fs afero.Fs, config Config, opts ...Option) (*Generator, error) {
	s, err := stubs.New()
	if err != nil {
		return nil, err
	}

	g := &Generator{
		fs:      fs,
		config:  config,
		stubs:   s,
		confirm: Decline,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate scaffolds one resource
func (g *Generator) Generate(opts Options) (*Report, error) {
	if g.config.Module == "" {
		return nil, ErrModuleRequired
	}

	r, err := stubs.NewResource(opts.Name, opts.Model, g.config.Module, g.config.AppDir)
	if err != nil {
		return nil, err
	}
	r.UUID = opts.UUID
	r.SoftDeletes = opts.SoftDeletes
	r.Requests = opts.Requests
	r.Dialect = g.config.Dialect
	r.Locale = g.config.Locale
	r.Timestamp = g.now()
	if g.config.DefaultPerPage > 0 {
		r.PerPage = g.config.DefaultPerPage
	}

	report := &Report{}
	force := opts.Force || g.config.OverwriteExisting

	if err := g.ensureDir(r.Dir()); err != nil {
		return nil, err
	}

	files := stubs.ResourceFiles
	if opts.Requests {
		files = append(files[:len(files):len(files)], stubs.Requests)
	}
	for _, name := range files {
		if err := g.writeStub(path.Join(r.Dir(), name), name, r, force, report); err != nil {
			return nil, err
		}
	}

	if opts.Migration {
		if err := g.writeMigration(r, report); err != nil {
			return nil, err
		}
	}

	if err := g.registerRoute(r, opts.Force, report); err != nil {
		return nil, err
	}
	if !g.config.SkipBindings {
		if err := g.registerBindings(r, opts.Force, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (g *Generator) ensureDir(dir string) error {
	exists, err := afero.DirExists(g.fs, dir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if exists {
		return nil
	}
	if !g.config.CreateDirectories {
		return fmt.Errorf("directory %s does not exist", dir)
	}
	if err := g.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func (g *Generator) writeStub(file, stub string, r *stubs.Resource, force bool, report *Report) error {
	exists, err := afero.Exists(g.fs, file)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if exists && !force {
		ok, err := g.confirm.Confirm(fmt.Sprintf("%s already exists. Overwrite?", file))
		if err != nil {
			return err
		}
		if !ok {
			g.logger.Info("skipped existing file", zap.String("file", file))
			report.Skipped = append(report.Skipped, file)
			return nil
		}
	}

	content, err := g.stubs.Render(stub, r)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(g.fs, file, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}

	g.logger.Debug("wrote file", zap.String("file", file))
	report.Created = append(report.Created, file)
	return nil
}

func (g *Generator) writeMigration(r *stubs.Resource, report *Report) error {
	dir := g.config.MigrationsDir
	if err := g.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	migrations := []struct{ stub, suffix string }{
		{stubs.MigrationUp, ".up.sql"},
		{stubs.MigrationDown, ".down.sql"},
	}
	for _, m := range migrations {
		file := path.Join(dir, r.MigrationName()+m.suffix)
		content, err := g.stubs.Render(m.stub, r)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(g.fs, file, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file, err)
		}
		g.logger.Debug("wrote migration", zap.String("file", file))
		report.Created = append(report.Created, file)
	}
	return nil
}

// registerRoute creates the routes file or adds the resource entry to it.
// An entry that already exists is added again only on confirmation.
func (g *Generator) registerRoute(r *stubs.Resource, force bool, report *Report) error {
	file := g.config.RoutesFile
	entry, err := g.stubs.Lines(stubs.RouteEntry, r)
	if err != nil {
		return err
	}
	marker := fmt.Sprintf("Resources.Add(%q", r.Route)
	resourceImport := fmt.Sprintf("import %q", r.ImportPath())

	exists, err := afero.Exists(g.fs, file)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if !exists {
		src, err := g.stubs.Render(stubs.Routes, r)
		if err != nil {
			return err
		}
		src = patcher.EnsureImport(src, resourceImport, patcher.GoSyntax)
		src = patcher.AppendStandaloneStatement(src, marker, entry, false)

		if err := g.ensureDir(path.Dir(file)); err != nil {
			return err
		}
		if err := afero.WriteFile(g.fs, file, []byte(src), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file, err)
		}
		g.logger.Debug("created routes file", zap.String("file", file))
		report.Created = append(report.Created, file)
		return nil
	}

	data, err := afero.ReadFile(g.fs, file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}
	appendAgain := force
	if !force && strings.Contains(string(data), marker) {
		ok, err := g.confirm.Confirm(fmt.Sprintf("Route %s is already registered in %s. Register it again?", r.Route, file))
		if err != nil {
			return err
		}
		if !ok {
			g.logger.Info("route already registered", zap.String("route", r.Route))
			report.Skipped = append(report.Skipped, file)
			return nil
		}
		appendAgain = true
	}

	written, err := patcher.PatchFile(g.fs, file, func(buf string) string {
		buf = patcher.EnsureImport(buf, containerImport, patcher.GoSyntax)
		buf = patcher.EnsureImport(buf, webImport, patcher.GoSyntax)
		buf = patcher.EnsureImport(buf, resourceImport, patcher.GoSyntax)
		return patcher.AppendStandaloneStatement(buf, marker, entry, appendAgain)
	})
	if err != nil {
		return err
	}
	if written {
		g.logger.Debug("patched routes file", zap.String("file", file))
		report.Patched = append(report.Patched, file)
	}
	return nil
}

// registerBindings adds the container bindings to the provider file's
// Register function, appending the function when the file has none.
func (g *Generator) registerBindings(r *stubs.Resource, force bool, report *Report) error {
	file := g.config.ProvidersFile
	exists, err := afero.Exists(g.fs, file)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if !exists {
		g.logger.Warn("provider file not found", zap.String("file", file))
		report.warn("provider file %s not found: bind %s.BindRepository, %s.BindService and %s.BindHandler manually",
			file, r.Package, r.Package, r.Package)
		return nil
	}

	bindings, err := g.stubs.Lines(stubs.ProviderBindings, r)
	if err != nil {
		return err
	}
	register, err := g.stubs.Lines(stubs.ProviderRegister, r)
	if err != nil {
		return err
	}

	data, err := afero.ReadFile(g.fs, file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}
	marker := r.Package + ".BindService"
	if force {
		marker = ""
	} else if strings.Contains(string(data), marker) {
		ok, err := g.confirm.Confirm(fmt.Sprintf("Bindings for %s already exist in %s. Add them again?", r.Package, file))
		if err != nil {
			return err
		}
		if !ok {
			g.logger.Info("bindings already registered", zap.String("package", r.Package))
			report.Skipped = append(report.Skipped, file)
			return nil
		}
		marker = ""
	}

	written, err := patcher.PatchFile(g.fs, file, func(buf string) string {
		if line, ok := signatureLine(buf, registerSignature); ok && !takesBindingParams(line) {
			report.warn("Register in %s must take (c *container.Container, db *database.DB): add the %s bindings manually",
				file, r.Package)
			return buf
		}
		patched, ok := patcher.EnsureBlockStatement(buf, registerSignature, marker, bindings)
		if !ok {
			if patcher.HasBlock(buf, registerSignature) {
				// the end of the block could not be located
				report.warn("could not find the end of Register in %s: add the %s bindings manually", file, r.Package)
				return buf
			}
			patched = patcher.AppendStandaloneStatement(buf, "", register, false)
		}
		patched = patcher.EnsureImport(patched, containerImport, patcher.GoSyntax)
		patched = patcher.EnsureImport(patched, databaseImport, patcher.GoSyntax)
		return patcher.EnsureImport(patched, fmt.Sprintf("import %q", r.ImportPath()), patcher.GoSyntax)
	})
	if err != nil {
		return err
	}
	if written {
		g.logger.Debug("patched provider file", zap.String("file", file))
		report.Patched = append(report.Patched, file)
	}
	return nil
}

// signatureLine returns the first line of buf containing signature
func signatureLine(buf, signature string) (string, bool) {
	for _, line := range strings.Split(buf, "\n") {
		if strings.Contains(line, signature) {
			return line, true
		}
	}
	return "", false
}

// takesBindingParams reports whether a Register signature names its
// parameters c and db, which the inserted bindings refer to
func takesBindingParams(line string) bool {
	for _, param := range registerParams {
		if !param.MatchString(line) {
			return false
		}
	}
	return true
}
