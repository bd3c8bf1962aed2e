// Package stubs renders the source files of a scaffolded resource from
// embedded text/template stubs. Rendering is a pure function of Resource.
package stubs

import (
	"bytes"
	"embed"
	"fmt"
	"go/format"
	"path"
	"regexp"
	"strings"
	"text/template"
	"time"

	names "github.com/conduit-lang/scaffold/internal/util/strings"
	"github.com/conduit-lang/scaffold/pkg/repository/sqlstore"
)

//go:embed templates/*.tmpl
var files embed.FS

// Stub names
const (
	Model            = "model.go"
	Repository       = "repository.go"
	Service          = "service.go"
	Handler          = "handler.go"
	Requests         = "requests.go"
	Routes           = "routes.go"
	RouteEntry       = "route_entry"
	ProviderBindings = "provider_bindings"
	ProviderRegister = "provider_register"
	MigrationUp      = "migration_up.sql"
	MigrationDown    = "migration_down.sql"
)

// ResourceFiles are the stubs written into the resource package, in order
var ResourceFiles = []string{Model, Repository, Service, Handler}

var namePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

// Resource is the data every stub renders from
type Resource struct {
	// Name is the CamelCase resource name given on the command line
	Name string
	// Model is the CamelCase model name, Name unless overridden
	Model string
	// Package is the Go package holding the resource files
	Package string
	// Table is the plural snake_case table of Model
	Table string
	// Singular is the snake_case form of Model, used for foreign keys
	Singular string
	// Route is the URL segment of the resource
	Route string
	// Module is the Go module path of the target application
	Module string
	// AppDir is the module-relative directory holding resource packages
	AppDir string

	// Locale is the default response locale, English when empty
	Locale string

	UUID        bool
	SoftDeletes bool
	Requests    bool
	PerPage     int
	Dialect     sqlstore.Dialect
	Timestamp   time.Time
}

// NewResource derives a Resource from a CamelCase name. An empty model
// defaults to name.
func NewResource(name, model, module, appDir string) (*Resource, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid resource name %q: must be CamelCase letters and digits", name)
	}
	if model == "" {
		model = name
	}
	if !namePattern.MatchString(model) {
		return nil, fmt.Errorf("invalid model name %q: must be CamelCase letters and digits", model)
	}

	return &Resource{
		Name:     name,
		Model:    model,
		Package:  names.PackageName(name),
		Table:    names.TableName(model),
		Singular: names.ToSnakeCase(model),
		Route:    names.TableName(name),
		Module:   module,
		AppDir:   path.Clean(appDir),
		PerPage:  15,
	}, nil
}

// Dir is the module-relative directory of the resource package
func (r *Resource) Dir() string {
	return path.Join(r.AppDir, r.Package)
}

// ImportPath is the Go import path of the resource package
func (r *Resource) ImportPath() string {
	return path.Join(r.Module, r.Dir())
}

// IDColumn is the primary key column definition for the migration
func (r *Resource) IDColumn() string {
	switch r.Dialect {
	case sqlstore.MySQL:
		if r.UUID {
			return "CHAR(36) PRIMARY KEY"
		}
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case sqlstore.SQLite:
		if r.UUID {
			return "TEXT PRIMARY KEY"
		}
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		if r.UUID {
			return "UUID PRIMARY KEY"
		}
		return "BIGSERIAL PRIMARY KEY"
	}
}

// TimestampType is the column type of created_at, updated_at and deleted_at
func (r *Resource) TimestampType() string {
	switch r.Dialect {
	case sqlstore.MySQL:
		return "DATETIME NULL"
	case sqlstore.SQLite:
		return "DATETIME"
	default:
		return "TIMESTAMP"
	}
}

// CustomLocale reports whether handlers need a non-English renderer
func (r *Resource) CustomLocale() bool {
	return r.Locale != "" && r.Locale != "en"
}

// MigrationName is the migration file stem, without direction and extension
func (r *Resource) MigrationName() string {
	return fmt.Sprintf("%d_create_%s_table", r.Timestamp.Unix(), r.Table)
}

// Stubs renders the embedded templates
type Stubs struct {
	tmpl *template.Template
}

// New parses the embedded templates
func New() (*Stubs, error) {
	tmpl, err := template.New("stubs").ParseFS(files, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse stubs: %w", err)
	}
	return &Stubs{tmpl: tmpl}, nil
}

// Render executes the named stub. Go files are gofmt'ed.
func (s *Stubs) Render(name string, r *Resource) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name+".tmpl", r); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}

	if path.Ext(name) != ".go" {
		return buf.String(), nil
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to format %s: %w", name, err)
	}
	return string(src), nil
}

// Lines renders a fragment stub as separate lines without trailing newlines
func (s *Stubs) Lines(name string, r *Resource) ([]string, error) {
	out, err := s.Render(name, r)
	if err != nil {
		return nil, err
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
