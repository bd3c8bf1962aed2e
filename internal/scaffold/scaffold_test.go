package scaffold

import (
	"errors"
	"go/parser"
	"go/token"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providersFile = `package providers

import "github.com/conduit-lang/scaffold/pkg/container"
import "github.com/conduit-lang/scaffold/pkg/database"

func Register(c *container.Container, db *database.DB) {
}
`

func testConfig() Config {
	return Config{
		Module:            "example.com/shop",
		AppDir:            "internal/app",
		RoutesFile:        "internal/routes/api.go",
		ProvidersFile:     "internal/providers/app.go",
		MigrationsDir:     "migrations",
		DefaultPerPage:    20,
		CreateDirectories: true,
	}
}

type recordingConfirmer struct {
	answer    bool
	questions []string
}

func (c *recordingConfirmer) Confirm(message string) (bool, error) {
	c.questions = append(c.questions, message)
	return c.answer, nil
}

func newGenerator(t *testing.T, fs afero.Fs, config Config, confirm Confirmer) *Generator {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	g, err := NewGenerator(fs, config, WithConfirmer(confirm), WithClock(clock))
	require.NoError(t, err)
	return g
}

func withProviders(t *testing.T, content string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "internal/providers/app.go", []byte(content), 0644))
	return fs
}

func read(t *testing.T, fs afero.Fs, file string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, file)
	require.NoError(t, err)
	return string(data)
}

func TestGenerate(t *testing.T) {
	fs := withProviders(t, providersFile)
	g := newGenerator(t, fs, testConfig(), Decline)

	report, err := g.Generate(Options{Name: "User", Migration: true, Requests: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"internal/app/users/model.go",
		"internal/app/users/repository.go",
		"internal/app/users/service.go",
		"internal/app/users/handler.go",
		"internal/app/users/requests.go",
		"migrations/1709294400_create_users_table.up.sql",
		"migrations/1709294400_create_users_table.down.sql",
		"internal/routes/api.go",
	}, report.Created)
	assert.Equal(t, []string{"internal/providers/app.go"}, report.Patched)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Warnings)

	assert.Contains(t, read(t, fs, "internal/app/users/handler.go"), "web.WithDefaultPerPage(20)")

	routes := read(t, fs, "internal/routes/api.go")
	assert.Contains(t, routes, "import \"github.com/conduit-lang/scaffold/pkg/web\"\nimport \"example.com/shop/internal/app/users\"\n")
	assert.Contains(t, routes, `var _ = Resources.Add("users", func(c *container.Container) (web.ResourceHandler, error) {`)

	providers := read(t, fs, "internal/providers/app.go")
	assert.Equal(t, `package providers

import "github.com/conduit-lang/scaffold/pkg/container"
import "github.com/conduit-lang/scaffold/pkg/database"
import "example.com/shop/internal/app/users"

func Register(c *container.Container, db *database.DB) {
	container.Singleton(c, users.BindRepository(db))
	container.Singleton(c, users.BindService)
	container.Singleton(c, users.BindHandler)
}
`, providers)
}

func TestGenerate_SecondResourcePatchesRoutes(t *testing.T) {
	fs := withProviders(t, providersFile)
	g := newGenerator(t, fs, testConfig(), Decline)

	_, err := g.Generate(Options{Name: "User"})
	require.NoError(t, err)
	report, err := g.Generate(Options{Name: "BlogPost"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"internal/routes/api.go", "internal/providers/app.go"}, report.Patched)

	routes := read(t, fs, "internal/routes/api.go")
	assert.Contains(t, routes, `import "example.com/shop/internal/app/blogposts"`)
	assert.Contains(t, routes, `Resources.Add("users"`)
	assert.Contains(t, routes, `Resources.Add("blog_posts"`)
	assert.Less(t, strings.Index(routes, `Resources.Add("users"`), strings.Index(routes, `Resources.Add("blog_posts"`))

	providers := read(t, fs, "internal/providers/app.go")
	assert.Less(t, strings.Index(providers, "users.BindHandler"), strings.Index(providers, "blogposts.BindRepository"))
}

func TestGenerate_RerunDeclined(t *testing.T) {
	fs := withProviders(t, providersFile)
	_, err := newGenerator(t, fs, testConfig(), Decline).Generate(Options{Name: "User"})
	require.NoError(t, err)
	routes := read(t, fs, "internal/routes/api.go")
	providers := read(t, fs, "internal/providers/app.go")

	confirm := &recordingConfirmer{answer: false}
	report, err := newGenerator(t, fs, testConfig(), confirm).Generate(Options{Name: "User"})
	require.NoError(t, err)

	assert.Empty(t, report.Created)
	assert.Empty(t, report.Patched)
	assert.Len(t, report.Skipped, 6)
	assert.Len(t, confirm.questions, 6)
	assert.Equal(t, "internal/app/users/model.go already exists. Overwrite?", confirm.questions[0])
	assert.Equal(t, routes, read(t, fs, "internal/routes/api.go"))
	assert.Equal(t, providers, read(t, fs, "internal/providers/app.go"))
}

func TestGenerate_RerunConfirmed(t *testing.T) {
	fs := withProviders(t, providersFile)
	_, err := newGenerator(t, fs, testConfig(), Decline).Generate(Options{Name: "User"})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "internal/app/users/model.go", []byte("package users\n"), 0644))

	confirm := &recordingConfirmer{answer: true}
	report, err := newGenerator(t, fs, testConfig(), confirm).Generate(Options{Name: "User"})
	require.NoError(t, err)

	assert.Len(t, report.Created, 4)
	assert.Contains(t, read(t, fs, "internal/app/users/model.go"), "var Table")
	assert.Equal(t, 2, strings.Count(read(t, fs, "internal/routes/api.go"), `Resources.Add("users"`))
	assert.Equal(t, 2, strings.Count(read(t, fs, "internal/providers/app.go"), "users.BindService"))
}

func TestGenerate_ForceSkipsQuestions(t *testing.T) {
	fs := withProviders(t, providersFile)
	_, err := newGenerator(t, fs, testConfig(), Decline).Generate(Options{Name: "User"})
	require.NoError(t, err)

	confirm := &recordingConfirmer{}
	report, err := newGenerator(t, fs, testConfig(), confirm).Generate(Options{Name: "User", Force: true})
	require.NoError(t, err)

	assert.Empty(t, confirm.questions)
	assert.Len(t, report.Created, 4)
	assert.Equal(t, 2, strings.Count(read(t, fs, "internal/providers/app.go"), "users.BindService"))
}

func TestGenerate_OverwriteExistingConfig(t *testing.T) {
	fs := withProviders(t, providersFile)
	config := testConfig()
	config.OverwriteExisting = true
	require.NoError(t, afero.WriteFile(fs, "internal/app/users/model.go", []byte("package users\n"), 0644))

	confirm := &recordingConfirmer{}
	_, err := newGenerator(t, fs, config, confirm).Generate(Options{Name: "User"})
	require.NoError(t, err)

	assert.Empty(t, confirm.questions)
	assert.Contains(t, read(t, fs, "internal/app/users/model.go"), "var Table")
}

func TestGenerate_ProvidersWithoutRegister(t *testing.T) {
	fs := withProviders(t, "package providers\n")
	report, err := newGenerator(t, fs, testConfig(), Decline).Generate(Options{Name: "User"})
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)

	assert.Equal(t, `package providers
import "github.com/conduit-lang/scaffold/pkg/container"
import "github.com/conduit-lang/scaffold/pkg/database"
import "example.com/shop/internal/app/users"

// Register binds the repository, service and handler of every resource.
// Generated bindings refer to the parameters as c and db.
func Register(c *container.Container, db *database.DB) {
	container.Singleton(c, users.BindRepository(db))
	container.Singleton(c, users.BindService)
	container.Singleton(c, users.BindHandler)
}
`, read(t, fs, "internal/providers/app.go"))
}

func TestGenerate_RegisterEndNotFound(t *testing.T) {
	content := "package providers\n\nfunc Register(c *container.Container, db *database.DB) {}\n"
	fs := withProviders(t, content)

	report, err := newGenerator(t, fs, testConfig(), Decline).Generate(Options{Name: "User"})
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "could not find the end of Register")
	assert.Equal(t, content, read(t, fs, "internal/providers/app.go"))
}

func TestGenerate_GroupedImportProviders(t *testing.T) {
	fs := withProviders(t, `package providers

import (
	"github.com/conduit-lang/scaffold/pkg/container"
	"github.com/conduit-lang/scaffold/pkg/database"
)

func Register(c *container.Container, db *database.DB) {
}
`)
	g := newGenerator(t, fs, testConfig(), Decline)

	_, err := g.Generate(Options{Name: "User"})
	require.NoError(t, err)
	_, err = g.Generate(Options{Name: "BlogPost"})
	require.NoError(t, err)

	providers := read(t, fs, "internal/providers/app.go")
	file, err := parser.ParseFile(token.NewFileSet(), "app.go", providers, parser.ImportsOnly)
	require.NoError(t, err)

	var paths []string
	for _, spec := range file.Imports {
		paths = append(paths, spec.Path.Value)
	}
	assert.Equal(t, []string{
		`"github.com/conduit-lang/scaffold/pkg/container"`,
		`"github.com/conduit-lang/scaffold/pkg/database"`,
		`"example.com/shop/internal/app/users"`,
		`"example.com/shop/internal/app/blogposts"`,
	}, paths)
	assert.Contains(t, providers, "import (\n\t\"github.com/conduit-lang/scaffold/pkg/container\"")
	assert.Contains(t, providers, "container.Singleton(c, blogposts.BindHandler)")
}

func TestGenerate_RegisterWithOtherParameterNames(t *testing.T) {
	content := `package providers

import "github.com/conduit-lang/scaffold/pkg/container"
import "github.com/conduit-lang/scaffold/pkg/database"

func Register(ctr *container.Container, conn *database.DB) {
}
`
	fs := withProviders(t, content)

	report, err := newGenerator(t, fs, testConfig(), Decline).Generate(Options{Name: "User"})
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "Register in internal/providers/app.go must take (c *container.Container, db *database.DB)")
	assert.Contains(t, report.Warnings[0], "add the users bindings manually")
	assert.Equal(t, content, read(t, fs, "internal/providers/app.go"))
	assert.NotContains(t, report.Patched, "internal/providers/app.go")
}

func TestGenerate_MissingProviders(t *testing.T) {
	fs := afero.NewMemMapFs()
	report, err := newGenerator(t, fs, testConfig(), Decline).Generate(Options{Name: "User"})
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "provider file internal/providers/app.go not found")
	assert.NotContains(t, report.Patched, "internal/providers/app.go")
}

func TestGenerate_Errors(t *testing.T) {
	config := testConfig()
	config.Module = ""
	_, err := newGenerator(t, afero.NewMemMapFs(), config, Decline).Generate(Options{Name: "User"})
	assert.True(t, errors.Is(err, ErrModuleRequired))

	_, err = newGenerator(t, afero.NewMemMapFs(), testConfig(), Decline).Generate(Options{Name: "user"})
	assert.ErrorContains(t, err, "invalid resource name")

	config = testConfig()
	config.CreateDirectories = false
	_, err = newGenerator(t, afero.NewMemMapFs(), config, Decline).Generate(Options{Name: "User"})
	assert.ErrorContains(t, err, "directory internal/app/users does not exist")

	failing := ConfirmFunc(func(string) (bool, error) { return false, errors.New("interrupted") })
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "internal/app/users/model.go", []byte("package users\n"), 0644))
	_, err = newGenerator(t, fs, testConfig(), failing).Generate(Options{Name: "User"})
	assert.ErrorContains(t, err, "interrupted")

	_, err = newGenerator(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), testConfig(), Decline).Generate(Options{Name: "User"})
	assert.ErrorContains(t, err, "failed to create directory internal/app/users")
}

func TestGenerate_SkipBindings(t *testing.T) {
	fs := withProviders(t, providersFile)
	config := testConfig()
	config.SkipBindings = true

	report, err := newGenerator(t, fs, config, Decline).Generate(Options{Name: "User"})
	require.NoError(t, err)

	assert.Empty(t, report.Patched)
	assert.Equal(t, providersFile, read(t, fs, "internal/providers/app.go"))
}
