package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/mod/modfile"
	"golang.org/x/text/language"

	"github.com/conduit-lang/scaffold/internal/scaffold"
	"github.com/conduit-lang/scaffold/pkg/database"
	"github.com/conduit-lang/scaffold/pkg/repository/sqlstore"
)

// EnvPrefix prefixes environment overrides, e.g. SCAFFOLD_DATABASE_URL
const EnvPrefix = "SCAFFOLD"

// Config is the scaffold configuration of a target application
type Config struct {
	Module         string               `mapstructure:"module"`
	AppDir         string               `mapstructure:"app_dir"`
	RoutesFile     string               `mapstructure:"routes_file"`
	ProvidersFile  string               `mapstructure:"providers_file"`
	MigrationsDir  string               `mapstructure:"migrations_dir"`
	DefaultPerPage int                  `mapstructure:"default_pagination"`
	AutoBinding    bool                 `mapstructure:"auto_binding"`
	FileGeneration FileGenerationConfig `mapstructure:"file_generation"`
	Locale         string               `mapstructure:"locale"`
	Database       DatabaseConfig       `mapstructure:"database"`
}

// FileGenerationConfig controls how generated files are written
type FileGenerationConfig struct {
	OverwriteExisting bool `mapstructure:"overwrite_existing"`
	CreateDirectories bool `mapstructure:"create_directories"`
}

// DatabaseConfig selects the database of the target application
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
	// Dialect is used for migrations when URL is empty
	Dialect string `mapstructure:"dialect"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("module", "")
	v.SetDefault("app_dir", "internal/app")
	v.SetDefault("routes_file", "internal/routes/api.go")
	v.SetDefault("providers_file", "internal/providers/app.go")
	v.SetDefault("migrations_dir", "migrations")
	v.SetDefault("default_pagination", 15)
	v.SetDefault("auto_binding", true)
	v.SetDefault("file_generation.overwrite_existing", false)
	v.SetDefault("file_generation.create_directories", true)
	v.SetDefault("locale", "en")
	v.SetDefault("database.url", "")
	v.SetDefault("database.dialect", "postgres")
}

// Load reads scaffold.yaml or scaffold.yml from dir, or configFile when it
// is set, applying SCAFFOLD_ environment overrides. A .env file in dir is
// loaded into the environment first. Without a module key the module path
// is read from dir/go.mod.
func Load(dir, configFile string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("scaffold")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Module == "" {
		module, err := ModulePath(filepath.Join(dir, "go.mod"))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		config.Module = module
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ModulePath returns the module path declared in a go.mod file
func ModulePath(gomod string) (string, error) {
	data, err := os.ReadFile(gomod)
	if err != nil {
		return "", err
	}
	module := modfile.ModulePath(data)
	if module == "" {
		return "", fmt.Errorf("no module directive in %s", gomod)
	}
	return module, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.DefaultPerPage < 1 || c.DefaultPerPage > 100 {
		return fmt.Errorf("default_pagination must be between 1 and 100, got: %d", c.DefaultPerPage)
	}
	if _, err := c.Dialect(); err != nil {
		return err
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	for key, path := range map[string]string{
		"app_dir":        c.AppDir,
		"routes_file":    c.RoutesFile,
		"providers_file": c.ProvidersFile,
		"migrations_dir": c.MigrationsDir,
	} {
		if path == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
		if filepath.IsAbs(path) {
			return fmt.Errorf("%s must be relative to the project root, got: %s", key, path)
		}
	}
	return nil
}

// Dialect is the SQL dialect of database.url, or of database.dialect when
// no URL is set
func (c *Config) Dialect() (sqlstore.Dialect, error) {
	if c.Database.URL != "" {
		db, err := database.ParseURL(c.Database.URL)
		if err != nil {
			return 0, fmt.Errorf("invalid database.url: %w", err)
		}
		return db.Dialect, nil
	}
	return sqlstore.ParseDialect(c.Database.Dialect)
}

// Generator returns the generator settings. The module path is required.
func (c *Config) Generator() (scaffold.Config, error) {
	if c.Module == "" {
		return scaffold.Config{}, scaffold.ErrModuleRequired
	}
	dialect, err := c.Dialect()
	if err != nil {
		return scaffold.Config{}, err
	}
	return scaffold.Config{
		Module:            c.Module,
		AppDir:            filepath.ToSlash(c.AppDir),
		RoutesFile:        filepath.ToSlash(c.RoutesFile),
		ProvidersFile:     filepath.ToSlash(c.ProvidersFile),
		MigrationsDir:     filepath.ToSlash(c.MigrationsDir),
		DefaultPerPage:    c.DefaultPerPage,
		Locale:            c.Locale,
		Dialect:           dialect,
		OverwriteExisting: c.FileGeneration.OverwriteExisting,
		CreateDirectories: c.FileGeneration.CreateDirectories,
		SkipBindings:      !c.AutoBinding,
	}, nil
}

// FindProjectRoot walks up from dir to the first directory holding a
// scaffold config file or a go.mod
func FindProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"scaffold.yaml", "scaffold.yml", "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go project (no scaffold.yaml or go.mod found)")
		}
		dir = parent
	}
}
