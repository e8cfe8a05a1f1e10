package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/jkemi/plipsql"
)

// Defaults applied before any config file, environment or flag.
const (
	DefaultDriver = "sqlite"
	DefaultDSN    = ":memory:"
	DefaultFormat = "table"

	envPrefix = "PLIPSQL_"
)

// Config holds the resolved CLI settings.
type Config struct {
	Driver  string `koanf:"driver"`
	DSN     string `koanf:"dsn"`
	Dialect string `koanf:"dialect"`
	Format  string `koanf:"format"`
	Verbose bool   `koanf:"verbose"`

	// FileUsed is the config file that was loaded, if any.
	FileUsed string `koanf:"-"`
}

// LoadConfig resolves the configuration from, in increasing priority:
// built-in defaults, the YAML file at cfgFile (or ./plipsql.yaml when
// present), PLIPSQL_* environment variables and explicitly set flags.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"driver":  DefaultDriver,
		"dsn":     DefaultDSN,
		"dialect": "",
		"format":  DefaultFormat,
		"verbose": false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// PLIPSQL_DSN -> dsn
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = used
	return &cfg, nil
}

// ResolveDialect returns the configured dialect, or the one implied by the
// driver name when none is set.
func (c *Config) ResolveDialect() (plipsql.Dialect, error) {
	name := c.Dialect
	if name == "" {
		name = c.Driver
	}
	d, err := plipsql.ParseDialect(name)
	if err != nil {
		return 0, fmt.Errorf("cannot determine dialect (set --dialect): %w", err)
	}
	return d, nil
}

// findConfigFile returns explicit when set, else the first default file
// that exists in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"plipsql.yaml", "plipsql.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
