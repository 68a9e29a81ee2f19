// Package config loads converter settings from qxconv.yaml and QXCONV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/xxxbrian/qx-converter/internal/ci"
	"github.com/xxxbrian/qx-converter/internal/converter"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "qxconv.yaml"

// EnvPrefix prefixes environment overrides, e.g. QXCONV_INPUT_DIR.
const EnvPrefix = "QXCONV"

// Output key modes.
const (
	OutputKeyAppName  = "appname"
	OutputKeyBaseName = "basename"
)

// Category maps a keyword to a display label.
type Category struct {
	Keyword string `mapstructure:"keyword" yaml:"keyword"`
	Label   string `mapstructure:"label" yaml:"label"`
}

// ServeConfig configures the preview server.
type ServeConfig struct {
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	ResultTTL time.Duration `mapstructure:"result_ttl" yaml:"result_ttl"`
	CacheSize int           `mapstructure:"cache_size" yaml:"cache_size"`
}

// MarshalYAML writes durations in their string form.
func (s ServeConfig) MarshalYAML() (any, error) {
	return struct {
		Addr      string `yaml:"addr"`
		ResultTTL string `yaml:"result_ttl"`
		CacheSize int    `yaml:"cache_size"`
	}{s.Addr, s.ResultTTL.String(), s.CacheSize}, nil
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// MarshalYAML writes durations in their string form.
func (w WatchConfig) MarshalYAML() (any, error) {
	return struct {
		Debounce string `yaml:"debounce"`
	}{w.Debounce.String()}, nil
}

// Config holds all converter settings.
type Config struct {
	InputDir            string      `mapstructure:"input_dir" yaml:"input_dir"`
	LoonDir             string      `mapstructure:"loon_dir" yaml:"loon_dir"`
	SurgeDir            string      `mapstructure:"surge_dir" yaml:"surge_dir"`
	Extensions          []string    `mapstructure:"extensions" yaml:"extensions"`
	IconBaseURL         string      `mapstructure:"icon_base_url" yaml:"icon_base_url"`
	DefaultAuthor       string      `mapstructure:"default_author" yaml:"default_author"`
	DefaultCategory     string      `mapstructure:"default_category" yaml:"default_category"`
	DescriptionTemplate string      `mapstructure:"description_template" yaml:"description_template"`
	OutputKey           string      `mapstructure:"output_key" yaml:"output_key"`
	Categories          []Category  `mapstructure:"categories" yaml:"categories"`
	CIOutput            string      `mapstructure:"ci_output" yaml:"ci_output"`
	Serve               ServeConfig `mapstructure:"serve" yaml:"serve"`
	Watch               WatchConfig `mapstructure:"watch" yaml:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := converter.DefaultOptions()
	categories := make([]Category, 0, len(opts.Categories))
	for _, c := range opts.Categories {
		categories = append(categories, Category{Keyword: c.Keyword, Label: c.Label})
	}
	return &Config{
		InputDir:            "QuantumultX",
		LoonDir:             "Loon/plugins",
		SurgeDir:            "Surge/modules",
		Extensions:          []string{".js", ".conf", ".snippet"},
		IconBaseURL:         opts.IconBaseURL,
		DefaultAuthor:       opts.DefaultAuthor,
		DefaultCategory:     opts.DefaultCategory,
		DescriptionTemplate: opts.DescriptionTemplate,
		OutputKey:           OutputKeyAppName,
		Categories:          categories,
		Serve: ServeConfig{
			Addr:      ":8080",
			ResultTTL: 30 * time.Minute,
			CacheSize: 256,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("input_dir", d.InputDir)
	v.SetDefault("loon_dir", d.LoonDir)
	v.SetDefault("surge_dir", d.SurgeDir)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("icon_base_url", d.IconBaseURL)
	v.SetDefault("default_author", d.DefaultAuthor)
	v.SetDefault("default_category", d.DefaultCategory)
	v.SetDefault("description_template", d.DescriptionTemplate)
	v.SetDefault("output_key", d.OutputKey)
	v.SetDefault("categories", d.Categories)
	v.SetDefault("ci_output", d.CIOutput)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.result_ttl", d.Serve.ResultTTL)
	v.SetDefault("serve.cache_size", d.Serve.CacheSize)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// Load reads the config file at path, or qxconv.yaml in the working
// directory when path is empty. A missing default file is not an error.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(DefaultFile)
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", DefaultFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.CIOutput == "" {
		cfg.CIOutput = ci.DefaultOutput()
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func (c *Config) normalize() {
	exts := make([]string, 0, len(c.Extensions))
	for _, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.Extensions = exts
	c.OutputKey = strings.ToLower(strings.TrimSpace(c.OutputKey))
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.InputDir) == "" {
		problems = append(problems, "input_dir is required")
	}
	if strings.TrimSpace(c.LoonDir) == "" {
		problems = append(problems, "loon_dir is required")
	}
	if strings.TrimSpace(c.SurgeDir) == "" {
		problems = append(problems, "surge_dir is required")
	}
	if len(c.Extensions) == 0 {
		problems = append(problems, "extensions must not be empty")
	}
	if c.OutputKey != OutputKeyAppName && c.OutputKey != OutputKeyBaseName {
		problems = append(problems, fmt.Sprintf("output_key: %q is invalid (valid values: %s, %s)", c.OutputKey, OutputKeyAppName, OutputKeyBaseName))
	}
	for i, cat := range c.Categories {
		if cat.Keyword == "" || cat.Label == "" {
			problems = append(problems, fmt.Sprintf("categories[%d]: keyword and label are required", i))
		}
	}
	if c.Serve.CacheSize <= 0 {
		problems = append(problems, "serve.cache_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// ConverterOptions maps the config onto extraction options.
func (c *Config) ConverterOptions() converter.Options {
	categories := make([]converter.Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		categories = append(categories, converter.Category{Keyword: cat.Keyword, Label: cat.Label})
	}
	return converter.Options{
		IconBaseURL:         c.IconBaseURL,
		DefaultAuthor:       c.DefaultAuthor,
		DefaultCategory:     c.DefaultCategory,
		DescriptionTemplate: c.DescriptionTemplate,
		Categories:          categories,
		KeyByBaseName:       c.OutputKey == OutputKeyBaseName,
	}
}

// OutputDirs maps dialect names to their output directories.
func (c *Config) OutputDirs() map[string]string {
	return map[string]string{
		converter.Loon.Name:  c.LoonDir,
		converter.Surge.Name: c.SurgeDir,
	}
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the default config to path. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s\nUse --force to overwrite", path)
		}
	}
	data, err := Default().Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
