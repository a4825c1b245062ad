package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sthembisoo/airbrake-notifier/notifier"
	"gopkg.in/yaml.v3"
)

const DefaultName = "go-airbrake-notifier"

// Config holds everything a Notifier is built from
type Config struct {
	APIKey      string `yaml:"api_key"`
	Environment string `yaml:"environment"`
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Endpoint    string `yaml:"endpoint"`
	ProjectRoot string `yaml:"project_root"`
}

// Load reads the YAML file at path, when path is not empty, and overlays
// the AIRBRAKE_* environment variables on top of it.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Name:     DefaultName,
		Endpoint: notifier.DefaultEndpoint,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	overlayEnv(&cfg.APIKey, "AIRBRAKE_API_KEY")
	overlayEnv(&cfg.Environment, "AIRBRAKE_ENV")
	overlayEnv(&cfg.Endpoint, "AIRBRAKE_ENDPOINT")

	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = workingDir()
	}

	return cfg, nil
}

// Validate returns an error when the notifier would silently drop notices
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("api key required: use --api-key flag or set AIRBRAKE_API_KEY environment variable"))
	}
	if c.Environment == "" {
		errs = append(errs, errors.New("environment required: use --environment flag or set AIRBRAKE_ENV environment variable"))
	}
	return errors.Join(errs...)
}

// Options converts the config into notifier options
func (c *Config) Options() []notifier.Option {
	opts := []notifier.Option{
		notifier.WithAPIKey(c.APIKey),
		notifier.WithEnvironment(c.Environment),
		notifier.WithProjectRoot(c.ProjectRoot),
	}
	if c.URL != "" {
		opts = append(opts, notifier.WithNotifierURL(c.URL))
	}
	if c.Endpoint != "" {
		opts = append(opts, notifier.WithEndpoint(c.Endpoint))
	}
	return opts
}

func overlayEnv(field *string, key string) {
	if value := os.Getenv(key); value != "" {
		*field = value
	}
}

func workingDir() string {
	if pwd := os.Getenv("PWD"); pwd != "" {
		return pwd
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
