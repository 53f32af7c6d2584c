package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool

	// Config file
	ConfigFile string

	// Artifact layout
	IndexPath     string
	DistDir       string
	CollectionDir string

	// Registry search
	Zenodo ZenodoConfig

	// Fetch behavior
	FetchTimeout         time.Duration
	MaxConcurrentFetches int

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// ZenodoConfig is the registry section of the configuration.
type ZenodoConfig struct {
	BaseURL           string
	Sandbox           bool
	Community         string
	MaxItems          int
	PageSize          int
	RequestsPerSecond float64
	AccessToken       string
}

// URL returns the registry base URL, honouring the sandbox switch.
func (z ZenodoConfig) URL() string {
	if z.Sandbox {
		return constants.ZenodoSandboxURL
	}
	if z.BaseURL == "" {
		return constants.ZenodoURL
	}
	return z.BaseURL
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (COLLECTION_*)
// 3. .env files
// 4. Config file (collection.yaml in . or $HOME, or the given file)
// 5. Defaults
func LoadConfig(file string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix("collection")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+file, err)
		}
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName("collection")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		// Read config file (ignore error if not found)
		_ = v.ReadInConfig()
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no-color") || os.Getenv("NO_COLOR") != "",

		ConfigFile: v.ConfigFileUsed(),

		IndexPath:     v.GetString("index_path"),
		DistDir:       v.GetString("dist_dir"),
		CollectionDir: v.GetString("collection_dir"),

		Zenodo: ZenodoConfig{
			BaseURL:           v.GetString("zenodo.base_url"),
			Sandbox:           v.GetBool("zenodo.sandbox"),
			Community:         v.GetString("zenodo.community"),
			MaxItems:          v.GetInt("zenodo.max_items"),
			PageSize:          v.GetInt("zenodo.page_size"),
			RequestsPerSecond: v.GetFloat64("zenodo.requests_per_second"),
			AccessToken:       v.GetString("zenodo.access_token"),
		},

		FetchTimeout:         v.GetDuration("fetch_timeout"),
		MaxConcurrentFetches: v.GetInt("max_concurrent_fetches"),

		// Logging configuration
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
	return config, config.Validate()
}

// Validate rejects values no build could run with.
func (c *Config) Validate() error {
	switch {
	case c.IndexPath == "":
		return errors.NewConfigError("index_path", "must not be empty", nil)
	case c.DistDir == "":
		return errors.NewConfigError("dist_dir", "must not be empty", nil)
	case c.CollectionDir == "":
		return errors.NewConfigError("collection_dir", "must not be empty", nil)
	case c.Zenodo.MaxItems < 0:
		return errors.NewConfigError("zenodo.max_items", "must not be negative", nil)
	case c.FetchTimeout < 0:
		return errors.NewConfigError("fetch_timeout", "must not be negative", nil)
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = c.NoColor || noColor
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("index_path", constants.DefaultIndexPath)
	v.SetDefault("dist_dir", constants.DefaultDistDir)
	v.SetDefault("collection_dir", constants.DefaultCollectionDir)
	v.SetDefault("zenodo.base_url", constants.ZenodoURL)
	v.SetDefault("zenodo.sandbox", false)
	v.SetDefault("zenodo.community", "")
	v.SetDefault("zenodo.max_items", constants.DefaultMaxItems)
	v.SetDefault("zenodo.page_size", constants.DefaultPageSize)
	v.SetDefault("zenodo.requests_per_second", constants.DefaultRequestsPerSecond)
	v.SetDefault("zenodo.access_token", "")
	v.SetDefault("fetch_timeout", constants.SourceFetchTimeout)
	v.SetDefault("max_concurrent_fetches", constants.MaxConcurrentFetches)
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// .env.local overrides .env
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
