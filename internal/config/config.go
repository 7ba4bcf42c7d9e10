package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configData Config
	v          *viper.Viper
)

// Config holds all configuration settings.
type Config struct {
	// Server configuration
	Server struct {
		Host string
		Port int
	}
	// Plugin configuration
	Plugin struct {
		Path      string
		Customize string
	}
	// Conversion configuration
	Convert struct {
		Workers   int
		OutputDir string `mapstructure:"output_dir"`
	}
	// Library configuration
	Library struct {
		Path string
	}
	// Logging configuration
	Log struct {
		Level  string
		Format string
	}
}

// flagKeys maps persistent CLI flags onto configuration keys.
var flagKeys = map[string]string{
	"log.level":   "log-level",
	"log.format":  "log-format",
	"plugin.path": "plugin-path",
}

// Initialize sets up the configuration system. An explicit cfgFile replaces the
// search paths; flags, when given, override file and environment values.
func Initialize(cfgFile string, flags *pflag.FlagSet) error {
	v = viper.New()

	// Set config name and paths
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")           // name of config file (without extension)
		v.SetConfigType("yaml")             // config file type
		v.AddConfigPath(".")                // optionally look for config in working directory
		v.AddConfigPath("$HOME/.ebookconv") // look for config in .ebookconv directory in home
		v.AddConfigPath("/etc/ebookconv/")  // path to look for the config file in
	}

	// Set default values
	setDefaults()

	// Environment variables
	v.SetEnvPrefix("EBOOKCONV") // prefix for env vars
	v.AutomaticEnv()            // read in environment variables that match
	v.SetEnvKeyReplacer(        // replace dots with underscores in env vars
		strings.NewReplacer(".", "_"),
	)

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	// Create config file if it doesn't exist
	if cfgFile == "" {
		if err := ensureConfig(); err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	// Read in config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if we can't find a config file, we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal config into struct
	if err := v.Unmarshal(&configData); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return nil
}

// setDefaults sets default values for all configuration options.
func setDefaults() {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 1600)

	// Plugin defaults
	v.SetDefault("plugin.path", "plugins")
	v.SetDefault("plugin.customize", filepath.Join(homeDir(), "customize.yaml"))

	// Conversion defaults
	v.SetDefault("convert.workers", 4)
	v.SetDefault("convert.output_dir", "")

	// Library defaults
	v.SetDefault("library.path", filepath.Join(homeDir(), "library"))

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}

// homeDir returns the per-user configuration directory.
func homeDir() string {
	return filepath.Join(os.Getenv("HOME"), ".ebookconv")
}

// ensureConfig creates a default config file if none exists.
func ensureConfig() error {
	// Check if config directory exists
	if _, err := os.Stat(homeDir()); os.IsNotExist(err) {
		// Create directory
		if err := os.MkdirAll(homeDir(), 0o755); err != nil {
			return err
		}
	}

	configFile := filepath.Join(homeDir(), "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		// Create default config file
		defaultConfig := `# ebookconv configuration file
server:
  host: localhost
  port: 1600

plugin:
  path: plugins

convert:
  workers: 4

log:
  level: info
  format: human
`
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o644); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the current configuration.
func Get() *Config {
	return &configData
}

// GetViper returns the viper instance.
func GetViper() *viper.Viper {
	return v
}
