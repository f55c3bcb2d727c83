package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is everything the CLI reads from nerves-hub.yaml, the environment
// (NERVES_HUB_*), or flags.
type Config struct {
	// URI is the base URL of the hub's user API.
	URI string `mapstructure:"uri" yaml:"uri"`
	// CACerts optionally points at a PEM file or directory that replaces the
	// system roots when talking to the hub.
	CACerts string `mapstructure:"ca_certs" yaml:"ca_certs"`
	// DataDir holds the settings database and the sealed identity.
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	Language string `mapstructure:"language" yaml:"language"`
	// Timeout is the request timeout in seconds.
	Timeout int `mapstructure:"timeout" yaml:"timeout"`
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "NervesHub")
		default: // Linux, macOS, etc.
			configDir = "/etc/nerves-hub"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "nerves-hub")
	}

	return filepath.Join(configDir, "nerves-hub.yaml"), nil
}

// LoadConfig resolves configuration from defaults, config files, NERVES_HUB_*
// environment variables, and the command's flags, in rising precedence. When
// no config file exists anywhere, the returned error is viper's
// ConfigFileNotFoundError and the returned config is still fully populated
// from the other sources, so a first run can persist the defaults.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitConfigFile *string) (T, error) {
	var c T
	v := viper.New()

	// 1. Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. Set up file search
	v.SetConfigName("nerves-hub")
	v.SetConfigType("yaml")

	// 3. An explicit --config path wins over the search paths.
	if explicitConfigFile != nil {
		v.SetConfigFile(*explicitConfigFile)
	}

	// 4. Standard config locations
	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	// 5. Read the primary config file. A search miss is remembered and
	// reported at the end; any other read error is fatal.
	var notFound error
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
		notFound = err
	}

	// 6. Merge a project-local override from the working directory, so a
	// project can pin its own hub or data directory.
	mergeProjectConfig(v)

	// 7. Environment variables
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("nerves_hub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, notFound
}

// mergeProjectConfig merges a `.nerves-hub.yaml` from the current directory
// over whatever the primary file set. A malformed override is ignored rather
// than blocking startup.
func mergeProjectConfig(v *viper.Viper) {
	projectConfigFile := ".nerves-hub.yaml"
	if _, err := os.Stat(projectConfigFile); err == nil {
		v.SetConfigFile(projectConfigFile)
		_ = v.MergeInConfig()
		// Reset the config file path to avoid side effects.
		v.SetConfigFile("")
	}
}

// WriteConfigFile persists the configuration to the user or system path.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := GetConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the file may name private infrastructure.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	return nil
}
