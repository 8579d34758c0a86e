// Package config holds the tellix configuration model. Configuration is read
// from YAML, JSON or TOML files, layered over built-in defaults and validated
// before any adapter starts.
package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/tellix/internal/errors"
	"github.com/anstrom/tellix/internal/logging"
)

const (
	configDirPerm  = 0750
	configFilePerm = 0600
)

// Config represents the complete tellix configuration
type Config struct {
	// Probe invocation settings
	Probe ProbeConfig `yaml:"probe" json:"probe"`

	// HTTP API settings, used by "tellix serve"
	API APIConfig `yaml:"api" json:"api"`

	// Scratch directory janitor settings
	Janitor JanitorConfig `yaml:"janitor" json:"janitor"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ProbeConfig holds settings for invoking the probing binary
type ProbeConfig struct {
	// Name or path of the probing binary, resolved through PATH
	Binary string `yaml:"binary" json:"binary" validate:"required"`

	// Directory under which per-invocation workspaces are created
	ScratchDir string `yaml:"scratch_dir" json:"scratch_dir" validate:"required"`

	// Upper bound on a single binary run
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Maximum targets per invocation, 0 means unlimited
	MaxTargets int `yaml:"max_targets" json:"max_targets" validate:"gte=0"`

	// Maximum binary processes running at once
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent" validate:"min=1"`

	// Extra flags callers may not pass, on top of the built-in list
	DeniedFlags []string `yaml:"denied_flags" json:"denied_flags" validate:"dive,startswith=-"`
}

// APIConfig holds API server settings
type APIConfig struct {
	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" validate:"required"`

	// Listen port
	Port int `yaml:"port" json:"port" validate:"min=1,max=65535"`

	// Bcrypt hashes of accepted API keys. Authentication is off when empty.
	APIKeyHashes []string `yaml:"api_key_hashes" json:"api_key_hashes" validate:"dive,startswith=$2"`

	// Allowed CORS origins
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// Server timeouts
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"gte=0"`

	// Maximum request body size in bytes
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size" validate:"gt=0"`
}

// JanitorConfig holds settings for sweeping workspaces left behind by crashed processes
type JanitorConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Cron schedule, descriptors such as "@every 10m" are accepted
	Schedule string `yaml:"schedule" json:"schedule" validate:"required_if=Enabled true"`

	// Workspaces older than this are considered abandoned
	MaxAge time.Duration `yaml:"max_age" json:"max_age" validate:"gt=0"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stderr, stdout, file path)
	Output string `yaml:"output" json:"output"`

	// Include source positions
	AddSource bool `yaml:"add_source" json:"add_source"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Probe: ProbeConfig{
			Binary:        "httpx",
			ScratchDir:    filepath.Join(os.TempDir(), "tellix"),
			Timeout:       10 * time.Minute,
			MaxTargets:    0,
			MaxConcurrent: 4,
			DeniedFlags:   []string{},
		},
		API: APIConfig{
			ListenAddr:     "127.0.0.1",
			Port:           8080,
			APIKeyHashes:   []string{},
			CORSOrigins:    []string{"*"},
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   11 * time.Minute,
			IdleTimeout:    2 * time.Minute,
			MaxRequestSize: 1024 * 1024, // 1MB
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: "@every 10m",
			MaxAge:   30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := decodeTOML(data, config); err != nil {
			return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse TOML config", err)
		}
	case ".json":
		// The YAML decoder handles durations but accepts more than JSON
		if !json.Valid(data) {
			return nil, errors.NewConfigError(errors.CodeConfiguration, "failed to parse JSON config: invalid syntax")
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse JSON config", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse YAML config", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// decodeTOML routes TOML documents through the YAML decoder so that duration
// strings such as "10m" decode the same way in every format.
func decodeTOML(data []byte, config *Config) error {
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return err
	}
	intermediate, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(intermediate, config)
}

// Save saves configuration to a file as YAML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config file keys
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			field := strings.TrimPrefix(first.Namespace(), "Config.")
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("failed %q constraint", first.Tag()), field, first.Value())
		}
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}

	if c.Janitor.Enabled {
		if _, err := cron.ParseStandard(c.Janitor.Schedule); err != nil {
			return &errors.ConfigError{
				Code:    errors.CodeValidation,
				Message: "invalid cron schedule",
				Field:   "janitor.schedule",
				Value:   c.Janitor.Schedule,
				Cause:   err,
			}
		}
		// A live invocation must never look abandoned
		if c.Janitor.MaxAge <= c.Probe.Timeout {
			return errors.NewConfigFieldError(errors.CodeValidation,
				"janitor max age must exceed the probe timeout", "janitor.max_age", c.Janitor.MaxAge)
		}
	}

	return nil
}

// ValidateServe adds the checks that only matter when the HTTP API runs.
// A response has to fit in the write timeout, so the binary must finish first.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.API.WriteTimeout > 0 && c.API.WriteTimeout <= c.Probe.Timeout {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"API write timeout must exceed the probe timeout", "api.write_timeout", c.API.WriteTimeout)
	}
	return nil
}

// GetAPIAddress returns the API listen address in host:port form
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.ListenAddr, strconv.Itoa(c.API.Port))
}

// IsAuthEnabled returns true if at least one API key hash is configured
func (c *Config) IsAuthEnabled() bool {
	return len(c.API.APIKeyHashes) > 0
}

// LoggerConfig converts the logging section into a logger configuration
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Logging.Level),
		Format:    logging.LogFormat(c.Logging.Format),
		Output:    c.Logging.Output,
		AddSource: c.Logging.AddSource,
	}
}
