// Package config resolves iconfont settings from defaults, a .env file,
// ICONFONT_* environment variables and a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"iconfont/pkg/fontcustom"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ICONFONT_"

// Config holds everything the compile command needs.
type Config struct {
	Tool          string             `yaml:"tool" validate:"required"`
	WorkspaceRoot string             `yaml:"workspace_root"`
	Dest          string             `yaml:"dest" validate:"required"`
	Timeout       time.Duration      `yaml:"timeout" validate:"gte=0"`
	Concurrency   int                `yaml:"concurrency" validate:"gte=0"`
	MaxFileSizeKB int                `yaml:"max_file_size_kb" validate:"gt=0"`
	MaxWorkers    int                `yaml:"max_workers" validate:"gte=0"`
	IgnoreFile    string             `yaml:"ignore_file"`
	Verify        bool               `yaml:"verify"`
	Debug         bool               `yaml:"debug"`
	Options       fontcustom.Options `yaml:"options"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Tool:          fontcustom.DefaultTool,
		WorkspaceRoot: ".",
		Dest:          "fonts",
		MaxFileSizeKB: 1024,
	}
}

// Load builds a Config: defaults, then envFile (when it exists), then the
// process environment, then the YAML file at optionsFile (when set).
func Load(envFile, optionsFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := loadFromEnv(&cfg); err != nil {
		return cfg, err
	}

	if optionsFile != "" {
		if err := loadFile(&cfg, optionsFile); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v := getenv("TOOL"); v != "" {
		cfg.Tool = v
	}
	if v := getenv("WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := getenv("DEST"); v != "" {
		cfg.Dest = v
	}
	if v := getenv("FONT_NAME"); v != "" {
		cfg.Options.FontName = v
	}
	if v := getenv("TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sTIMEOUT: %w", EnvPrefix, err)
		}
		cfg.Timeout = d
	}
	if v := getenv("CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sCONCURRENCY: %w", EnvPrefix, err)
		}
		cfg.Concurrency = n
	}
	if v := getenv("VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sVERIFY: %w", EnvPrefix, err)
		}
		cfg.Verify = b
	}
	if v := getenv("DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDEBUG: %w", EnvPrefix, err)
		}
		cfg.Debug = b
	}
	return nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

var validate = validator.New()

// Validate checks the configuration and reports every invalid field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, msgForTag(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	}
	return fe.Error()
}

// StageConfig maps the configuration onto the fontcustom stage.
func (c Config) StageConfig(runner fontcustom.Runner) fontcustom.Config {
	return fontcustom.Config{
		Options:       c.Options,
		Runner:        runner,
		WorkspaceRoot: c.WorkspaceRoot,
		Concurrency:   c.Concurrency,
		Timeout:       c.Timeout,
	}
}
