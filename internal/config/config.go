// Package config loads nullfix settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is matched by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// AnnotationConfig names the annotations injected into the target project.
type AnnotationConfig struct {
	Nullable    string `mapstructure:"nullable" yaml:"nullable" validate:"required"`
	NonNull     string `mapstructure:"nonnull" yaml:"nonnull"`
	Initializer string `mapstructure:"initializer" yaml:"initializer" validate:"required"`
}

// ToolConfig locates the analyzer and tunes its search.
type ToolConfig struct {
	JavaPath  string `mapstructure:"java_path" yaml:"java_path" validate:"required"`
	Jar       string `mapstructure:"jar" yaml:"jar" validate:"required"`
	Cache     bool   `mapstructure:"cache" yaml:"cache"`
	Optimized bool   `mapstructure:"optimized" yaml:"optimized"`
	Bailout   bool   `mapstructure:"bailout" yaml:"bailout"`
	Chain     bool   `mapstructure:"chain" yaml:"chain"`
}

// Config holds all runtime configuration for a nullfix invocation.
// Values are populated from .nullfix.yaml, NULLFIX_* env vars, and CLI flags.
// It is read once and passed by value; nothing mutates it after Load.
type Config struct {
	ProjectPath  string           `mapstructure:"project_path" yaml:"project_path" validate:"required"`
	RepoRootPath string           `mapstructure:"repo_root_path" yaml:"repo_root_path"`
	BuildCommand string           `mapstructure:"build_command" yaml:"build_command" validate:"required"`
	OutDir       string           `mapstructure:"out_dir" yaml:"out_dir" validate:"required"`
	Annotation   AnnotationConfig `mapstructure:"annotation" yaml:"annotation"`
	Depth        int              `mapstructure:"depth" yaml:"depth" validate:"gte=0"`
	Format       bool             `mapstructure:"format" yaml:"format"`
	Tool         ToolConfig       `mapstructure:"tool" yaml:"tool"`
	MaxRounds    int              `mapstructure:"max_rounds" yaml:"max_rounds" validate:"gte=0"`
	LogLevel     string           `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string           `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
	Verbose      bool             `mapstructure:"verbose" yaml:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags. The repository root
// defaults to the project path.
func Load() (Config, error) {
	viper.SetDefault("project_path", "")
	viper.SetDefault("repo_root_path", "")
	viper.SetDefault("build_command", "")
	viper.SetDefault("out_dir", "/tmp/NullAwayFix")
	viper.SetDefault("annotation.nullable", "javax.annotation.Nullable")
	viper.SetDefault("annotation.nonnull", "javax.annotation.Nonnull")
	viper.SetDefault("annotation.initializer", "com.uber.nullaway.annotations.Initializer")
	viper.SetDefault("depth", 5)
	viper.SetDefault("format", false)
	viper.SetDefault("tool.java_path", "java")
	viper.SetDefault("tool.jar", "jars/core.jar")
	viper.SetDefault("tool.cache", true)
	viper.SetDefault("tool.optimized", true)
	viper.SetDefault("tool.bailout", true)
	viper.SetDefault("tool.chain", false)
	viper.SetDefault("max_rounds", 0)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.RepoRootPath == "" {
		cfg.RepoRootPath = cfg.ProjectPath
	}
	if cfg.Tool.Jar != "" && !filepath.IsAbs(cfg.Tool.Jar) {
		if abs, err := filepath.Abs(cfg.Tool.Jar); err == nil {
			cfg.Tool.Jar = abs
		}
	}
	return cfg, nil
}

// Validate reports every missing or out-of-range setting at once. The
// returned error matches ErrInvalidConfig.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, describe(fe))
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// describe turns a validation failure into a message keyed like the
// configuration file.
func describe(fe validator.FieldError) error {
	// Namespace is "Config.annotation.nullable"; drop the type name.
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", key)
	case "gte":
		return fmt.Errorf("%s must not be negative, got %v", key, fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of %s, got %q", key, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	default:
		return fmt.Errorf("%s failed %s check", key, fe.Tag())
	}
}

// BuildInRoot is the build command prefixed with a change into the
// repository root, the form the analyzer runs through a shell.
func (c Config) BuildInRoot() string {
	return fmt.Sprintf("cd %s && %s", c.RepoRootPath, c.BuildCommand)
}
