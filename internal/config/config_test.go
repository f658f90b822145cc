package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"OutDir", cfg.OutDir, "/tmp/NullAwayFix"},
		{"Nullable", cfg.Annotation.Nullable, "javax.annotation.Nullable"},
		{"Initializer", cfg.Annotation.Initializer, "com.uber.nullaway.annotations.Initializer"},
		{"Depth", cfg.Depth, 5},
		{"Format", cfg.Format, false},
		{"JavaPath", cfg.Tool.JavaPath, "java"},
		{"Cache", cfg.Tool.Cache, true},
		{"Optimized", cfg.Tool.Optimized, true},
		{"Bailout", cfg.Tool.Bailout, true},
		{"Chain", cfg.Tool.Chain, false},
		{"MaxRounds", cfg.MaxRounds, 0},
		{"LogFormat", cfg.LogFormat, "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	if !filepath.IsAbs(cfg.Tool.Jar) {
		t.Errorf("Tool.Jar should be resolved to an absolute path, got %q", cfg.Tool.Jar)
	}
}

func TestLoad_RepoRootDefaultsToProject(t *testing.T) {
	resetViper()
	viper.Set("project_path", "/src/app")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RepoRootPath != "/src/app" {
		t.Errorf("RepoRootPath = %q, want /src/app", cfg.RepoRootPath)
	}

	viper.Set("repo_root_path", "/src")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RepoRootPath != "/src" {
		t.Errorf("RepoRootPath = %q, want /src", cfg.RepoRootPath)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{
			name:   "build_command",
			envKey: "NULLFIX_BUILD_COMMAND",
			envVal: "./gradlew compileJava",
			field:  func(c Config) any { return c.BuildCommand },
			want:   "./gradlew compileJava",
		},
		{
			name:   "depth",
			envKey: "NULLFIX_DEPTH",
			envVal: "9",
			field:  func(c Config) any { return c.Depth },
			want:   9,
		},
		{
			name:   "format",
			envKey: "NULLFIX_FORMAT",
			envVal: "true",
			field:  func(c Config) any { return c.Format },
			want:   true,
		},
		{
			name:   "max_rounds",
			envKey: "NULLFIX_MAX_ROUNDS",
			envVal: "4",
			field:  func(c Config) any { return c.MaxRounds },
			want:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()
			viper.SetEnvPrefix("NULLFIX")
			viper.AutomaticEnv()

			t.Setenv(tt.envKey, tt.envVal)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			got := tt.field(cfg)
			if got != tt.want {
				t.Errorf("%s: got %v (%T), want %v (%T)", tt.name, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLoad_LegacyJSONFile(t *testing.T) {
	resetViper()
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"project_path": "/p", "build_command": "mvn compile", "annotation": {"nullable": "x.Nullable"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BuildCommand != "mvn compile" || cfg.Annotation.Nullable != "x.Nullable" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Annotation.Initializer == "" {
		t.Error("unset nested keys should keep their defaults")
	}
}

func TestValidate(t *testing.T) {
	resetViper()
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	err = cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, key := range []string{"project_path", "build_command"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}

	cfg.ProjectPath = "/p"
	cfg.BuildCommand = "make"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	cfg.Depth = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative depth should be invalid, got %v", err)
	}
}

func TestBuildInRoot(t *testing.T) {
	cfg := Config{RepoRootPath: "/repo", BuildCommand: "./gradlew build -x test"}
	if got := cfg.BuildInRoot(); got != "cd /repo && ./gradlew build -x test" {
		t.Errorf("BuildInRoot = %q", got)
	}
}

func TestValidate_MessagesUseConfigKeys(t *testing.T) {
	cfg := Config{
		ProjectPath:  "/p",
		BuildCommand: "make",
		OutDir:       "/out",
		Annotation:   AnnotationConfig{Nullable: "x.Nullable"},
		Tool:         ToolConfig{JavaPath: "java", Jar: "/core.jar"},
		MaxRounds:    -2,
		LogFormat:    "xml",
	}
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{
		"annotation.initializer is required",
		"max_rounds must not be negative, got -2",
		`log_format must be one of text, json, got "xml"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should contain %q:\n%v", want, err)
		}
	}
}
