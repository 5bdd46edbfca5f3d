package gen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// ConfigFile is the per-directory configuration file name.
const ConfigFile = ".forktest.yaml"

// Config controls how isolated bodies are discovered and where wrappers are
// written. All fields have defaults; a config file only needs the fields it
// wants to change.
type Config struct {
	// Output is the name of the generated file, one per package.
	Output string `yaml:"output" validate:"required,endswith=_test.go"`
	// TestPrefix marks test bodies: a function isolatedXxx(t *testing.T)
	// gets a TestXxx wrapper.
	TestPrefix string `yaml:"testPrefix" validate:"required"`
	// BenchPrefix marks benchmark bodies: isolatedBenchXxx(b *testing.B)
	// gets a BenchmarkXxx wrapper. Checked before TestPrefix, so it may
	// extend it.
	BenchPrefix string `yaml:"benchPrefix" validate:"required,nefield=TestPrefix"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Output:      "forktest_gen_test.go",
		TestPrefix:  "isolated",
		BenchPrefix: "isolatedBench",
	}
}

// LoadConfig reads dir's config file, falling back to defaults when there
// is none. Unknown keys and invalid values are errors; a half-understood
// config silently generating the wrong wrappers would be worse.
func LoadConfig(dir string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.UnmarshalWithOptions(raw, &cfg, yaml.Strict()); err != nil {
		return cfg, fmt.Errorf("error loading %s: %w", ConfigFile, err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	return cfg, nil
}
