package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "STL2STEP_"

// ProjectFile is the configuration file looked up in the working directory
const ProjectFile = "stl2step.toml"

// Convert contains settings for locating inputs and writing outputs.
type Convert struct {
	// Input is converted when no file is given on the command line
	Input     string `toml:"input" env:"INPUT"`
	OutputDir string `toml:"output_dir" env:"OUTPUT_DIR"`
	// Jobs bounds concurrent conversions; zero means one per CPU
	Jobs            int  `toml:"jobs" env:"JOBS"`
	SplitComponents bool `toml:"split_components" env:"SPLIT_COMPONENTS"`
	// OpenSCADTimeout is the render timeout for .scad inputs in seconds
	OpenSCADTimeout int `toml:"openscad_timeout" env:"OPENSCAD_TIMEOUT"`
	// MaxInputSize rejects larger input files, e.g. "50MiB"; "0" disables
	// the check
	MaxInputSize string `toml:"max_input_size" env:"MAX_INPUT_SIZE"`
}

// Clean contains the mesh repair tolerances.
type Clean struct {
	WeldTolerance    float64 `toml:"weld_tolerance" env:"WELD_TOLERANCE"`
	MinArea          float64 `toml:"min_area" env:"MIN_AREA"`
	FixOrientation   bool    `toml:"fix_orientation" env:"FIX_ORIENTATION"`
	MergeCoplanar    bool    `toml:"merge_coplanar" env:"MERGE_COPLANAR"`
	AngularTolerance float64 `toml:"angular_tolerance" env:"ANGULAR_TOLERANCE"`
}

// Step contains product data written into the STEP file.
type Step struct {
	ProductName  string `toml:"product_name" env:"PRODUCT_NAME"`
	Author       string `toml:"author" env:"AUTHOR"`
	Organization string `toml:"organization" env:"ORGANIZATION"`
	Color        string `toml:"color" env:"COLOR"`
	Unit         string `toml:"unit" env:"UNIT"`
	// Timestamp overrides the header time (RFC 3339); empty uses the input
	// modification time
	Timestamp string `toml:"timestamp" env:"TIMESTAMP"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level string `toml:"level" env:"LEVEL"`
}

// Config encapsulates all configuration values for stl2step.
type Config struct {
	Convert Convert `toml:"convert" envPrefix:"CONVERT_"`
	Clean   Clean   `toml:"clean" envPrefix:"CLEAN_"`
	Step    Step    `toml:"step" envPrefix:"STEP_"`
	Logging Logging `toml:"logging" envPrefix:"LOGGING_"`
}

// Load builds the configuration. An explicit path must exist; without one the
// project file and then the user config file are tried. envFile optionally
// names a .env file whose variables apply below the process environment.
// The resolved config path is returned together with whether it existed.
func Load(path, envFile string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, errors.Wrap(err, "open config")
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, errors.Wrapf(err, "parse config %s", resolvedPath)
		}
	}

	if err := cfg.applyEnv(envFile); err != nil {
		return nil, "", false, err
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnv(envFile string) error {
	vars := make(map[string]string)
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return errors.Wrapf(err, "load env file %s", envFile)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	if err := env.ParseWithOptions(c, env.Options{
		Prefix:      EnvPrefix,
		Environment: vars,
	}); err != nil {
		return errors.Wrap(err, "parse environment")
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", false, errors.Wrap(err, "stat config")
		}
		if info.IsDir() {
			return "", false, errors.Errorf("config %s is a directory", path)
		}
		return path, true, nil
	}

	candidates := []string{ProjectFile}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "stl2step", "config.toml"))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", false, errors.Wrap(err, "stat config")
		}
	}
	return "", false, nil
}
