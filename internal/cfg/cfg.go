package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment override, e.g. FCC_LOG_LEVEL.
const envPrefix = "FCC"

// ModelConfig locates one regressor.
type ModelConfig struct {
	Name string `yaml:"name" validate:"required"`
	Kind string `yaml:"kind" validate:"omitempty,oneof=linear exec http"`
	Path string `yaml:"path" validate:"required"`
}

// RangeConfig is one row of the range table. Either bound may be omitted.
type RangeConfig struct {
	Target string   `yaml:"target" validate:"required"`
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
}

type Settings struct {
	PrimaryModel          ModelConfig
	SecondaryModel        ModelConfig
	ModelTimeout          time.Duration
	ParallelInference     bool
	IncludeProductColumns bool
	Ranges                []RangeConfig `validate:"dive"` // nil means the built-in table
	DataPath              string
	ListenAddr            string `validate:"required,hostname_port"`
	MaxUploadBytes        int64  `validate:"gte=1024"`
	MaxConcurrentRuns     int    `validate:"gte=1,lte=64"`
	ShutdownTimeout       time.Duration
	LogLevel              string `validate:"oneof=trace debug info warn error"`
}

type ConfigFile struct {
	Models struct {
		Primary   ModelConfig `yaml:"primary"`
		Secondary ModelConfig `yaml:"secondary"`
		Timeout   string      `yaml:"timeout"`
	} `yaml:"models"`

	Inference struct {
		Parallel *bool `yaml:"parallel"`
	} `yaml:"inference"`

	Output struct {
		IncludeProductColumns bool `yaml:"includeProductColumns"`
	} `yaml:"output"`

	Ranges []RangeConfig `yaml:"ranges"`

	Server struct {
		ListenAddr        string `yaml:"listenAddr"`
		MaxUploadBytes    int64  `yaml:"maxUploadBytes"`
		MaxConcurrentRuns int    `yaml:"maxConcurrentRuns"`
		ShutdownTimeout   string `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	System struct {
		DataPath string `yaml:"dataPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

// envOverrides are read with envconfig. Unset variables leave the pointer
// nil so the file or default value stands.
type envOverrides struct {
	PrimaryModelPath      *string        `envconfig:"PRIMARY_MODEL_PATH"`
	PrimaryModelKind      *string        `envconfig:"PRIMARY_MODEL_KIND"`
	SecondaryModelPath    *string        `envconfig:"SECONDARY_MODEL_PATH"`
	SecondaryModelKind    *string        `envconfig:"SECONDARY_MODEL_KIND"`
	ModelTimeout          *time.Duration `envconfig:"MODEL_TIMEOUT"`
	ParallelInference     *bool          `envconfig:"PARALLEL_INFERENCE"`
	IncludeProductColumns *bool          `envconfig:"INCLUDE_PRODUCT_COLUMNS"`
	DataPath              *string        `envconfig:"DATA_PATH"`
	ListenAddr            *string        `envconfig:"LISTEN_ADDR"`
	MaxUploadBytes        *int64         `envconfig:"MAX_UPLOAD_BYTES"`
	MaxConcurrentRuns     *int           `envconfig:"MAX_CONCURRENT_RUNS"`
	ShutdownTimeout       *time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
	LogLevel              *string        `envconfig:"LOG_LEVEL"`
}

// Defaults returns the settings used when neither a file nor the environment
// says otherwise.
func Defaults() Settings {
	return Settings{
		PrimaryModel:      ModelConfig{Name: "rf", Path: "rf_model.pkl"},
		SecondaryModel:    ModelConfig{Name: "gb", Path: "gb_model.pkl"},
		ModelTimeout:      30 * time.Second,
		ParallelInference: true,
		ListenAddr:        ":8080",
		MaxUploadBytes:    32 << 20,
		MaxConcurrentRuns: 1,
		ShutdownTimeout:   15 * time.Second,
		LogLevel:          "info",
	}
}

// Load builds Settings from, in increasing precedence: defaults, the YAML
// file at path (or CONFIG_FILE when path is empty), and FCC_* environment
// variables. A .env file in the working directory is loaded first if present.
func Load(path string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	settings := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := applyYAML(&settings, path); err != nil {
			return Settings{}, err
		}
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func applyYAML(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeModel(&s.PrimaryModel, config.Models.Primary)
	mergeModel(&s.SecondaryModel, config.Models.Secondary)

	if config.Models.Timeout != "" {
		d, err := time.ParseDuration(config.Models.Timeout)
		if err != nil {
			return fmt.Errorf("invalid models.timeout %q: %w", config.Models.Timeout, err)
		}
		s.ModelTimeout = d
	}
	if config.Inference.Parallel != nil {
		s.ParallelInference = *config.Inference.Parallel
	}
	s.IncludeProductColumns = config.Output.IncludeProductColumns
	if config.Ranges != nil {
		s.Ranges = config.Ranges
	}

	if config.Server.ListenAddr != "" {
		s.ListenAddr = config.Server.ListenAddr
	}
	if config.Server.MaxUploadBytes != 0 {
		s.MaxUploadBytes = config.Server.MaxUploadBytes
	}
	if config.Server.MaxConcurrentRuns != 0 {
		s.MaxConcurrentRuns = config.Server.MaxConcurrentRuns
	}
	if config.Server.ShutdownTimeout != "" {
		d, err := time.ParseDuration(config.Server.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid server.shutdownTimeout %q: %w", config.Server.ShutdownTimeout, err)
		}
		s.ShutdownTimeout = d
	}

	if config.System.DataPath != "" {
		s.DataPath = config.System.DataPath
	}
	if config.System.LogLevel != "" {
		s.LogLevel = config.System.LogLevel
	}
	return nil
}

func mergeModel(dst *ModelConfig, src ModelConfig) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Kind != "" {
		dst.Kind = src.Kind
	}
	if src.Path != "" {
		dst.Path = src.Path
	}
}

func applyEnv(s *Settings) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("failed to load config from env: %w", err)
	}

	setString(&s.PrimaryModel.Path, env.PrimaryModelPath)
	setString(&s.PrimaryModel.Kind, env.PrimaryModelKind)
	setString(&s.SecondaryModel.Path, env.SecondaryModelPath)
	setString(&s.SecondaryModel.Kind, env.SecondaryModelKind)
	setString(&s.DataPath, env.DataPath)
	setString(&s.ListenAddr, env.ListenAddr)
	setString(&s.LogLevel, env.LogLevel)

	if env.ModelTimeout != nil {
		s.ModelTimeout = *env.ModelTimeout
	}
	if env.ParallelInference != nil {
		s.ParallelInference = *env.ParallelInference
	}
	if env.IncludeProductColumns != nil {
		s.IncludeProductColumns = *env.IncludeProductColumns
	}
	if env.MaxUploadBytes != nil {
		s.MaxUploadBytes = *env.MaxUploadBytes
	}
	if env.MaxConcurrentRuns != nil {
		s.MaxConcurrentRuns = *env.MaxConcurrentRuns
	}
	if env.ShutdownTimeout != nil {
		s.ShutdownTimeout = *env.ShutdownTimeout
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

var validate = validator.New()

// validateSettings checks struct tags first, then the cross-field rules
// tags cannot express. Range targets are checked against the target schema
// when the pipeline is built.
func validateSettings(settings *Settings) error {
	if err := validate.Struct(settings); err != nil {
		return err
	}

	if settings.PrimaryModel.Name == settings.SecondaryModel.Name {
		return fmt.Errorf("primary and secondary models must have different names, both are %q", settings.PrimaryModel.Name)
	}

	// Validate time durations
	if settings.ModelTimeout < 100*time.Millisecond || settings.ModelTimeout > 10*time.Minute {
		return fmt.Errorf("model timeout must be between 100ms and 10m, got %v", settings.ModelTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}

	for i, r := range settings.Ranges {
		if r.Min == nil && r.Max == nil {
			return fmt.Errorf("range %d (%s): at least one of min and max is required", i, r.Target)
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return fmt.Errorf("range %d (%s): min %g is greater than max %g", i, r.Target, *r.Min, *r.Max)
		}
	}

	return nil
}
