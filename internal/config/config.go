package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"abfunnel/internal/errors"

	"gopkg.in/yaml.v3"
)

// Defaults applied before the YAML file and the environment
const (
	DefaultAlpha               = 0.05
	DefaultLiftThreshold       = 0.05
	DefaultTenureThresholdDays = 90
	DefaultSampleSize          = 50
	DefaultSeed                = 42
	DefaultEventsTable         = "web_events"
	DefaultOutputFormat        = "text"
	DefaultLogLevel            = "INFO"
)

// SearchPaths are tried in order when no config file is named
var SearchPaths = []string{"config.yaml", filepath.Join("..", "config.yaml")}

// Config represents the complete application configuration
type Config struct {
	Paths    PathConfig     `yaml:"paths"`
	Files    FileConfig     `yaml:"files"`
	Database DatabaseConfig `yaml:"database"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	LogLevel string         `yaml:"log_level"`

	// Source is the YAML file that was read, empty when only defaults and env apply
	Source string `yaml:"-"`
}

// PathConfig holds file system locations
type PathConfig struct {
	Data string `yaml:"data"`
}

// FileConfig names the input tables relative to Paths.Data
type FileConfig struct {
	Events      string `yaml:"events"`
	Profiles    string `yaml:"profiles"`
	Assignments string `yaml:"assignments"`
	Separator   string `yaml:"separator"`
}

// DatabaseConfig selects Postgres as the event source when URL is set
type DatabaseConfig struct {
	URL         string `yaml:"url"`
	EventsTable string `yaml:"events_table"`
}

// AnalysisConfig holds the statistical and session-selection knobs
type AnalysisConfig struct {
	Alpha               float64 `yaml:"alpha"`
	LiftThreshold       float64 `yaml:"lift_threshold"`
	TenureThresholdDays int     `yaml:"tenure_threshold_days"`
	SessionRule         string  `yaml:"session_rule"`
	SampleSize          int     `yaml:"sample_size"`
	Seed                int64   `yaml:"seed"`
	StrictVariation     bool    `yaml:"strict_variation"`
	CompareRules        bool    `yaml:"compare_rules"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Files:    FileConfig{Separator: ","},
		Database: DatabaseConfig{EventsTable: DefaultEventsTable},
		Analysis: AnalysisConfig{
			Alpha:               DefaultAlpha,
			LiftThreshold:       DefaultLiftThreshold,
			TenureThresholdDays: DefaultTenureThresholdDays,
			SampleSize:          DefaultSampleSize,
			Seed:                DefaultSeed,
			StrictVariation:     true,
		},
		Output:   OutputConfig{Format: DefaultOutputFormat},
		LogLevel: DefaultLogLevel,
	}
}

// Load reads defaults, then the YAML file, then environment variables, and validates.
// An empty path searches SearchPaths; a named path that does not exist is an error.
func Load(path string) (*Config, error) {
	config := Default()

	source, err := resolveFile(path)
	if err != nil {
		return nil, err
	}
	if source != "" {
		if err := loadFile(source, config); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", source)
		}
		config.Source = source
	}

	applyEnv(config)

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func resolveFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", errors.Wrap(errors.ConfigInvalid("config file not readable"), err.Error())
		}
		return path, nil
	}
	for _, candidate := range SearchPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func loadFile(path string, config *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, config); err != nil {
		return errors.Wrap(errors.ConfigInvalid("invalid YAML"), err.Error())
	}
	return nil
}

func applyEnv(config *Config) {
	config.Paths.Data = getEnvOrDefault("DATA_DIR", config.Paths.Data)
	config.Files.Events = getEnvOrDefault("EVENTS_FILE", config.Files.Events)
	config.Files.Profiles = getEnvOrDefault("PROFILES_FILE", config.Files.Profiles)
	config.Files.Assignments = getEnvOrDefault("ASSIGNMENTS_FILE", config.Files.Assignments)
	config.Files.Separator = getEnvOrDefault("CSV_SEPARATOR", config.Files.Separator)

	config.Database.URL = getEnvOrDefault("DATABASE_URL", config.Database.URL)
	config.Database.EventsTable = getEnvOrDefault("EVENTS_TABLE", config.Database.EventsTable)

	a := &config.Analysis
	a.Alpha = getEnvFloatOrDefault("ALPHA", a.Alpha)
	a.LiftThreshold = getEnvFloatOrDefault("LIFT_THRESHOLD", a.LiftThreshold)
	a.TenureThresholdDays = getEnvIntOrDefault("TENURE_THRESHOLD_DAYS", a.TenureThresholdDays)
	a.SessionRule = getEnvOrDefault("SESSION_RULE", a.SessionRule)
	a.SampleSize = getEnvIntOrDefault("SAMPLE_SIZE", a.SampleSize)
	a.Seed = int64(getEnvIntOrDefault("SEED", int(a.Seed)))
	a.StrictVariation = getEnvBoolOrDefault("STRICT_VARIATION", a.StrictVariation)
	a.CompareRules = getEnvBoolOrDefault("COMPARE_RULES", a.CompareRules)

	config.Output.Format = getEnvOrDefault("OUTPUT_FORMAT", config.Output.Format)
	config.Output.Path = getEnvOrDefault("OUTPUT_PATH", config.Output.Path)
	config.LogLevel = getEnvOrDefault("LOG_LEVEL", config.LogLevel)
}

var (
	sessionRules  = []string{"", "first", "longest", "deepest"}
	outputFormats = []string{"text", "json", "markdown", "html"}
)

// Validate checks ranges and enumerations
func Validate(config *Config) error {
	a := config.Analysis
	if a.Alpha <= 0 || a.Alpha >= 1 {
		return errors.ConfigInvalid("ALPHA must be in (0,1)")
	}
	if a.LiftThreshold <= -1 || a.LiftThreshold >= 1 {
		return errors.ConfigInvalid("LIFT_THRESHOLD must be in (-1,1)")
	}
	if a.TenureThresholdDays < 0 {
		return errors.ConfigInvalid("TENURE_THRESHOLD_DAYS must not be negative")
	}
	if a.SampleSize <= 0 {
		return errors.ConfigInvalid("SAMPLE_SIZE must be positive")
	}
	if !contains(sessionRules, strings.ToLower(a.SessionRule)) {
		return errors.ConfigInvalid("SESSION_RULE must be first, longest or deepest")
	}
	if !contains(outputFormats, strings.ToLower(config.Output.Format)) {
		return errors.ConfigInvalid("OUTPUT_FORMAT must be text, json, markdown or html")
	}
	if config.Files.Separator == "" {
		return errors.ConfigInvalid("CSV_SEPARATOR must not be empty")
	}
	return nil
}

// EventsPath resolves the events file against the data directory
func (c *Config) EventsPath() string { return c.resolve(c.Files.Events) }

// ProfilesPath resolves the profiles file against the data directory
func (c *Config) ProfilesPath() string { return c.resolve(c.Files.Profiles) }

// AssignmentsPath resolves the assignments file against the data directory
func (c *Config) AssignmentsPath() string { return c.resolve(c.Files.Assignments) }

func (c *Config) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) || c.Paths.Data == "" {
		return name
	}
	return filepath.Join(c.Paths.Data, name)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
