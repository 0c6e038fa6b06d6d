// Package config provides unified configuration loading for armbench.
// It supports loading from YAML files and environment variables, and turns
// the result into a validated simulation configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nvandessel/armbench/internal/bandit"
	"github.com/nvandessel/armbench/internal/constants"
	"github.com/nvandessel/armbench/internal/logging"
	"github.com/nvandessel/armbench/internal/simulation"
	"github.com/nvandessel/armbench/internal/strategy"
	"gopkg.in/yaml.v3"
)

// ArmbenchConfig contains all armbench configuration settings.
type ArmbenchConfig struct {
	// ArmCount is the number of arms. Zero derives it from Probabilities;
	// any other value must match len(Probabilities).
	ArmCount int `json:"arm_count" yaml:"arm_count" validate:"gte=0"`

	// Probabilities are the hidden true win probabilities, one per arm.
	Probabilities []float64 `json:"probabilities" yaml:"probabilities" validate:"required,min=1,dive,gte=0,lte=1"`

	// Rounds is the exact number of trials to run.
	Rounds int `json:"rounds" yaml:"rounds" validate:"gt=0"`

	// Seed fixes the random stream; 0 draws a fresh one.
	Seed uint64 `json:"seed" yaml:"seed"`

	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Output   OutputConfig   `json:"output" yaml:"output"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// StrategyConfig names the strategy and carries its parameters.
type StrategyConfig struct {
	// Name is a strategy name or alias (see strategy.Names).
	Name string `json:"name" yaml:"name" validate:"required"`

	// Epsilon is the exploration rate for epsilon-greedy, or the initial
	// rate for epsilon-decay.
	Epsilon *float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty" validate:"omitempty,gte=0,lte=1"`

	// Alpha is the decay constant for epsilon-decay.
	Alpha *float64 `json:"alpha,omitempty" yaml:"alpha,omitempty" validate:"omitempty,gte=0"`
}

// OutputConfig configures where the record stream goes.
type OutputConfig struct {
	// Format is one of csv, jsonl, sqlite, arrow.
	Format string `json:"format" yaml:"format" validate:"oneof=csv jsonl sqlite arrow"`

	// Path is the output file. Empty writes csv/jsonl to stdout; sqlite and
	// arrow require a path.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Summary prints the end-of-run table.
	Summary bool `json:"summary" yaml:"summary"`
}

// LoggingConfig configures armbench's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables per-round decision logging to <dir>/decisions.jsonl.
	// "trace" additionally logs every round to stderr.
	Level string `json:"level" yaml:"level"`

	// Dir is where decisions.jsonl is written. Defaults to ./.armbench.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// MetricsConfig configures Prometheus metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the Prometheus text exposition of the
	// run's metrics after it finishes.
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// Default returns an ArmbenchConfig with sensible defaults. Probabilities
// and the strategy have no default and must be supplied.
func Default() *ArmbenchConfig {
	return &ArmbenchConfig{
		Rounds: constants.DefaultRounds,
		Output: OutputConfig{
			Format:  constants.FormatCSV,
			Summary: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   constants.DirName,
		},
	}
}

// DefaultPath returns ~/.armbench/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.DirName, constants.ConfigFileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.armbench/config.yaml -> environment variables
func Load() (*ArmbenchConfig, error) {
	path := ""
	if p, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(p); statErr == nil {
			path = p
		}
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from path (skipped when empty) and then
// applies environment variable overrides.
func LoadFrom(path string) (*ArmbenchConfig, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file. Unknown keys
// and values of the wrong type are configuration errors.
func LoadFromFile(path string) (*ArmbenchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data on top of the defaults.
func Parse(data []byte) (*ArmbenchConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &bandit.ConfigError{Reason: fmt.Sprintf("parsing config: %v", err)}
	}
	return cfg, nil
}

// Validate checks that the configuration is valid and can start a run. It
// returns a *bandit.ConfigError naming the first offending field.
func (c *ArmbenchConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return translate(err)
	}

	if c.ArmCount != 0 && c.ArmCount != len(c.Probabilities) {
		return bandit.NewConfigError("arm_count", "is %d but %d probabilities were given", c.ArmCount, len(c.Probabilities))
	}

	if _, err := c.Strategy.Parse(); err != nil {
		return err
	}

	switch c.Output.Format {
	case constants.FormatSQLite, constants.FormatArrow:
		if c.Output.Path == "" {
			return bandit.NewConfigError("output.path", "required for %s output", c.Output.Format)
		}
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return bandit.NewConfigError("logging.level", "invalid level %q (valid: info, debug, trace)", c.Logging.Level)
	}

	return nil
}

// Parse builds the configured strategy.
func (s StrategyConfig) Parse() (strategy.Strategy, error) {
	return strategy.Parse(s.Name, strategy.Params{Epsilon: s.Epsilon, Alpha: s.Alpha})
}

// Simulation validates the configuration and converts it into an engine
// configuration.
func (c *ArmbenchConfig) Simulation() (simulation.Config, error) {
	if err := c.Validate(); err != nil {
		return simulation.Config{}, err
	}
	s, err := c.Strategy.Parse()
	if err != nil {
		return simulation.Config{}, err
	}
	return simulation.Config{
		Probabilities: c.Probabilities,
		Rounds:        c.Rounds,
		Strategy:      s,
		Seed:          c.Seed,
	}, nil
}

// ParseProbabilities parses a comma- or space-separated list of
// probabilities. Range checking is left to Validate.
func ParseProbabilities(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	probs := make([]float64, 0, len(fields))
	for i, f := range fields {
		p, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, bandit.NewConfigError(fmt.Sprintf("probabilities[%d]", i), "%q is not a number", f)
		}
		probs = append(probs, p)
	}
	return probs, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *ArmbenchConfig) error {
	if v := os.Getenv("ARMBENCH_PROBABILITIES"); v != "" {
		probs, err := ParseProbabilities(v)
		if err != nil {
			return err
		}
		config.Probabilities = probs
	}

	if v := os.Getenv("ARMBENCH_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("ARMBENCH_ROUNDS", err)
		}
		config.Rounds = n
	}

	if v := os.Getenv("ARMBENCH_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return envError("ARMBENCH_SEED", err)
		}
		config.Seed = n
	}

	if v := os.Getenv("ARMBENCH_STRATEGY"); v != "" {
		config.Strategy.Name = v
	}

	if v := os.Getenv("ARMBENCH_EPSILON"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("ARMBENCH_EPSILON", err)
		}
		config.Strategy.Epsilon = &f
	}

	if v := os.Getenv("ARMBENCH_ALPHA"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("ARMBENCH_ALPHA", err)
		}
		config.Strategy.Alpha = &f
	}

	if v := os.Getenv("ARMBENCH_OUTPUT_FORMAT"); v != "" {
		config.Output.Format = strings.ToLower(v)
	}

	if v := os.Getenv("ARMBENCH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	return nil
}

func envError(name string, err error) error {
	return &bandit.ConfigError{Field: name, Reason: err.Error()}
}

// validate is shared; validator.Validate caches struct metadata and is safe
// for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// translate converts validator errors into a *bandit.ConfigError for the
// first failing field.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &bandit.ConfigError{Reason: err.Error()}
	}

	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return bandit.NewConfigError(field, "is required")
	case "min":
		return bandit.NewConfigError(field, "needs at least %s entries", fe.Param())
	case "gt":
		return bandit.NewConfigError(field, "must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte", "lte":
		if strings.HasPrefix(field, "probabilities[") || strings.HasSuffix(field, "epsilon") {
			return bandit.NewConfigError(field, "must be within [0,1], got %v", deref(fe.Value()))
		}
		return bandit.NewConfigError(field, "must be %s %s, got %v", fe.Tag(), fe.Param(), deref(fe.Value()))
	case "oneof":
		return bandit.NewConfigError(field, "must be one of [%s], got %q", fe.Param(), fe.Value())
	default:
		return bandit.NewConfigError(field, "failed %q validation", fe.Tag())
	}
}

// fieldPath strips the root struct name from a validator namespace:
// "ArmbenchConfig.strategy.epsilon" becomes "strategy.epsilon".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}
