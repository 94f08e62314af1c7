package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config holds backend selection and runtime options for the store and
// the CLI.
type Config struct {
	Backend   string `json:"backend" yaml:"backend" mapstructure:"backend" validate:"required,oneof=sqlite"`
	DataDir   string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `json:"log_format" yaml:"log_format" mapstructure:"log_format" validate:"omitempty,oneof=text json"`
	Strategy  string `json:"strategy" yaml:"strategy" mapstructure:"strategy" validate:"omitempty,oneof=reflect navigation"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Detach strategies selectable from configuration.
const (
	StrategyReflect    = "reflect"
	StrategyNavigation = "navigation"
)

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrLogLevelUnknown  = errors.New("unknown log level")
	ErrLogFormatUnknown = errors.New("unknown log format")
	ErrStrategyUnknown  = errors.New("unknown detach strategy")
)

var configValidate = validator.New()

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	return configFieldError(fieldErrs[0])
}

// GetStrategy returns the configured strategy, defaulting to reflect.
func (c Config) GetStrategy() string {
	if c.Strategy == "" {
		return StrategyReflect
	}
	return c.Strategy
}

func configFieldError(fe validator.FieldError) error {
	switch fe.Field() {
	case "Backend":
		if fe.Tag() == "required" {
			return ErrBackendEmpty
		}
		return fmt.Errorf("%w: %v", ErrBackendUnknown, fe.Value())
	case "LogLevel":
		return fmt.Errorf("%w: %v", ErrLogLevelUnknown, fe.Value())
	case "LogFormat":
		return fmt.Errorf("%w: %v", ErrLogFormatUnknown, fe.Value())
	case "Strategy":
		return fmt.Errorf("%w: %v", ErrStrategyUnknown, fe.Value())
	default:
		return fmt.Errorf("invalid config field %s (%s)", fe.Field(), fe.Tag())
	}
}
