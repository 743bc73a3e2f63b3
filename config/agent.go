package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/evagent/core/agent"
	"github.com/kilianp07/evagent/simulator"
)

// ErrInvalidTimeOfDay is wrapped by ConfigError for malformed HH:MM values.
var ErrInvalidTimeOfDay = errors.New("expected a HH:MM time of day")

// ConfigError reports a configuration value that could not be used.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AgentConfig is the textual agent configuration.
type AgentConfig struct {
	AgentID         string `json:"agent_id" default:"EV" validate:"required"`
	DesiredParentID string `json:"desired_parent_id" default:"concentrator" validate:"required"`
	// BidUpdateRate is the bid cycle period in seconds.
	BidUpdateRate int    `json:"bid_update_rate" default:"5" validate:"gt=0"`
	EVModel       string `json:"ev_model" default:"LEAF" validate:"required,evmodel"`
	TimeHomeLower string `json:"time_home_lower" default:"16:00" validate:"hhmm"`
	TimeHomeUpper string `json:"time_home_upper" default:"19:00" validate:"hhmm"`
	ChargeByLower string `json:"charge_by_lower" default:"07:00" validate:"hhmm"`
	ChargeByUpper string `json:"charge_by_upper" default:"10:00" validate:"hhmm"`
}

// AgentSettings is the typed form of AgentConfig.
type AgentSettings struct {
	Agent   agent.Config
	Model   simulator.Model
	Windows simulator.Windows
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := parseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("evmodel", func(fl validator.FieldLevel) bool {
		_, err := simulator.ParseModel(fl.Field().String())
		return err == nil
	})
	return v
}

// SetDefaults fills zero fields from the default tags.
func (c *AgentConfig) SetDefaults() error {
	return defaults.Set(c)
}

// Validate checks every field and returns the first failure as a *ConfigError.
func (c AgentConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		cause := fmt.Errorf("failed %q validation", fe.Tag())
		switch fe.Tag() {
		case "hhmm":
			cause = ErrInvalidTimeOfDay
		case "evmodel":
			cause = simulator.ErrUnknownModel
		}
		return &ConfigError{Field: fe.Field(), Value: fmt.Sprint(fe.Value()), Err: cause}
	}
	return err
}

// Parse converts the textual configuration into typed settings.
func (c AgentConfig) Parse() (AgentSettings, error) {
	if err := c.Validate(); err != nil {
		return AgentSettings{}, err
	}
	model, err := simulator.ParseModel(c.EVModel)
	if err != nil {
		return AgentSettings{}, &ConfigError{Field: "ev_model", Value: c.EVModel, Err: err}
	}
	var w simulator.Windows
	for _, f := range []struct {
		name, value string
		dst         *time.Duration
	}{
		{"time_home_lower", c.TimeHomeLower, &w.HomeLower},
		{"time_home_upper", c.TimeHomeUpper, &w.HomeUpper},
		{"charge_by_lower", c.ChargeByLower, &w.ChargeByLower},
		{"charge_by_upper", c.ChargeByUpper, &w.ChargeByUpper},
	} {
		d, err := parseTimeOfDay(f.value)
		if err != nil {
			return AgentSettings{}, &ConfigError{Field: f.name, Value: f.value, Err: err}
		}
		*f.dst = d
	}
	if err := w.Validate(); err != nil {
		field, value := "time_home", c.TimeHomeLower+"-"+c.TimeHomeUpper
		if w.ChargeByLower > w.ChargeByUpper {
			field, value = "charge_by", c.ChargeByLower+"-"+c.ChargeByUpper
		}
		return AgentSettings{}, &ConfigError{Field: field, Value: value, Err: err}
	}
	return AgentSettings{
		Agent: agent.Config{
			AgentID:       c.AgentID,
			ParentID:      c.DesiredParentID,
			BidUpdateRate: time.Duration(c.BidUpdateRate) * time.Second,
		},
		Model:   model,
		Windows: w,
	}, nil
}

func parseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTimeOfDay, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
