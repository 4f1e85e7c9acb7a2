package evidence

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/saaga0h/canopy/internal/environment"
	"gopkg.in/yaml.v3"
)

// ConfigErrorType categorizes tuning failures
type ConfigErrorType string

const (
	ErrParsing    ConfigErrorType = "PARSING_FAILED"
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	ErrUnknownKey ConfigErrorType = "UNKNOWN_KEY"
)

// ConfigError reports an invalid tuning value. Agents treat it as fatal at startup.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SignalTuning holds the prior and decision threshold of a Bayesian signal
type SignalTuning struct {
	Prior     float64 `yaml:"prior" json:"prior" validate:"gt=0,lt=1"`
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gte=0,lte=1"`
}

// TrendTuning configures fallback trend analysis for one quantity
type TrendTuning struct {
	Window      time.Duration `yaml:"window" json:"window" validate:"gt=0"`
	Threshold   float64       `yaml:"threshold" json:"threshold"`
	Sensitivity float64       `yaml:"sensitivity" json:"sensitivity" validate:"gt=0,lte=1"`
}

// LightTuning configures the photoperiod schedule check. The per-stage
// flower hours are optional; zero falls back to FlowerDayHours.
type LightTuning struct {
	VegDayHours         float64       `yaml:"veg_day_hours" json:"veg_day_hours" validate:"gt=0,lt=24"`
	FlowerDayHours      float64       `yaml:"flower_day_hours" json:"flower_day_hours" validate:"gt=0,lt=24"`
	FlowerEarlyDayHours float64       `yaml:"flower_early_day_hours" json:"flower_early_day_hours,omitempty" validate:"omitempty,gt=0,lt=24"`
	FlowerMidDayHours   float64       `yaml:"flower_mid_day_hours" json:"flower_mid_day_hours,omitempty" validate:"omitempty,gt=0,lt=24"`
	FlowerLateDayHours  float64       `yaml:"flower_late_day_hours" json:"flower_late_day_hours,omitempty" validate:"omitempty,gt=0,lt=24"`
	Tolerance           time.Duration `yaml:"tolerance" json:"tolerance" validate:"gte=0"`
}

// Tuning is the full set of inference parameters
type Tuning struct {
	Signals      map[Signal]SignalTuning              `validate:"dive"`
	Observations map[string]Observation               `validate:"dive"`
	Trends       map[environment.Quantity]TrendTuning `validate:"dive"`
	Light        LightTuning
}

// DefaultTuning returns the built-in parameters
func DefaultTuning() *Tuning {
	obs := make(map[string]Observation, len(defaultObservations))
	for k, v := range defaultObservations {
		obs[k] = v
	}

	return &Tuning{
		Signals: map[Signal]SignalTuning{
			Stress:   {Prior: 0.15, Threshold: 0.70},
			MoldRisk: {Prior: 0.10, Threshold: 0.75},
			Optimal:  {Prior: 0.40, Threshold: 0.80},
			Drying:   {Prior: 0.50, Threshold: 0.80},
			Curing:   {Prior: 0.50, Threshold: 0.80},
		},
		Observations: obs,
		Trends: map[environment.Quantity]TrendTuning{
			environment.Temperature: {Window: 30 * time.Minute, Threshold: 26.0, Sensitivity: 0.5},
			environment.Humidity:    {Window: 30 * time.Minute, Threshold: 70.0, Sensitivity: 0.5},
			environment.VPD:         {Window: 30 * time.Minute, Threshold: 1.2, Sensitivity: 0.5},
		},
		Light: LightTuning{
			VegDayHours:    18,
			FlowerDayHours: 12,
			Tolerance:      15 * time.Minute,
		},
	}
}

// Obs returns the named observation
func (t *Tuning) Obs(name string) Observation {
	if o, ok := t.Observations[name]; ok {
		return o
	}
	return defaultObservations[name]
}

// Signal returns the prior and threshold for s
func (t *Tuning) Signal(s Signal) SignalTuning {
	return t.Signals[s]
}

// Trend returns the fallback trend parameters for q
func (t *Tuning) Trend(q environment.Quantity) TrendTuning {
	return t.Trends[q]
}

// tuningFile is the YAML overlay; absent fields keep their defaults
type tuningFile struct {
	Signals map[Signal]struct {
		Prior     *float64 `yaml:"prior"`
		Threshold *float64 `yaml:"threshold"`
	} `yaml:"signals"`
	Observations map[string]Observation `yaml:"observations"`
	Trends       map[environment.Quantity]struct {
		Window      *time.Duration `yaml:"window"`
		Threshold   *float64       `yaml:"threshold"`
		Sensitivity *float64       `yaml:"sensitivity"`
	} `yaml:"trends"`
	Light struct {
		VegDayHours         *float64       `yaml:"veg_day_hours"`
		FlowerDayHours      *float64       `yaml:"flower_day_hours"`
		FlowerEarlyDayHours *float64       `yaml:"flower_early_day_hours"`
		FlowerMidDayHours   *float64       `yaml:"flower_mid_day_hours"`
		FlowerLateDayHours  *float64       `yaml:"flower_late_day_hours"`
		Tolerance           *time.Duration `yaml:"tolerance"`
	} `yaml:"light"`
}

// LoadTuning reads overrides from a YAML file on top of DefaultTuning.
// An empty path returns the defaults.
func LoadTuning(path string) (*Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to read tuning file " + path, Err: err}
	}
	if err := t.Apply(data); err != nil {
		return nil, err
	}
	return t, nil
}

// Apply merges YAML overrides into t and validates the result. Fields the
// overlay does not know are rejected.
func (t *Tuning) Apply(data []byte) error {
	f, err := decodeTuningFile(data)
	if err != nil {
		return err
	}

	for sig, o := range f.Signals {
		cur, ok := t.Signals[sig]
		if !ok {
			return &ConfigError{Type: ErrUnknownKey, Message: fmt.Sprintf("unknown signal %q", sig)}
		}
		if o.Prior != nil {
			cur.Prior = *o.Prior
		}
		if o.Threshold != nil {
			cur.Threshold = *o.Threshold
		}
		t.Signals[sig] = cur
	}

	for name, o := range f.Observations {
		if _, ok := defaultObservations[name]; !ok {
			return &ConfigError{Type: ErrUnknownKey, Message: fmt.Sprintf("unknown observation %q", name)}
		}
		t.Observations[name] = o
	}

	for q, o := range f.Trends {
		cur, ok := t.Trends[q]
		if !ok {
			return &ConfigError{Type: ErrUnknownKey, Message: fmt.Sprintf("unknown trend quantity %q", q)}
		}
		if o.Window != nil {
			cur.Window = *o.Window
		}
		if o.Threshold != nil {
			cur.Threshold = *o.Threshold
		}
		if o.Sensitivity != nil {
			cur.Sensitivity = *o.Sensitivity
		}
		t.Trends[q] = cur
	}

	if f.Light.VegDayHours != nil {
		t.Light.VegDayHours = *f.Light.VegDayHours
	}
	if f.Light.FlowerDayHours != nil {
		t.Light.FlowerDayHours = *f.Light.FlowerDayHours
	}
	if f.Light.FlowerEarlyDayHours != nil {
		t.Light.FlowerEarlyDayHours = *f.Light.FlowerEarlyDayHours
	}
	if f.Light.FlowerMidDayHours != nil {
		t.Light.FlowerMidDayHours = *f.Light.FlowerMidDayHours
	}
	if f.Light.FlowerLateDayHours != nil {
		t.Light.FlowerLateDayHours = *f.Light.FlowerLateDayHours
	}
	if f.Light.Tolerance != nil {
		t.Light.Tolerance = *f.Light.Tolerance
	}

	return t.Validate()
}

func decodeTuningFile(data []byte) (*tuningFile, error) {
	var f tuningFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(&f)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return &f, nil
	case strings.Contains(err.Error(), "not found in type"):
		return nil, &ConfigError{Type: ErrUnknownKey, Message: "unknown key in tuning YAML", Err: err}
	default:
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to parse tuning YAML", Err: err}
	}
}

// Validate checks every parameter range
func (t *Tuning) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s=%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			sort.Strings(fields)
			return &ConfigError{Type: ErrValidation, Message: "invalid tuning: " + strings.Join(fields, ", "), Err: err}
		}
		return &ConfigError{Type: ErrValidation, Message: "invalid tuning", Err: err}
	}

	for _, sig := range Signals {
		if !sig.Bayesian() {
			continue
		}
		if _, ok := t.Signals[sig]; !ok {
			return &ConfigError{Type: ErrValidation, Message: fmt.Sprintf("missing prior for signal %q", sig)}
		}
	}
	return nil
}
