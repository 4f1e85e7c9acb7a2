package scenario

import "time"

// Scenario is a timed replay of entity readings against a running agent,
// followed by checks of what the agent published
type Scenario struct {
	Name         string                   `yaml:"name" json:"name" validate:"required"`
	Description  string                   `yaml:"description" json:"description" validate:"required"`
	Setup        SetupConfig              `yaml:"setup" json:"setup"`
	Events       []SensorEvent            `yaml:"events" json:"events" validate:"required,min=1,dive"`
	Wait         []WaitPeriod             `yaml:"wait" json:"wait,omitempty" validate:"dive"`
	Expectations map[string][]Expectation `yaml:"expectations" json:"expectations" validate:"required,min=1,dive,keys,required,endkeys,dive"`
}

// SetupConfig is published before the first event
type SetupConfig struct {
	Zone string `yaml:"zone" json:"zone" validate:"required"`

	// InitialState maps entity ids to the state published at start
	InitialState map[string]string `yaml:"initial_state" json:"initial_state,omitempty"`

	// Settle is how long to let the agent evaluate the initial state
	Settle time.Duration `yaml:"settle" json:"settle,omitempty" validate:"gte=0"`
}

// SensorEvent is a reading or registry change published at an offset
type SensorEvent struct {
	At          time.Duration          `yaml:"at" json:"at" validate:"gte=0"`
	Entity      string                 `yaml:"entity,omitempty" json:"entity,omitempty" validate:"required_without=Registry,excluded_with=Registry"`
	State       string                 `yaml:"state,omitempty" json:"state,omitempty" validate:"required_with=Entity"`
	Attributes  map[string]interface{} `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Registry    string                 `yaml:"registry,omitempty" json:"registry,omitempty"` // zone id whose record changed
	Description string                 `yaml:"description" json:"description" validate:"required"`
}

// Kind returns "registry" for registry change events and "sensor" otherwise
func (e SensorEvent) Kind() string {
	if e.Registry != "" {
		return "registry"
	}
	return "sensor"
}

// WaitPeriod is a labelled pause in the timeline
type WaitPeriod struct {
	At          time.Duration `yaml:"at" json:"at" validate:"gte=0"`
	Description string        `yaml:"description" json:"description" validate:"required"`
}

// Expectation is checked at its offset against captured MQTT traffic or
// Redis. Payload fields support ~regex~ and >, <, >=, <= matchers.
type Expectation struct {
	At      time.Duration          `yaml:"at" json:"at" validate:"gte=0"`
	Topic   string                 `yaml:"topic,omitempty" json:"topic,omitempty" validate:"required_without=RedisKey"`
	Payload map[string]interface{} `yaml:"payload,omitempty" json:"payload,omitempty"`

	// Count is the exact number of messages expected on Topic
	Count *int `yaml:"count,omitempty" json:"count,omitempty" validate:"omitempty,gte=0"`

	RedisKey   string `yaml:"redis_key,omitempty" json:"redis_key,omitempty"`
	RedisField string `yaml:"redis_field,omitempty" json:"redis_field,omitempty" validate:"required_with=RedisKey"`
	Expected   string `yaml:"expected,omitempty" json:"expected,omitempty" validate:"required_with=RedisKey"`
}

// Target describes what the expectation inspects
func (e Expectation) Target() string {
	if e.RedisKey != "" {
		return e.RedisKey + "#" + e.RedisField
	}
	return e.Topic
}

// TestResult is the outcome of one scenario run
type TestResult struct {
	Scenario     *Scenario           `json:"scenario"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	Passed       bool                `json:"passed"`
	PassedCount  int                 `json:"passed_count"`
	FailedCount  int                 `json:"failed_count"`
	Expectations []ExpectationResult `json:"expectations"`
}

// ExpectationResult is the outcome of one check
type ExpectationResult struct {
	Layer         string      `json:"layer"`
	Expectation   Expectation `json:"expectation"`
	Passed        bool        `json:"passed"`
	Reason        string      `json:"reason,omitempty"`
	ActualPayload interface{} `json:"actual_payload,omitempty"`
}
