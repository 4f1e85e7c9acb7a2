package scenario

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateScenario checks field constraints and the rules tags cannot express
func ValidateScenario(s *Scenario) error {
	if err := validate.Struct(s); err != nil {
		return err
	}

	for layer, exps := range s.Expectations {
		for i, exp := range exps {
			if exp.Topic != "" && len(exp.Payload) == 0 && exp.Count == nil {
				return fmt.Errorf("layer %s, expectation %d: topic expectations need payload or count", layer, i)
			}
			if exp.Topic != "" && exp.RedisKey != "" {
				return fmt.Errorf("layer %s, expectation %d: topic and redis_key are exclusive", layer, i)
			}
		}
	}

	return nil
}

// Duration returns the offset of the last timeline entry
func (s *Scenario) Duration() time.Duration {
	var last time.Duration
	bump := func(d time.Duration) {
		if d > last {
			last = d
		}
	}
	for _, e := range s.Events {
		bump(e.At)
	}
	for _, w := range s.Wait {
		bump(w.At)
	}
	for _, exps := range s.Expectations {
		for _, exp := range exps {
			bump(exp.At)
		}
	}
	return last
}
