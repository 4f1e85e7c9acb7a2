package checker

import (
	"fmt"
	"strings"

	"github.com/saaga0h/canopy/e2e/internal/observer"
	"github.com/saaga0h/canopy/e2e/internal/scenario"
)

// CheckExpectation validates an MQTT expectation against captured traffic.
// Payload checks use the most recent message on the topic.
func CheckExpectation(exp scenario.Expectation, messages []observer.CapturedMessage) (bool, string, interface{}) {
	var matching []observer.CapturedMessage
	for _, msg := range messages {
		if TopicMatches(exp.Topic, msg.Topic) {
			matching = append(matching, msg)
		}
	}

	if exp.Count != nil && len(matching) != *exp.Count {
		return false, fmt.Sprintf("expected %d messages on %q, got %d", *exp.Count, exp.Topic, len(matching)), len(matching)
	}
	if len(exp.Payload) == 0 {
		return true, "", len(matching)
	}
	if len(matching) == 0 {
		return false, fmt.Sprintf("no messages found for topic %q", exp.Topic), nil
	}

	latest := matching[len(matching)-1]
	if ok, reason := Match(latest.Payload, exp.Payload); !ok {
		return false, reason, latest.Payload
	}
	return true, "", latest.Payload
}

// TopicMatches reports whether topic matches an MQTT filter with + and #
// wildcards
func TopicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")

	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
