package checker

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// comparison operators, longest first so ">=" is not read as ">"
var comparisons = []struct {
	op   string
	test func(a, b float64) bool
}{
	{">=", func(a, b float64) bool { return a >= b }},
	{"<=", func(a, b float64) bool { return a <= b }},
	{">", func(a, b float64) bool { return a > b }},
	{"<", func(a, b float64) bool { return a < b }},
}

// Match reports whether actual satisfies expected, with a reason on mismatch.
//
// Expected strings of the form ~pattern~ are regular expressions and strings
// starting with >, <, >= or <= compare numerically. Maps match when every
// expected key matches; extra actual keys are ignored. Numbers compare by
// value regardless of their Go type, and numeric strings such as Redis
// fields compare as numbers.
func Match(actual, expected interface{}) (bool, string) {
	if expected == nil {
		if actual == nil {
			return true, ""
		}
		return false, fmt.Sprintf("expected null, got %v", actual)
	}
	if actual == nil {
		return false, fmt.Sprintf("expected %v, got null", expected)
	}

	switch exp := expected.(type) {
	case string:
		return matchString(actual, exp)
	case bool:
		got, ok := actual.(bool)
		if !ok {
			return false, fmt.Sprintf("expected bool, got %T", actual)
		}
		if got != exp {
			return false, fmt.Sprintf("expected %v, got %v", exp, got)
		}
		return true, ""
	case map[string]interface{}:
		return matchMap(actual, exp)
	case []interface{}:
		return matchList(actual, exp)
	}

	if want, ok := toFloat64(expected); ok {
		got, ok := toFloat64(actual)
		if !ok {
			return false, fmt.Sprintf("expected number %v, got %T", expected, actual)
		}
		if got != want {
			return false, fmt.Sprintf("expected %v, got %v", want, got)
		}
		return true, ""
	}

	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func matchString(actual interface{}, expected string) (bool, string) {
	if len(expected) > 1 && strings.HasPrefix(expected, "~") && strings.HasSuffix(expected, "~") {
		return matchRegex(actual, expected[1:len(expected)-1])
	}

	for _, c := range comparisons {
		if strings.HasPrefix(expected, c.op) {
			return matchComparison(actual, c.op, strings.TrimPrefix(expected, c.op), c.test)
		}
	}

	got, ok := actual.(string)
	if !ok {
		return false, fmt.Sprintf("expected string %q, got %T", expected, actual)
	}
	if got != expected {
		return false, fmt.Sprintf("expected %q, got %q", expected, got)
	}
	return true, ""
}

func matchRegex(actual interface{}, pattern string) (bool, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid pattern %q: %v", pattern, err)
	}

	s := fmt.Sprint(actual)
	if !re.MatchString(s) {
		return false, fmt.Sprintf("%q does not match ~%s~", s, pattern)
	}
	return true, ""
}

func matchComparison(actual interface{}, op, operand string, test func(a, b float64) bool) (bool, string) {
	want, err := strconv.ParseFloat(strings.TrimSpace(operand), 64)
	if err != nil {
		return false, fmt.Sprintf("invalid comparison operand %q", operand)
	}
	got, ok := toFloat64(actual)
	if !ok {
		return false, fmt.Sprintf("cannot compare non-numeric %v", actual)
	}
	if !test(got, want) {
		return false, fmt.Sprintf("expected %s %v, got %v", op, want, got)
	}
	return true, ""
}

func matchMap(actual interface{}, expected map[string]interface{}) (bool, string) {
	got, ok := actual.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf("expected object, got %T", actual)
	}

	for key, want := range expected {
		v, exists := got[key]
		if !exists {
			return false, fmt.Sprintf("missing key %q", key)
		}
		if ok, reason := Match(v, want); !ok {
			return false, fmt.Sprintf("key %q: %s", key, reason)
		}
	}
	return true, ""
}

func matchList(actual interface{}, expected []interface{}) (bool, string) {
	got, ok := actual.([]interface{})
	if !ok {
		return false, fmt.Sprintf("expected list, got %T", actual)
	}
	if len(got) != len(expected) {
		return false, fmt.Sprintf("expected %d elements, got %d", len(expected), len(got))
	}

	for i := range expected {
		if ok, reason := Match(got[i], expected[i]); !ok {
			return false, fmt.Sprintf("element %d: %s", i, reason)
		}
	}
	return true, ""
}

// toFloat64 accepts any Go number and numeric strings
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
