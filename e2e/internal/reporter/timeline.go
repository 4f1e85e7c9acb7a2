package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/canopy/e2e/internal/scenario"
)

const rule = "============================================================\n"

// TimelineEvent is one line of the run timeline
type TimelineEvent struct {
	Elapsed     time.Duration
	Layer       string
	Description string
	IsCheck     bool
	Success     bool // only meaningful for checks
}

// GenerateTimeline renders the run as plain text
func GenerateTimeline(result *scenario.TestResult, events []TimelineEvent) string {
	var sb strings.Builder

	sb.WriteString(rule)
	fmt.Fprintf(&sb, "Scenario: %s\n", result.Scenario.Name)
	fmt.Fprintf(&sb, "Zone:     %s\n", result.Scenario.Setup.Zone)
	fmt.Fprintf(&sb, "Duration: %s\n", formatDuration(result.EndTime.Sub(result.StartTime)))
	sb.WriteString(rule)

	for _, e := range events {
		marker := "->"
		if e.IsCheck {
			marker = "FAIL"
			if e.Success {
				marker = "ok"
			}
		}
		fmt.Fprintf(&sb, "[%8s] %-4s %-10s %s\n", formatDuration(e.Elapsed), marker, e.Layer, e.Description)
	}

	// Failures grouped by layer, layers in name order
	byLayer := make(map[string][]scenario.ExpectationResult)
	var layers []string
	for _, r := range result.Expectations {
		if r.Passed {
			continue
		}
		if _, seen := byLayer[r.Layer]; !seen {
			layers = append(layers, r.Layer)
		}
		byLayer[r.Layer] = append(byLayer[r.Layer], r)
	}
	sort.Strings(layers)

	if len(layers) > 0 {
		sb.WriteString("\nFailures:\n")
		for _, layer := range layers {
			fmt.Fprintf(&sb, "  %s\n", layer)
			for _, r := range byLayer[layer] {
				fmt.Fprintf(&sb, "    %s: %s\n", r.Expectation.Target(), r.Reason)
			}
		}
	}

	status := "PASSED"
	if result.FailedCount > 0 {
		status = "FAILED"
	}
	sb.WriteString("\n" + rule)
	fmt.Fprintf(&sb, "%s  passed=%d failed=%d\n", status, result.PassedCount, result.FailedCount)
	sb.WriteString(rule)

	return sb.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d / time.Minute)
	return fmt.Sprintf("%dm%.1fs", m, (d - time.Duration(m)*time.Minute).Seconds())
}
