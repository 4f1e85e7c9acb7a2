package notify

import (
	"fmt"
	"unicode/utf8"

	"github.com/saaga0h/canopy/internal/evidence"
)

// DefaultMessageBudget bounds the composed message length
const DefaultMessageBudget = 65

// Compose appends the strongest reasons to base while the message stays
// under budget, counted in characters. It stops at the first reason that
// does not fit.
func Compose(base string, reasons []evidence.Reason, budget int) string {
	message := base
	length := utf8.RuneCountInString(base)
	for _, r := range evidence.Ranked(reasons) {
		n := utf8.RuneCountInString(r.Label)
		if length+n+2 >= budget {
			break
		}
		message += ", " + r.Label
		length += n + 2
	}
	return message
}

// Template returns the title and base message for a state change, or false
// when the change is not alert-worthy
func Template(sig evidence.Signal, on bool, zoneName string) (title, base string, ok bool) {
	switch {
	case sig == evidence.Stress && on:
		return fmt.Sprintf("Plants Under Stress in %s", zoneName), "High stress detected", true
	case sig == evidence.MoldRisk && on:
		return fmt.Sprintf("High Mold Risk in %s", zoneName), "High mold risk detected", true
	case sig == evidence.Optimal && !on:
		return fmt.Sprintf("Optimal Conditions Lost in %s", zoneName), "Optimal conditions lost", true
	}
	return "", "", false
}
