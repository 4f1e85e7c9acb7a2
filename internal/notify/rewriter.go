package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/saaga0h/canopy/pkg/llm"
)

// DefaultMaxLength bounds rewritten messages
const DefaultMaxLength = 250

// overflowAllowance is how far past the limit a rewrite may run and still be
// salvaged by truncation
const overflowAllowance = 50

// Personality names accepted for rewrites
const (
	PersonalityStandard    = "standard"
	PersonalityScientific  = "scientific"
	PersonalityChill       = "chill"
	PersonalityStrictCoach = "strict coach"
	PersonalityPirate      = "pirate"
)

// Rewriter restyles alert messages through a language model
type Rewriter struct {
	client    llm.Client
	model     string
	maxLength int
	logger    *slog.Logger
}

// NewRewriter creates a rewriter. maxLength <= 0 uses DefaultMaxLength.
func NewRewriter(client llm.Client, model string, maxLength int, logger *slog.Logger) *Rewriter {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Rewriter{
		client:    client,
		model:     model,
		maxLength: maxLength,
		logger:    logger,
	}
}

// Rewrite returns the restyled message, or the original one when the model
// fails, answers with nothing or runs far past the length limit
func (r *Rewriter) Rewrite(ctx context.Context, a Alert) string {
	personality := NormalizePersonality(a.Personality)
	req := llm.TextGenerateRequest(r.model, systemPrompt(personality), buildRewritePrompt(a, r.maxLength))

	resp, err := r.client.Generate(ctx, req)
	if err != nil {
		r.logger.Warn("Alert rewrite failed, using original message",
			"zone", a.Zone, "signal", a.Signal, "error", err)
		return a.Message
	}

	text := strings.TrimSpace(resp.Response)
	if text == "" {
		r.logger.Warn("Alert rewrite returned empty response, using original message",
			"zone", a.Zone, "signal", a.Signal)
		return a.Message
	}

	fitted, ok := fitLength(text, r.maxLength)
	if !ok {
		r.logger.Warn("Alert rewrite too long, using original message",
			"zone", a.Zone, "length", len([]rune(text)), "max_length", r.maxLength)
		return a.Message
	}

	r.logger.Debug("Alert rewritten", "zone", a.Zone, "personality", personality)
	return fitted
}

// fitLength truncates text at a word boundary when it overshoots max by
// less than the allowance
func fitLength(text string, max int) (string, bool) {
	runes := []rune(text)
	switch {
	case len(runes) <= max:
		return text, true
	case len(runes) < max+overflowAllowance:
		cut := string(runes[:max])
		if i := strings.LastIndex(cut, " "); i >= 0 {
			cut = cut[:i]
		}
		return cut + "...", true
	default:
		return "", false
	}
}

// NormalizePersonality maps free-form names onto the known personalities
func NormalizePersonality(name string) string {
	n := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	switch n {
	case PersonalityScientific, PersonalityStrictCoach, PersonalityPirate:
		return n
	case PersonalityChill, "chill stoner":
		return PersonalityChill
	default:
		return PersonalityStandard
	}
}

func systemPrompt(personality string) string {
	var style string
	switch personality {
	case PersonalityScientific:
		style = "Use precise technical terminology. Be analytical and data-driven. " +
			"Reference specific thresholds and values."
	case PersonalityChill:
		style = "Be laid-back and friendly, but still helpful. Use casual language. " +
			"Keep the vibe relaxed but don't skip important details."
	case PersonalityStrictCoach:
		style = "Be direct and authoritative. Emphasize urgency where appropriate. " +
			"Make it clear what needs to be done immediately."
	case PersonalityPirate:
		style = "Write like a pirate but maintain clarity. " +
			"Make it fun while conveying the essential information."
	default:
		style = "Be clear, professional, and helpful. Keep the message concise but informative."
	}

	return fmt.Sprintf("You are a %s grow room assistant. "+
		"Your job is to rewrite alerts in your own style while keeping them informative.\n\n%s",
		personality, style)
}

func buildRewritePrompt(a Alert, maxLength int) string {
	keys := make([]string, 0, len(a.Readings))
	for k := range a.Readings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	readings := make([]string, 0, len(keys))
	for _, k := range keys {
		readings = append(readings, fmt.Sprintf("%s: %s", k, a.Readings[k]))
	}

	return fmt.Sprintf(`Original alert: %s
Current sensor data: %s
Zone: %s

Rewrite this alert in 1-2 sentences. Keep it under %d characters. Include specific sensor values if they are relevant to the alert.`,
		a.Message, strings.Join(readings, ", "), a.ZoneName, maxLength)
}
