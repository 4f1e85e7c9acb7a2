package trend

import (
	"context"
	"log/slog"
	"time"
)

// Analyzer runs trend analyses against a history store
type Analyzer struct {
	store   HistoryStore
	epsilon float64
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewAnalyzer creates an analyzer. Each history query is bounded by timeout.
func NewAnalyzer(store HistoryStore, timeout time.Duration, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		store:   store,
		epsilon: DefaultEpsilon,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// Analyze classifies the history of entityID over the trailing window.
// It never fails: query errors, cancellation and timeouts yield Unknown.
func (a *Analyzer) Analyze(ctx context.Context, entityID string, window time.Duration, threshold float64) Result {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	end := a.now()
	samples, err := a.store.Samples(ctx, entityID, end.Add(-window), end)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		a.logger.Warn("Trend history query failed", "entity_id", entityID, "window", window, "error", err)
		return Result{Trend: Unknown}
	}

	result := Classify(samples, threshold, a.epsilon)

	a.logger.Debug("Trend analyzed",
		"entity_id", entityID,
		"samples", len(samples),
		"trend", result.Trend,
		"crossed_threshold", result.CrossedThreshold)

	return result
}
