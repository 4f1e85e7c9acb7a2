package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultDispatchTimeout = 30 * time.Second

// Dispatcher delivers alerts in the background. Delivery failures are
// logged and never reach the caller.
type Dispatcher struct {
	rewriter *Rewriter
	sinks    []Sink
	timeout  time.Duration
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. rewriter may be nil to send messages
// as composed.
func NewDispatcher(rewriter *Rewriter, sinks []Sink, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		rewriter: rewriter,
		sinks:    sinks,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch starts delivery of a and returns immediately
func (d *Dispatcher) Dispatch(a Alert) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Alert dispatch panicked", "alert_id", a.ID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		d.deliver(ctx, a)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, a Alert) {
	if d.rewriter != nil {
		rewritten := d.rewriter.Rewrite(ctx, a)
		if rewritten != a.Message {
			a.Original = a.Message
			a.Message = rewritten
		}
	}

	delivered := 0
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, a); err != nil {
			d.logger.Warn("Failed to deliver alert",
				"sink", sink.Name(),
				"alert_id", a.ID,
				"zone", a.Zone,
				"signal", a.Signal,
				"error", err)
			continue
		}
		delivered++
	}

	d.logger.Info("Alert dispatched",
		"alert_id", a.ID,
		"zone", a.Zone,
		"signal", a.Signal,
		"title", a.Title,
		"message", a.Message,
		"target", a.Target,
		"sinks_ok", delivered,
		"sinks_total", len(d.sinks))
}

// Wait blocks until all started deliveries have finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
