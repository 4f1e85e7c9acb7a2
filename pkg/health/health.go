package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/canopy/pkg/mqtt"
)

// Pinger is any dependency that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker provides health check functionality for agents
type Checker struct {
	mqtt    mqtt.Client
	pingers map[string]Pinger
	timeout time.Duration
	logger  *slog.Logger
}

// NewChecker creates a new health checker. Extra dependencies are added with Register.
func NewChecker(mqttClient mqtt.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:    mqttClient,
		pingers: make(map[string]Pinger),
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Register adds a named dependency to the detailed check
func (h *Checker) Register(name string, p Pinger) {
	h.pingers[name] = p
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// HandlerFunc returns a liveness handler. It answers 200 whenever the process
// is serving and does not touch dependencies, so it stays fast for the scheduler.
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc returns a handler that checks MQTT and every registered dependency
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := make(map[string]string, len(h.pingers)+1)

		if h.mqtt != nil && h.mqtt.IsConnected() {
			services["mqtt"] = "connected"
		} else {
			services["mqtt"] = "disconnected"
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		for name, p := range h.pingers {
			if err := p.Ping(ctx); err != nil {
				h.logger.Warn("Health dependency check failed", "service", name, "error", err)
				services[name] = "disconnected"
				continue
			}
			services[name] = "connected"
		}

		status := "healthy"
		statusCode := http.StatusOK
		for _, s := range services {
			if s != "connected" {
				status = "degraded"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}

		h.write(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		})
	}
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
