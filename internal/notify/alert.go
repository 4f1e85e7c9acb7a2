package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/canopy/internal/environment"
	"github.com/saaga0h/canopy/internal/evidence"
)

// Alert is a rendered notification
type Alert struct {
	ID          string            `json:"id"`
	Zone        string            `json:"zone"`
	ZoneName    string            `json:"zone_name"`
	Signal      evidence.Signal   `json:"signal"`
	State       bool              `json:"state"`
	Probability float64           `json:"probability"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Original    string            `json:"original_message,omitempty"`
	Target      string            `json:"target,omitempty"`
	Personality string            `json:"personality,omitempty"`
	Readings    map[string]string `json:"readings,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewAlert assigns an id and timestamp
func NewAlert(zone, zoneName string, sig evidence.Signal, state bool, p float64, title, message string, now time.Time) Alert {
	return Alert{
		ID:          uuid.New().String(),
		Zone:        zone,
		ZoneName:    zoneName,
		Signal:      sig,
		State:       state,
		Probability: p,
		Title:       title,
		Message:     message,
		CreatedAt:   now,
	}
}

// Readings extracts the available measurements from st for alert context
func Readings(st environment.State) map[string]string {
	out := make(map[string]string)
	add := func(name string, r environment.Reading) {
		if r.OK {
			out[name] = r.String()
		}
	}
	add("temperature", st.Temperature)
	add("humidity", st.Humidity)
	add("vpd", st.VPD)
	add("co2", st.CO2)
	if st.Light != environment.LightUnknown {
		out["light"] = st.Light.String()
	}
	return out
}
