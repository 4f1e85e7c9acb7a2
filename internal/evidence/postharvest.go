package evidence

import (
	"github.com/saaga0h/canopy/internal/environment"
)

// postHarvest scores drying or curing conditions against their target ranges
func postHarvest(sig Signal, st environment.State, t *Tuning, ev *Evidence) {
	ranges := postHarvestRanges[sig]
	in := t.Obs(ObsPostHarvestInRange)
	out := t.Obs(ObsPostHarvestOutOfRange)

	if st.Temperature.OK {
		if ranges.Temperature.contains(st.Temperature.Value) {
			ev.Observe(in)
		} else {
			ev.AddWeighted(out, out.PFalse, "Temp out of range (%s)", st.Temperature)
		}
	}

	if st.Humidity.OK {
		if ranges.Humidity.contains(st.Humidity.Value) {
			ev.Observe(in)
		} else {
			ev.AddWeighted(out, out.PFalse, "Humidity out of range (%s)", st.Humidity)
		}
	}
}
