package evidence

import (
	"github.com/saaga0h/canopy/internal/environment"
)

// optimalTemperature scores temperature against the ideal bands. Out of
// range reasons carry the out-of-range PFalse as their weight.
func optimalTemperature(st environment.State, t *Tuning, ev *Evidence) {
	if !st.Temperature.OK {
		return
	}
	temp := st.Temperature.Value
	out := t.Obs(ObsOutOfRange)

	switch {
	case st.Night():
		if between(temp, 20, 23) {
			ev.Observe(t.Obs(ObsPerfect))
		} else {
			ev.AddWeighted(out, out.PFalse, "Night temp out of range (%s)", st.Temperature)
		}
	case st.FlowerDays >= 42:
		if between(temp, 22, 26) {
			ev.Observe(t.Obs(ObsPerfect))
		} else {
			ev.AddWeighted(out, out.PFalse, "Temp out of range Late Flower (%s)", st.Temperature)
		}
	default:
		switch {
		case between(temp, 24, 26):
			ev.Observe(t.Obs(ObsPerfect))
		case between(temp, 22, 28):
			ev.Observe(t.Obs(ObsGood))
		case between(temp, 20, 29):
			ev.Observe(t.Obs(ObsAcceptable))
		default:
			ev.AddWeighted(out, out.PFalse, "Temp out of range (%s)", st.Temperature)
		}
	}
}

func optimalVPD(st environment.State, t *Tuning, ev *Evidence) {
	if !st.VPD.OK {
		return
	}
	for _, b := range vpdOptimalTable[st.Stage()].pick(st.Night()) {
		if b.contains(st.VPD.Value) {
			ev.Observe(b.Prob)
			return
		}
	}
	out := t.Obs(ObsVPDOutOfRange)
	ev.AddWeighted(out, out.PFalse, "VPD out of range (%s)", st.VPD)
}

// optimalCO2 uses a relaxed table in late flower. Late-flower values outside
// both of its bands are left unscored.
func optimalCO2(st environment.State, t *Tuning, ev *Evidence) {
	if !st.CO2.OK {
		return
	}
	co2 := st.CO2.Value

	if st.FlowerDays >= 42 {
		switch {
		case co2 >= 400 && co2 <= 800:
			ev.Observe(t.Obs(ObsCO2LateFlowerOK))
		case co2 > 800 && co2 <= 1200:
			ev.Observe(t.Obs(ObsCO2LateFlowerHigh))
		}
		return
	}

	switch {
	case between(co2, 1000, 1400):
		ev.Observe(t.Obs(ObsPerfect))
	case between(co2, 800, 1500):
		ev.Observe(t.Obs(ObsGood))
	case between(co2, 400, 600):
		ev.Observe(t.Obs(ObsAcceptable))
	default:
		out := t.Obs(ObsOutOfRange)
		label := "CO2 High"
		if co2 < 1000 {
			label = "CO2 Low"
		}
		ev.AddWeighted(out, out.PFalse, "%s (%s)", label, st.CO2)
	}
}

func optimalActuators(st environment.State, t *Tuning, ev *Evidence) {
	if st.Dehumidifier == environment.SwitchOn {
		ev.Add(t.Obs(ObsSystemFighting), "System Fighting (Dehumidifier ON)")
	}
}
