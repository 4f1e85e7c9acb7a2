package evidence

import (
	"github.com/saaga0h/canopy/internal/environment"
)

// moldConditions scores static mold risk factors. Most apply only from day
// 35 of flower, when buds are dense enough to hold moisture.
func moldConditions(st environment.State, t *Tuning, ev *Evidence) {
	if st.FlowerDays >= 35 {
		ev.Add(t.Obs(ObsMoldLateFlower), "Late Flower")

		if st.Temperature.OK && st.Temperature.Value > 16 && st.Temperature.Value < 23 {
			ev.Add(t.Obs(ObsMoldTempDangerZone), "Temp in danger zone (%s)", st.Temperature)
		}

		if st.Night() {
			ev.Add(t.Obs(ObsMoldLightsOff), "Lights Off")
			if st.Humidity.OK && st.Humidity.Value > 60 {
				ev.Add(t.Obs(ObsMoldHumidityNight), "Night Humidity High (%s)", st.Humidity)
			}
			if st.VPD.OK && st.VPD.Value < 0.8 {
				ev.Add(t.Obs(ObsMoldVPDLowNight), "Night VPD Low (%s)", st.VPD)
			}
		} else {
			if st.Humidity.OK && st.Humidity.Value > 60 {
				ev.Add(t.Obs(ObsMoldHumidityDay), "Day Humidity High (%s)", st.Humidity)
			}
			if st.VPD.OK && st.VPD.Value < 0.9 {
				ev.Add(t.Obs(ObsMoldVPDLowDay), "Day VPD Low (%s)", st.VPD)
			}
		}

		if st.CirculationFan == environment.SwitchOff {
			ev.Add(t.Obs(ObsMoldFanOff), "Circulation Fan Off")
		}
		if st.Exhaust.OK && st.Exhaust.Value < 7 {
			ev.Add(t.Obs(ObsMoldStagnantAir), "Stagnant Air (Exhaust %s/10)", st.Exhaust)
		}
		if st.Humidifier.OK && st.Humidifier.Value > 0 {
			ev.Add(t.Obs(ObsMoldHumidifierOn), "Humidifier ON in Late Flower")
		}
	}

	if st.Dehumidifier == environment.SwitchOn && st.Humidity.OK && st.Humidity.Value > 60 {
		ev.Add(t.Obs(ObsMoldDehumIneffective), "Dehumidifier Ineffective (ON + Hum %s%%)", st.Humidity)
	}
}
