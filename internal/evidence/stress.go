package evidence

import (
	"github.com/saaga0h/canopy/internal/environment"
)

// temperatureStress scores heat and cold. The night check is independent of
// the cascade; the cascade records at most one observation.
func temperatureStress(st environment.State, t *Tuning, ev *Evidence) {
	if !st.Temperature.OK {
		return
	}
	temp := st.Temperature.Value

	if st.Night() && temp > 24 {
		ev.Add(t.Obs(ObsNightTempHigh), "Night Temp High (%s)", st.Temperature)
	}

	switch {
	case temp > 32:
		ev.Add(t.Obs(ObsTempExtremeHeat), "Extreme Heat (%s)", st.Temperature)
	case temp > 30:
		ev.Add(t.Obs(ObsTempHighHeat), "High Heat (%s)", st.Temperature)
	case st.FlowerDays >= 42 && temp > 27:
		ev.Add(t.Obs(ObsTempWarmLateFlower), "Temp Warm (%s)", st.Temperature)
	case temp > 28:
		ev.Add(t.Obs(ObsTempWarm), "Temp Warm (%s)", st.Temperature)
	case temp < 15:
		ev.Add(t.Obs(ObsTempExtremeCold), "Extreme Cold (%s)", st.Temperature)
	case temp < 18:
		ev.Add(t.Obs(ObsTempCold), "Temp Cold (%s)", st.Temperature)
	}
}

func humidityStress(st environment.State, t *Tuning, ev *Evidence) {
	if !st.Humidity.OK {
		return
	}
	hum := st.Humidity.Value

	if hum < 35 {
		ev.Add(t.Obs(ObsHumidityTooDry), "Humidity Dry (%s)", st.Humidity)
	}

	switch st.Stage() {
	case environment.VegEarly:
		if hum > 80 {
			ev.Add(t.Obs(ObsHumidityHighVegEarly), "Humidity High (%s)", st.Humidity)
		}
	case environment.VegLate:
		if hum > 70 {
			ev.Add(t.Obs(ObsHumidityHighVegLate), "Humidity High (%s)", st.Humidity)
		}
	case environment.FlowerEarly:
		if hum > 60 || hum < 45 {
			ev.Add(t.Obs(ObsHumidityRangeFlowerEarly), "Humidity out of range (<45 or >60) (%s)", st.Humidity)
		}
	case environment.FlowerLate:
		if hum > 60 || hum < 40 {
			ev.Add(t.Obs(ObsHumidityRangeFlowerLate), "Humidity out of range (<40 or >60) (%s)", st.Humidity)
		}
	}
}

func vpdStress(st environment.State, t *Tuning, ev *Evidence) {
	if !st.VPD.OK {
		return
	}
	bands := vpdStressTable[st.Stage()].pick(st.Night())
	vpd := st.VPD.Value

	switch {
	case !bands.Stress.contains(vpd):
		ev.Add(t.Obs(bands.StressObs), "VPD out of range (%s)", st.VPD)
	case !bands.Mild.contains(vpd):
		ev.Add(t.Obs(bands.MildObs), "VPD out of range (%s)", st.VPD)
	}
}

func co2Stress(st environment.State, t *Tuning, ev *Evidence) {
	if !st.CO2.OK {
		return
	}
	switch {
	case st.CO2.Value < 400:
		ev.Add(t.Obs(ObsCO2Low), "CO2 Low (%s)", st.CO2)
	case st.CO2.Value > 1600:
		ev.Add(t.Obs(ObsCO2High), "CO2 High (%s)", st.CO2)
	}
}

// actuatorStress scores equipment working against the plants: a running
// dehumidifier in already dry air, or a humidifier in already humid air.
func actuatorStress(st environment.State, t *Tuning, ev *Evidence) {
	if st.Dehumidifier == environment.SwitchOn {
		dry := st.Humidity.OK && st.Humidity.Value < 40
		highVPD := st.VPD.OK && st.VPD.Value > 1.5
		switch {
		case dry:
			ev.Add(t.Obs(ObsActiveDesiccation), "Active Desiccation (Dehum ON + Low Humidity %s%%)", st.Humidity)
		case highVPD:
			ev.Add(t.Obs(ObsActiveDesiccation), "Active Desiccation (Dehum ON + High VPD %skPa)", st.VPD)
		}
	}

	if st.Humidifier.OK && st.Humidifier.Value > 0 && st.Humidity.OK {
		limit := 60.0
		if st.FlowerDays == 0 {
			limit = 75
		}
		if st.Humidity.Value > limit {
			ev.Add(t.Obs(ObsActiveSaturation), "Active Saturation (Humidifier ON + High Humidity %s%% > %s%%)",
				st.Humidity, environment.FormatValue(limit))
		}
	}
}
