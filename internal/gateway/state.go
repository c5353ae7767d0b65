package gateway

import "github.com/nerrad567/gray-logic-blehub/internal/switchbot"

// StateFields flattens a decoded payload into named fields.
// Used for both the retained state message and the telemetry point, so the
// two always agree. Returns nil for a nil payload.
func StateFields(p switchbot.Payload) map[string]any {
	switch v := p.(type) {
	case switchbot.Bot:
		return map[string]any{"mode": v.Mode, "on": v.State, "battery": int(v.Battery)}
	case switchbot.Curtain:
		return map[string]any{
			"calibrated":  v.Calibration,
			"battery":     int(v.Battery),
			"position":    int(v.Position),
			"moving":      v.Moving,
			"light_level": int(v.LightLevel),
		}
	case switchbot.Blind:
		return map[string]any{"battery": int(v.Battery), "position": int(v.Position), "version": int(v.Version)}
	case switchbot.Thermometer:
		return climate(v.Temperature, v.Battery, v.Humidity)
	case switchbot.IOTHSensor:
		return climate(v.Temperature, v.Battery, v.Humidity)
	case switchbot.MeterProCO2:
		m := climate(v.Temperature, v.Battery, v.Humidity)
		m["co2_ppm"] = int(v.CO2)
		return m
	case switchbot.Presence:
		return map[string]any{"motion": v.Motion, "battery": int(v.Battery), "light": v.Light}
	case switchbot.Contact:
		return map[string]any{
			"motion":         v.Motion,
			"battery":        int(v.Battery),
			"light":          v.Light,
			"open":           v.Contact,
			"left_open":      v.LeftOpen,
			"last_motion_s":  int(v.LastMotion),
			"last_contact_s": int(v.LastContact),
			"button_presses": int(v.ButtonPresses),
			"entries":        int(v.EntryCount),
			"exits":          int(v.ExitCount),
		}
	case switchbot.Remote:
		return map[string]any{"data1": int(v.Data1), "data2": int(v.Data2), "data3": int(v.Data3)}
	case switchbot.Bulb:
		return map[string]any{
			"sequence":    int(v.Sequence),
			"on":          v.On,
			"dim":         int(v.Dim),
			"light_state": int(v.LightState),
		}
	case switchbot.WaterLeak:
		return map[string]any{"battery": int(v.Battery), "leak": v.Leak(), "status": int(v.Status)}
	default:
		return nil
	}
}

func climate(temperature float64, battery, humidity uint8) map[string]any {
	return map[string]any{
		"temperature_c": temperature,
		"battery":       int(battery),
		"humidity":      int(humidity),
	}
}
