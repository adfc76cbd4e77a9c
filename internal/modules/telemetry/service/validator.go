package service

import (
	"iotdash-server/internal/modules/telemetry/types"
)

// expectedLabels binds each payload label to its canonical Reading field.
// Mapping is by label so reordered components can never be misassigned.
var expectedLabels = map[string]bool{
	types.LabelTemperature: true,
	types.LabelPressure:    true,
	types.LabelHumidity:    true,
}

// validateRaw checks a push payload against the device id asserted in the
// request path and returns the measurement values keyed by label.
func validateRaw(pathDeviceID int, raw types.RawReading, deviceCount int) (map[string]float64, error) {
	if pathDeviceID < 0 || pathDeviceID >= deviceCount {
		return nil, types.Invalid("deviceId", "%d out of range [0, %d)", pathDeviceID, deviceCount)
	}
	if raw.DeviceID != pathDeviceID {
		return nil, types.Invalid("deviceId", "payload device %d does not match path device %d", raw.DeviceID, pathDeviceID)
	}
	if len(raw.Air) != len(expectedLabels) {
		return nil, types.Invalid("air", "expected %d components, got %d", len(expectedLabels), len(raw.Air))
	}

	seenIDs := make(map[int]bool, len(raw.Air))
	values := make(map[string]float64, len(raw.Air))
	for _, c := range raw.Air {
		if c.ID <= 0 {
			return nil, types.Invalid("air.id", "component id must be a positive integer, got %d", c.ID)
		}
		if seenIDs[c.ID] {
			return nil, types.Invalid("air.id", "duplicate component id %d", c.ID)
		}
		seenIDs[c.ID] = true

		if !expectedLabels[c.Label] {
			return nil, types.Invalid("air.label", "unknown label %q", c.Label)
		}
		if _, dup := values[c.Label]; dup {
			return nil, types.Invalid("air.label", "duplicate label %q", c.Label)
		}
		if c.Value <= 0 {
			return nil, types.Invalid("air.value", "%s must be a positive number, got %g", c.Label, c.Value)
		}
		values[c.Label] = c.Value
	}
	return values, nil
}
