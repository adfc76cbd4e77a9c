package types

import "time"

// Measurement labels accepted in device push payloads. Each canonical Reading
// field is bound to exactly one label; the mapping is by label, never by
// array position.
const (
	LabelTemperature = "temperature"
	LabelPressure    = "pressure"
	LabelHumidity    = "humidity"
)

// Reading is one stored environmental measurement triple. Immutable once
// inserted; removed only by the purge operations.
type Reading struct {
	DeviceID    int       `json:"deviceId"`
	Temperature float64   `json:"temperature"`
	Pressure    float64   `json:"pressure"`
	Humidity    float64   `json:"humidity"`
	ReadingDate time.Time `json:"readingDate"`
}

// Component is one labeled measurement inside a push payload.
type Component struct {
	ID    int     `json:"id"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// RawReading is the device push payload. DeviceID asserts the target device
// and must agree with the id in the request path.
type RawReading struct {
	DeviceID int         `json:"deviceId"`
	Air      []Component `json:"air"`
}

// DeviceLatest is one entry of the latest-for-all response. Measurement
// fields are nil when the device has no stored readings.
type DeviceLatest struct {
	DeviceID    int        `json:"deviceId"`
	Temperature *float64   `json:"temperature,omitempty"`
	Pressure    *float64   `json:"pressure,omitempty"`
	Humidity    *float64   `json:"humidity,omitempty"`
	ReadingDate *time.Time `json:"readingDate,omitempty"`
}
