package service

import (
	"time"

	"iotdash-server/internal/modules/telemetry/repository"
	"iotdash-server/internal/modules/telemetry/types"
)

// Service orchestrates payload validation and the reading store. Purge
// operations are administrative; role enforcement happens in the HTTP layer.
type Service struct {
	repo    repository.ReadingRepository
	devices int
	now     func() time.Time
}

func NewService(repo repository.ReadingRepository, supportedDevices int) *Service {
	return &Service{repo: repo, devices: supportedDevices, now: time.Now}
}

// RecordReading validates a push payload, stamps it with the current time and
// appends it to the store.
func (s *Service) RecordReading(deviceID int, raw types.RawReading) (types.Reading, error) {
	values, err := validateRaw(deviceID, raw, s.devices)
	if err != nil {
		return types.Reading{}, err
	}
	reading := types.Reading{
		DeviceID:    deviceID,
		Temperature: values[types.LabelTemperature],
		Pressure:    values[types.LabelPressure],
		Humidity:    values[types.LabelHumidity],
		ReadingDate: s.now().UTC(),
	}
	if err := s.repo.Insert(reading); err != nil {
		return types.Reading{}, &types.StorageError{Op: "insert", Err: err}
	}
	return reading, nil
}

// RecordPolled stores a reading pulled from the external source. The polled
// values bypass the push-payload rules (sub-zero temperatures are valid
// weather) but the device id must still be in range.
func (s *Service) RecordPolled(deviceID int, temperature, pressure, humidity float64) (types.Reading, error) {
	if err := s.checkDevice(deviceID); err != nil {
		return types.Reading{}, err
	}
	reading := types.Reading{
		DeviceID:    deviceID,
		Temperature: temperature,
		Pressure:    pressure,
		Humidity:    humidity,
		ReadingDate: s.now().UTC(),
	}
	if err := s.repo.Insert(reading); err != nil {
		return types.Reading{}, &types.StorageError{Op: "insert", Err: err}
	}
	return reading, nil
}

// QueryHistory returns every stored reading for the device in insertion order.
func (s *Service) QueryHistory(deviceID int) ([]types.Reading, error) {
	if err := s.checkDevice(deviceID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListByDevice(deviceID)
	if err != nil {
		return nil, &types.StorageError{Op: "list", Err: err}
	}
	return out, nil
}

// QueryLatest returns the most recent reading for the device, or nil when the
// device has no data.
func (s *Service) QueryLatest(deviceID int) (*types.Reading, error) {
	out, err := s.QueryLatestN(deviceID, 1)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// QueryLatestN returns the n most recent readings, most recent first.
func (s *Service) QueryLatestN(deviceID, n int) ([]types.Reading, error) {
	if err := s.checkDevice(deviceID); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, types.Invalid("num", "must be >= 1, got %d", n)
	}
	out, err := s.repo.Latest(deviceID, n)
	if err != nil {
		return nil, &types.StorageError{Op: "latest", Err: err}
	}
	return out, nil
}

// QueryAllLatest returns one entry per supported device, each holding the
// latest reading or an explicit no-data marker.
func (s *Service) QueryAllLatest() ([]types.DeviceLatest, error) {
	out, err := s.repo.LatestForAll(s.devices)
	if err != nil {
		return nil, &types.StorageError{Op: "latest-all", Err: err}
	}
	return out, nil
}

// QueryRange returns readings with timestamp in [from, to], insertion order.
func (s *Service) QueryRange(deviceID int, from, to time.Time) ([]types.Reading, error) {
	if err := s.checkDevice(deviceID); err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, types.Invalid("from", "must not be after 'to'")
	}
	out, err := s.repo.Range(deviceID, from, to)
	if err != nil {
		return nil, &types.StorageError{Op: "range", Err: err}
	}
	return out, nil
}

func (s *Service) PurgeAll() (int64, error) {
	n, err := s.repo.DeleteAll()
	if err != nil {
		return 0, &types.StorageError{Op: "delete-all", Err: err}
	}
	return n, nil
}

func (s *Service) PurgeDevice(deviceID int) (int64, error) {
	if err := s.checkDevice(deviceID); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteByDevice(deviceID)
	if err != nil {
		return 0, &types.StorageError{Op: "delete-device", Err: err}
	}
	return n, nil
}

func (s *Service) PurgeRange(deviceID int, from, to time.Time) (int64, error) {
	if err := s.checkDevice(deviceID); err != nil {
		return 0, err
	}
	if from.After(to) {
		return 0, types.Invalid("from", "must not be after 'to'")
	}
	n, err := s.repo.DeleteInRange(deviceID, from, to)
	if err != nil {
		return 0, &types.StorageError{Op: "delete-range", Err: err}
	}
	return n, nil
}

func (s *Service) checkDevice(deviceID int) error {
	if deviceID < 0 || deviceID >= s.devices {
		return types.Invalid("deviceId", "%d out of range [0, %d)", deviceID, s.devices)
	}
	return nil
}
