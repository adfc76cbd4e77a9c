package telemetry

import (
	"log/slog"

	"iotdash-server/internal/modules/telemetry/service"
	"iotdash-server/internal/modules/telemetry/types"
)

// IngestSubscriber is the part of the MQTT subscriber the bridge needs.
type IngestSubscriber interface {
	SetMessageHandler(handler func(raw types.RawReading) error)
}

// RegisterIngest routes MQTT reading payloads through the same validation and
// storage path as HTTP pushes.
func RegisterIngest(subscriber IngestSubscriber, svc *service.Service) {
	subscriber.SetMessageHandler(func(raw types.RawReading) error {
		reading, err := svc.RecordReading(raw.DeviceID, raw)
		if err != nil {
			slog.Warn("mqtt reading rejected", "device_id", raw.DeviceID, "error", err)
			return err
		}
		slog.Debug("mqtt reading stored", "device_id", reading.DeviceID, "ts", reading.ReadingDate)
		return nil
	})
}
