package repository

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"iotdash-server/internal/modules/telemetry/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/list-by-device.sql
var listByDeviceSQL string

//go:embed sql/latest-readings.sql
var latestReadingsSQL string

//go:embed sql/range-readings.sql
var rangeReadingsSQL string

//go:embed sql/delete-all.sql
var deleteAllSQL string

//go:embed sql/delete-by-device.sql
var deleteByDeviceSQL string

//go:embed sql/delete-in-range.sql
var deleteInRangeSQL string

// Timestamps are stored as TEXT and compared with <= / >= in SQL. The fixed
// nine-digit fraction keeps lexical order identical to chronological order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ReadingRepository is the append-only reading store. Insertion order per
// device is the rowid order; no method re-sorts by timestamp.
type ReadingRepository interface {
	Insert(r types.Reading) error
	ListByDevice(deviceID int) ([]types.Reading, error)
	Latest(deviceID, n int) ([]types.Reading, error)
	LatestForAll(deviceCount int) ([]types.DeviceLatest, error)
	Range(deviceID int, from, to time.Time) ([]types.Reading, error)
	DeleteAll() (int64, error)
	DeleteByDevice(deviceID int) (int64, error)
	DeleteInRange(deviceID int, from, to time.Time) (int64, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ReadingRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Insert(reading types.Reading) error {
	tsStr := reading.ReadingDate.UTC().Format(tsLayout)
	_, err := r.db.Exec(insertReadingSQL,
		reading.DeviceID, tsStr, reading.Temperature, reading.Pressure, reading.Humidity)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) ListByDevice(deviceID int) ([]types.Reading, error) {
	rows, err := r.db.Query(listByDeviceSQL, deviceID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "device readings")
	return scanReadings(rows)
}

// Latest returns up to n readings for the device, most recently inserted first.
func (r *repositoryImpl) Latest(deviceID, n int) ([]types.Reading, error) {
	rows, err := r.db.Query(latestReadingsSQL, deviceID, n)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "latest readings")
	return scanReadings(rows)
}

// LatestForAll collects the single latest reading for each device id in
// [0, deviceCount). A failure for one device degrades to a no-data entry for
// that device only; the batch itself never fails.
func (r *repositoryImpl) LatestForAll(deviceCount int) ([]types.DeviceLatest, error) {
	out := make([]types.DeviceLatest, 0, deviceCount)
	for id := 0; id < deviceCount; id++ {
		entry := types.DeviceLatest{DeviceID: id}
		latest, err := r.Latest(id, 1)
		if err != nil {
			slog.Error("latest reading lookup failed", "device_id", id, "error", err)
		} else if len(latest) > 0 {
			rec := latest[0]
			entry.Temperature = &rec.Temperature
			entry.Pressure = &rec.Pressure
			entry.Humidity = &rec.Humidity
			entry.ReadingDate = &rec.ReadingDate
		}
		out = append(out, entry)
	}
	return out, nil
}

// Range returns readings with timestamp in [from, to], insertion order.
func (r *repositoryImpl) Range(deviceID int, from, to time.Time) ([]types.Reading, error) {
	fromStr := from.UTC().Format(tsLayout)
	toStr := to.UTC().Format(tsLayout)
	rows, err := r.db.Query(rangeReadingsSQL, deviceID, fromStr, toStr)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "range readings")
	return scanReadings(rows)
}

func (r *repositoryImpl) DeleteAll() (int64, error) {
	res, err := r.db.Exec(deleteAllSQL)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repositoryImpl) DeleteByDevice(deviceID int) (int64, error) {
	res, err := r.db.Exec(deleteByDeviceSQL, deviceID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repositoryImpl) DeleteInRange(deviceID int, from, to time.Time) (int64, error) {
	fromStr := from.UTC().Format(tsLayout)
	toStr := to.UTC().Format(tsLayout)
	res, err := r.db.Exec(deleteInRangeSQL, deviceID, fromStr, toStr)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	var out []types.Reading
	for rows.Next() {
		var rec types.Reading
		var ts string
		if err := rows.Scan(&rec.DeviceID, &ts, &rec.Temperature, &rec.Pressure, &rec.Humidity); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			var err2 error
			t, err2 = time.Parse(time.RFC3339, ts)
			if err2 != nil {
				return nil, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", ts, err, err2)
			}
		}
		rec.ReadingDate = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close "+what+" rows", "error", err)
	}
}
