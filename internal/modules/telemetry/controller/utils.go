package controller

import (
	"errors"
	"net/http"
	"time"
)

// parseRangeQuery reads the required from/to query parameters as RFC3339.
func parseRangeQuery(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()

	fromStr := q.Get("from")
	toStr := q.Get("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errors.New("'from' and 'to' are required")
	}
	from, err = time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid 'from' (expected RFC3339)")
	}
	to, err = time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid 'to' (expected RFC3339)")
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("'from' must be <= 'to'")
	}
	return from, to, nil
}
