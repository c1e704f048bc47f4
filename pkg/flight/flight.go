// Package flight defines the identifying types shared by every component:
// flight keys, status codes, and the status request envelope broadcast to
// oracles.
package flight

import (
	"fmt"
	"time"
)

// Status is the reported disposition of a flight instance.
type Status string

const (
	StatusUnknown       Status = "UNKNOWN"
	StatusOnTime        Status = "ON_TIME"
	StatusLateAirline   Status = "LATE_AIRLINE"
	StatusLateWeather   Status = "LATE_WEATHER"
	StatusLateTechnical Status = "LATE_TECHNICAL"
	StatusLateOther     Status = "LATE_OTHER"
)

// Statuses lists every valid status code, in a fixed order.
var Statuses = []Status{
	StatusUnknown,
	StatusOnTime,
	StatusLateAirline,
	StatusLateWeather,
	StatusLateTechnical,
	StatusLateOther,
}

// Valid reports whether s is a known status code.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Key identifies one flight instance. It scopes all per-flight state:
// status requests, response tallies, and insurance policies.
type Key struct {
	Airline   string `json:"airline"`
	Flight    string `json:"flight"`
	Timestamp int64  `json:"timestamp"`
}

// String returns the canonical map-key form of the flight key.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d", k.Airline, k.Flight, k.Timestamp)
}

// StatusRequest is the envelope broadcast to oracles when a flight's status
// is requested. Only oracles holding IndexLabel may answer it.
type StatusRequest struct {
	ID         string    `json:"id"`
	FlightKey  Key       `json:"flight_key"`
	IndexLabel int       `json:"index_label"`
	CreatedAt  time.Time `json:"created_at"`
}

// Decision is the one-shot outcome of response aggregation for a flight key.
type Decision struct {
	FlightKey Key    `json:"flight_key"`
	Status    Status `json:"status"`
}
