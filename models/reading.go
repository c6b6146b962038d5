package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DatetimeLayout is the timestamp format the offline pipeline was fit with.
const DatetimeLayout = "2006-01-02 15:04:05"

// DefaultRoomID keys the reading history when a request names no room.
const DefaultRoomID = "default"

// ErrMalformedJSON is returned when the body is not a JSON object at all.
var ErrMalformedJSON = errors.New("malformed JSON body")

// ValidationError reports request fields that are missing or have the wrong type.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// SensorReading is one immutable set of environmental measurements.
type SensorReading struct {
	Timestamp     time.Time
	Temperature   float64
	Humidity      float64
	Light         float64
	CO2           float64
	HumidityRatio float64
}

// PredictionRequest is the accepted body of POST /predict and of MQTT
// reading messages. Pointer fields distinguish absent values from zeros.
type PredictionRequest struct {
	Datetime      *string  `json:"datetime"`
	Temperature   *float64 `json:"Temperature"`
	Humidity      *float64 `json:"Humidity"`
	Light         *float64 `json:"Light"`
	CO2           *float64 `json:"CO2"`
	HumidityRatio *float64 `json:"HumidityRatio"`
	RoomID        string   `json:"room_id,omitempty"`
}

// DecodePredictionRequest decodes and validates a request body.
func DecodePredictionRequest(r io.Reader) (*PredictionRequest, error) {
	var req PredictionRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ValidationError{
				Fields: []string{typeErr.Field},
				Reason: fmt.Sprintf("wrong type, expected %s", typeErr.Type),
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodePredictionPayload is DecodePredictionRequest over a byte slice.
func DecodePredictionPayload(data []byte) (*PredictionRequest, error) {
	return DecodePredictionRequest(bytes.NewReader(data))
}

// Validate checks presence of every required field and the datetime format.
// Sensor values are not range-checked.
func (r *PredictionRequest) Validate() error {
	var missing []string
	if r.Datetime == nil {
		missing = append(missing, "datetime")
	}
	if r.Temperature == nil {
		missing = append(missing, "Temperature")
	}
	if r.Humidity == nil {
		missing = append(missing, "Humidity")
	}
	if r.Light == nil {
		missing = append(missing, "Light")
	}
	if r.CO2 == nil {
		missing = append(missing, "CO2")
	}
	if r.HumidityRatio == nil {
		missing = append(missing, "HumidityRatio")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "missing required fields"}
	}

	if _, err := ParseDatetime(*r.Datetime); err != nil {
		return &ValidationError{
			Fields: []string{"datetime"},
			Reason: "invalid datetime format, expected 'YYYY-MM-DD HH:MM:SS'",
		}
	}
	return nil
}

// Reading converts a validated request into a SensorReading.
func (r *PredictionRequest) Reading() SensorReading {
	ts, _ := ParseDatetime(*r.Datetime)
	return SensorReading{
		Timestamp:     ts,
		Temperature:   *r.Temperature,
		Humidity:      *r.Humidity,
		Light:         *r.Light,
		CO2:           *r.CO2,
		HumidityRatio: *r.HumidityRatio,
	}
}

// Room returns the request's room id, falling back to DefaultRoomID.
func (r *PredictionRequest) Room() string {
	if r.RoomID == "" {
		return DefaultRoomID
	}
	return r.RoomID
}

// ParseDatetime accepts the pipeline layout and RFC 3339.
func ParseDatetime(s string) (time.Time, error) {
	if t, err := time.Parse(DatetimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
