package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const examplePayload = `{
	"datetime": "2015-02-04 17:51:00",
	"Temperature": 23.18,
	"Humidity": 27.272,
	"Light": 426.0,
	"CO2": 721.25,
	"HumidityRatio": 0.00479
}`

func TestDecodePredictionRequest_Example(t *testing.T) {
	req, err := DecodePredictionRequest(strings.NewReader(examplePayload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r := req.Reading()
	want := time.Date(2015, 2, 4, 17, 51, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", r.Timestamp, want)
	}
	if r.Temperature != 23.18 || r.Humidity != 27.272 || r.Light != 426.0 || r.CO2 != 721.25 || r.HumidityRatio != 0.00479 {
		t.Errorf("reading values: got %+v", r)
	}
	if req.Room() != DefaultRoomID {
		t.Errorf("room: got %q, want %q", req.Room(), DefaultRoomID)
	}
}

func TestDecodePredictionRequest_ZeroValuesAreNotMissing(t *testing.T) {
	body := `{"datetime":"2015-02-04 07:00:00","Temperature":0,"Humidity":0,"Light":0,"CO2":400,"HumidityRatio":0,"room_id":"lab"}`
	req, err := DecodePredictionRequest(strings.NewReader(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Room() != "lab" {
		t.Errorf("room: got %q, want lab", req.Room())
	}
}

func TestDecodePredictionRequest_MissingFields(t *testing.T) {
	_, err := DecodePredictionRequest(strings.NewReader(`{"datetime":"2015-02-04 17:51:00","Temperature":23.18}`))

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	want := []string{"Humidity", "Light", "CO2", "HumidityRatio"}
	if len(vErr.Fields) != len(want) {
		t.Fatalf("fields: got %v, want %v", vErr.Fields, want)
	}
	for i := range want {
		if vErr.Fields[i] != want[i] {
			t.Errorf("fields[%d]: got %q, want %q", i, vErr.Fields[i], want[i])
		}
	}
}

func TestDecodePredictionRequest_NullIsMissing(t *testing.T) {
	body := strings.Replace(examplePayload, `"CO2": 721.25`, `"CO2": null`, 1)
	_, err := DecodePredictionRequest(strings.NewReader(body))

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0] != "CO2" {
		t.Errorf("fields: got %v, want [CO2]", vErr.Fields)
	}
}

func TestDecodePredictionRequest_WrongType(t *testing.T) {
	body := strings.Replace(examplePayload, `"Temperature": 23.18`, `"Temperature": "warm"`, 1)
	_, err := DecodePredictionRequest(strings.NewReader(body))

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0] != "Temperature" {
		t.Errorf("fields: got %v, want [Temperature]", vErr.Fields)
	}
}

func TestDecodePredictionRequest_BadDatetime(t *testing.T) {
	body := strings.Replace(examplePayload, "2015-02-04 17:51:00", "04/02/2015 17:51", 1)
	_, err := DecodePredictionRequest(strings.NewReader(body))

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if vErr.Fields[0] != "datetime" {
		t.Errorf("fields: got %v, want [datetime]", vErr.Fields)
	}
}

func TestDecodePredictionRequest_Malformed(t *testing.T) {
	for _, body := range []string{"", "{", "not json"} {
		_, err := DecodePredictionRequest(strings.NewReader(body))
		if !errors.Is(err, ErrMalformedJSON) {
			t.Errorf("body %q: got %v, want ErrMalformedJSON", body, err)
		}
	}
}

func TestParseDatetime_RFC3339(t *testing.T) {
	ts, err := ParseDatetime("2015-02-04T17:51:00Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts.Hour() != 17 || ts.Minute() != 51 {
		t.Errorf("got %v", ts)
	}
}

func TestLabelFor(t *testing.T) {
	if got := LabelFor(1); got != LabelOccupied {
		t.Errorf("LabelFor(1): got %q", got)
	}
	if got := LabelFor(0); got != LabelUnoccupied {
		t.Errorf("LabelFor(0): got %q", got)
	}
}
