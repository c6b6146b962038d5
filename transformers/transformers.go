// Package transformers turns a raw sensor reading into the feature vector the
// offline occupancy pipeline was fit on. Every function here is pure; the
// fitted parameters (Box-Cox lambda, Light bin edges) are supplied by the
// caller from the pipeline manifest and never recomputed.
package transformers

import (
	"fmt"
	"math"
	"sort"
	"time"

	"occupancy-predictor/models"
)

// Feature names, in the order the reference pipeline emits them.
const (
	FeatTemperature   = "Temperature"
	FeatHumidity      = "Humidity"
	FeatLight         = "Light"
	FeatCO2           = "CO2"
	FeatHumidityRatio = "HumidityRatio"
	FeatHour          = "hour"
	FeatDayOfWeek     = "day_of_week"
	FeatHourSin       = "hour_sin"
	FeatHourCos       = "hour_cos"
	FeatCO2Delta      = "co2_delta"
	FeatLightDelta    = "light_delta"
	FeatHRDelta       = "hr_delta"
	FeatTempDelta     = "temp_delta"
	FeatCO2Rate       = "co2_rate"
	FeatLightRate     = "light_rate"
	FeatHRRate        = "hr_rate"
	FeatTempRate      = "temp_rate"
)

// DefaultFeatureOrder is the column order of the reference pipeline.
var DefaultFeatureOrder = []string{
	FeatTemperature, FeatHumidity, FeatLight, FeatCO2, FeatHumidityRatio,
	FeatHour, FeatDayOfWeek, FeatHourSin, FeatHourCos,
	FeatCO2Delta, FeatLightDelta, FeatHRDelta, FeatTempDelta,
	FeatCO2Rate, FeatLightRate, FeatHRRate, FeatTempRate,
}

// InputError marks a reading the fitted transforms cannot be applied to.
type InputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

// Params are the fitted transform parameters.
type Params struct {
	CO2Lambda     float64
	LightBinEdges []float64
}

// Transformed is a reading after the column-wise transforms, before
// time and lag features are derived.
type Transformed struct {
	Timestamp     time.Time
	Temperature   float64
	Humidity      float64
	Light         float64
	CO2           float64
	HumidityRatio float64
}

// Features is the full derived feature set for one reading.
type Features struct {
	Transformed

	Hour      int
	DayOfWeek int
	HourSin   float64
	HourCos   float64

	CO2Delta   float64
	LightDelta float64
	HRDelta    float64
	TempDelta  float64

	CO2Rate   float64
	LightRate float64
	HRRate    float64
	TempRate  float64
}

// BoxCox applies the one-parameter Box-Cox transform. x must be positive.
func BoxCox(x, lambda float64) (float64, error) {
	if x <= 0 || math.IsNaN(x) {
		return 0, &InputError{Field: FeatCO2, Value: x, Reason: "Box-Cox transform requires a positive value"}
	}
	if lambda == 0 {
		return math.Log(x), nil
	}
	return (math.Pow(x, lambda) - 1) / lambda, nil
}

// Discretize returns the ordinal bin of x for the given edges, matching a
// fitted uniform/quantile KBins discretizer: values below the first edge fall
// in bin 0, values above the last in the final bin.
func Discretize(x float64, edges []float64) float64 {
	if len(edges) < 2 {
		return x
	}
	inner := edges[1 : len(edges)-1]
	// first inner edge strictly greater than x
	bin := sort.Search(len(inner), func(i int) bool { return inner[i] > x })
	return float64(bin)
}

// TimeFeatures returns hour, day of week (Monday = 0) and the cyclical hour encoding.
func TimeFeatures(t time.Time) (hour, dayOfWeek int, hourSin, hourCos float64) {
	hour = t.Hour()
	dayOfWeek = (int(t.Weekday()) + 6) % 7
	angle := 2 * math.Pi * float64(hour) / 24
	return hour, dayOfWeek, math.Sin(angle), math.Cos(angle)
}

// Apply runs the column transforms on a raw reading.
func (p Params) Apply(r models.SensorReading) (Transformed, error) {
	co2, err := BoxCox(r.CO2, p.CO2Lambda)
	if err != nil {
		return Transformed{}, err
	}
	return Transformed{
		Timestamp:     r.Timestamp,
		Temperature:   r.Temperature,
		Humidity:      r.Humidity,
		Light:         Discretize(r.Light, p.LightBinEdges),
		CO2:           co2,
		HumidityRatio: r.HumidityRatio,
	}, nil
}

// Derive computes time, delta and rate features of cur relative to prev.
// A nil prev yields zero deltas and rates.
func Derive(cur Transformed, prev *Transformed) Features {
	f := Features{Transformed: cur}
	f.Hour, f.DayOfWeek, f.HourSin, f.HourCos = TimeFeatures(cur.Timestamp)

	if prev == nil {
		return f
	}

	f.CO2Delta = cur.CO2 - prev.CO2
	f.LightDelta = cur.Light - prev.Light
	f.HRDelta = cur.HumidityRatio - prev.HumidityRatio
	f.TempDelta = cur.Temperature - prev.Temperature

	minutes := cur.Timestamp.Sub(prev.Timestamp).Minutes()
	if minutes != 0 {
		f.CO2Rate = f.CO2Delta / minutes
		f.LightRate = f.LightDelta / minutes
		f.HRRate = f.HRDelta / minutes
		f.TempRate = f.TempDelta / minutes
	}
	return f
}

func (f Features) lookup(name string) (float64, bool) {
	switch name {
	case FeatTemperature:
		return f.Temperature, true
	case FeatHumidity:
		return f.Humidity, true
	case FeatLight:
		return f.Light, true
	case FeatCO2:
		return f.CO2, true
	case FeatHumidityRatio:
		return f.HumidityRatio, true
	case FeatHour:
		return float64(f.Hour), true
	case FeatDayOfWeek:
		return float64(f.DayOfWeek), true
	case FeatHourSin:
		return f.HourSin, true
	case FeatHourCos:
		return f.HourCos, true
	case FeatCO2Delta:
		return f.CO2Delta, true
	case FeatLightDelta:
		return f.LightDelta, true
	case FeatHRDelta:
		return f.HRDelta, true
	case FeatTempDelta:
		return f.TempDelta, true
	case FeatCO2Rate:
		return f.CO2Rate, true
	case FeatLightRate:
		return f.LightRate, true
	case FeatHRRate:
		return f.HRRate, true
	case FeatTempRate:
		return f.TempRate, true
	}
	return 0, false
}

// Vector lays the features out in the given column order.
func (f Features) Vector(order []string) ([]float64, error) {
	out := make([]float64, len(order))
	for i, name := range order {
		v, ok := f.lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown feature %q at column %d", name, i)
		}
		out[i] = v
	}
	return out, nil
}

// ValidateOrder checks that every name is a known feature and none repeats.
func ValidateOrder(order []string) error {
	if len(order) == 0 {
		return fmt.Errorf("feature order is empty")
	}
	seen := make(map[string]bool, len(order))
	var probe Features
	for i, name := range order {
		if _, ok := probe.lookup(name); !ok {
			return fmt.Errorf("unknown feature %q at column %d", name, i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate feature %q at column %d", name, i)
		}
		seen[name] = true
	}
	return nil
}
