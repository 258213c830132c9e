// Package sensor defines the canonical sensor reading and the normalizer
// that maps the backend's payload shapes onto it.
package sensor

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Reading is the canonical current snapshot derived from any backend payload
// shape. Every field is independently nullable: absence of one sensor's data
// is represented, never an error.
type Reading struct {
	Ambient         Ambient   `json:"ambient"`
	Body            Body      `json:"body"`
	Motion          Motion    `json:"motion"`
	Hydration       Hydration `json:"hydration"`
	SourceTimestamp time.Time `json:"sourceTimestamp"`
}

// Ambient holds the environment readings from the BME280.
type Ambient struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Pressure    *float64 `json:"pressure"`
}

// Body holds the MLX90614 infrared temperature readings.
type Body struct {
	ObjectTemperature  *float64 `json:"objectTemperature"`
	AmbientTemperature *float64 `json:"ambientTemperatureAtSensor"`
}

// Vec3 is one three-axis sample from the MPU6050.
type Vec3 struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// Motion holds accelerometer and gyroscope samples.
type Motion struct {
	Acceleration Vec3 `json:"acceleration"`
	Gyroscope    Vec3 `json:"gyroscope"`
}

// Hydration holds the galvanic skin response readings.
type Hydration struct {
	Conductance *float64 `json:"conductance"`
	Percentage  *float64 `json:"percentage"`
	State       *string  `json:"state"`
}

// Stats are aggregate statistics over one field of a REST history array.
type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// Snapshot is the result of normalizing REST history arrays: the canonical
// current reading plus per-field aggregates over the full arrays. The
// aggregates accompany the reading, they never replace it.
type Snapshot struct {
	Reading Reading          `json:"reading"`
	Stats   map[string]Stats `json:"stats"`
}

// Float is a nullable numeric wire value. Any JSON value that is not a
// finite number (or a string holding one) decodes to null rather than
// failing the surrounding document.
type Float struct {
	val float64
	ok  bool
}

// UnmarshalJSON never returns an error: malformed values become null.
func (f *Float) UnmarshalJSON(b []byte) error {
	f.ok = false
	if string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		if !math.IsNaN(n) && !math.IsInf(n, 0) {
			f.val, f.ok = n, true
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			f.val, f.ok = n, true
		}
	}
	return nil
}

// MarshalJSON renders the value or null.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.ok {
		return []byte("null"), nil
	}
	return json.Marshal(f.val)
}

// Ptr returns the value as a nullable pointer.
func (f Float) Ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.val
	return &v
}

// FloatOf wraps a plain float64, mainly for tests and the demo source.
func FloatOf(v float64) Float {
	return Float{val: v, ok: true}
}
