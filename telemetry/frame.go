package telemetry

import (
	"encoding/json"
	"math"
)

// Frame is one telemetry sample for one driver at one instant.
//
// Frames are values: the relay copies them into the broadcast ring and again
// into every session, so nothing shares mutable state.
type Frame struct {
	DriverID    string  `json:"driver_id"`
	TimestampMs int64   `json:"timestamp"`
	Speed       float32 `json:"speed"`
	RPM         float32 `json:"rpm"`
	Gear        int32   `json:"gear"`
	Throttle    float32 `json:"throttle"`
	Brake       float32 `json:"brake"`
	DRS         float32 `json:"drs"`
	X           float32 `json:"x"`
	Y           float32 `json:"y"`
	Z           float32 `json:"z"`
}

// JSON encodes the frame as the observer-facing JSON object.
func (f Frame) JSON() ([]byte, error) {
	return json.Marshal(f)
}

// MarshalJSON writes NaN and ±Inf as null so every frame has a JSON form.
func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(frameJSON{
		DriverID:    f.DriverID,
		TimestampMs: f.TimestampMs,
		Speed:       jsonFloat(f.Speed),
		RPM:         jsonFloat(f.RPM),
		Gear:        f.Gear,
		Throttle:    jsonFloat(f.Throttle),
		Brake:       jsonFloat(f.Brake),
		DRS:         jsonFloat(f.DRS),
		X:           jsonFloat(f.X),
		Y:           jsonFloat(f.Y),
		Z:           jsonFloat(f.Z),
	})
}

// frameJSON mirrors Frame field for field.
type frameJSON struct {
	DriverID    string    `json:"driver_id"`
	TimestampMs int64     `json:"timestamp"`
	Speed       jsonFloat `json:"speed"`
	RPM         jsonFloat `json:"rpm"`
	Gear        int32     `json:"gear"`
	Throttle    jsonFloat `json:"throttle"`
	Brake       jsonFloat `json:"brake"`
	DRS         jsonFloat `json:"drs"`
	X           jsonFloat `json:"x"`
	Y           jsonFloat `json:"y"`
	Z           jsonFloat `json:"z"`
}

type jsonFloat float32

func (v jsonFloat) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float32(v))
}

// Data converts the frame to its wire message.
func (f Frame) Data() TelemetryData {
	return TelemetryData(f)
}

// ParseFrame decodes the observer-facing JSON form.
func ParseFrame(b []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(b, &f)
	return f, err
}
