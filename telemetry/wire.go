package telemetry

import (
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of TelemetryData.
const (
	fieldDriverID    protowire.Number = 1
	fieldTimestampMs protowire.Number = 2
	fieldSpeed       protowire.Number = 3
	fieldRPM         protowire.Number = 4
	fieldGear        protowire.Number = 5
	fieldThrottle    protowire.Number = 6
	fieldBrake       protowire.Number = 7
	fieldDRS         protowire.Number = 8
	fieldX           protowire.Number = 9
	fieldY           protowire.Number = 10
	fieldZ           protowire.Number = 11
)

// Field numbers of TransferSummary.
const (
	fieldTotalPackets protowire.Number = 1
	fieldStatus       protowire.Number = 2
)

// TelemetryData is the f1.TelemetryData wire message.
type TelemetryData struct {
	DriverID    string
	TimestampMs int64
	Speed       float32
	RPM         float32
	Gear        int32
	Throttle    float32
	Brake       float32
	DRS         float32
	X           float32
	Y           float32
	Z           float32
}

// Frame converts the wire message to a Frame.
func (d TelemetryData) Frame() Frame {
	return Frame(d)
}

// Marshal encodes d in proto3 binary form. Zero-valued fields are omitted.
func (d TelemetryData) Marshal() []byte {
	var b []byte
	if d.DriverID != "" {
		b = protowire.AppendTag(b, fieldDriverID, protowire.BytesType)
		b = protowire.AppendString(b, d.DriverID)
	}
	if d.TimestampMs != 0 {
		b = protowire.AppendTag(b, fieldTimestampMs, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.TimestampMs))
	}
	b = appendFloat(b, fieldSpeed, d.Speed)
	b = appendFloat(b, fieldRPM, d.RPM)
	if d.Gear != 0 {
		b = protowire.AppendTag(b, fieldGear, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(d.Gear)))
	}
	b = appendFloat(b, fieldThrottle, d.Throttle)
	b = appendFloat(b, fieldBrake, d.Brake)
	b = appendFloat(b, fieldDRS, d.DRS)
	b = appendFloat(b, fieldX, d.X)
	b = appendFloat(b, fieldY, d.Y)
	b = appendFloat(b, fieldZ, d.Z)
	return b
}

// Unmarshal decodes a proto3 binary TelemetryData into d. Unknown fields are
// skipped; truncated input, invalid tags, invalid UTF-8 or a known field
// with the wrong wire type are errors.
func (d *TelemetryData) Unmarshal(b []byte) error {
	*d = TelemetryData{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldDriverID:
			s, n, err := consumeString(b, typ)
			d.DriverID = s
			return n, err
		case fieldTimestampMs:
			v, n, err := consumeVarint(b, typ)
			d.TimestampMs = int64(v)
			return n, err
		case fieldGear:
			v, n, err := consumeVarint(b, typ)
			d.Gear = int32(v)
			return n, err
		case fieldSpeed:
			return consumeFloat(b, typ, &d.Speed)
		case fieldRPM:
			return consumeFloat(b, typ, &d.RPM)
		case fieldThrottle:
			return consumeFloat(b, typ, &d.Throttle)
		case fieldBrake:
			return consumeFloat(b, typ, &d.Brake)
		case fieldDRS:
			return consumeFloat(b, typ, &d.DRS)
		case fieldX:
			return consumeFloat(b, typ, &d.X)
		case fieldY:
			return consumeFloat(b, typ, &d.Y)
		case fieldZ:
			return consumeFloat(b, typ, &d.Z)
		}
		return -1, nil
	})
}

// StatusStreamEnded is the summary status of a gracefully closed stream.
const StatusStreamEnded = "Stream Ended"

// TransferSummary is the f1.TransferSummary wire message returned to the
// producer when its stream ends.
type TransferSummary struct {
	TotalPackets int32
	Status       string
}

// Marshal encodes s in proto3 binary form.
func (s TransferSummary) Marshal() []byte {
	var b []byte
	if s.TotalPackets != 0 {
		b = protowire.AppendTag(b, fieldTotalPackets, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(s.TotalPackets)))
	}
	if s.Status != "" {
		b = protowire.AppendTag(b, fieldStatus, protowire.BytesType)
		b = protowire.AppendString(b, s.Status)
	}
	return b
}

// Unmarshal decodes a proto3 binary TransferSummary into s.
func (s *TransferSummary) Unmarshal(b []byte) error {
	*s = TransferSummary{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldTotalPackets:
			v, n, err := consumeVarint(b, typ)
			s.TotalPackets = int32(v)
			return n, err
		case fieldStatus:
			str, n, err := consumeString(b, typ)
			s.Status = str
			return n, err
		}
		return -1, nil
	})
}

// walk iterates over the fields of a message. The callback consumes the
// field value and returns its length, or -1 to have it skipped as unknown.
func walk(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		m, err := field(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func wrongType(want, got protowire.Type) error {
	return fmt.Errorf("wire type %d, expected %d", got, want)
}

func consumeString(b []byte, typ protowire.Type) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, wrongType(protowire.BytesType, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", 0, protowire.ParseError(n)
	}
	if !utf8.Valid(v) {
		return "", 0, fmt.Errorf("invalid UTF-8")
	}
	return string(v), n, nil
}

func consumeVarint(b []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wrongType(protowire.VarintType, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeFloat(b []byte, typ protowire.Type, dst *float32) (int, error) {
	if typ != protowire.Fixed32Type {
		return 0, wrongType(protowire.Fixed32Type, typ)
	}
	v, n := protowire.ConsumeFixed32(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = math.Float32frombits(v)
	return n, nil
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	if v == 0 && !math.Signbit(float64(v)) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}
