package grpc

import "fmt"

// CodecName is registered on the wire as the content-subtype. It matches
// the stock protobuf codec so generated clients interoperate.
const CodecName = "proto"

// Marshaler is implemented by hand-encoded protobuf messages.
type Marshaler interface {
	Marshal() []byte
}

// Unmarshaler is implemented by hand-decoded protobuf messages.
type Unmarshaler interface {
	Unmarshal(b []byte) error
}

// Codec moves protobuf bytes without reflection. Handlers receive raw
// []byte and decode themselves, so a decode failure can be reported with
// the position of the offending message.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case []byte:
		return m, nil
	case *[]byte:
		return *m, nil
	case Marshaler:
		return m.Marshal(), nil
	default:
		return nil, fmt.Errorf("grpc codec: cannot marshal %T", v)
	}
}

func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *[]byte:
		*m = append((*m)[:0], data...)
		return nil
	case Unmarshaler:
		return m.Unmarshal(data)
	default:
		return fmt.Errorf("grpc codec: cannot unmarshal into %T", v)
	}
}

func (Codec) Name() string { return CodecName }
