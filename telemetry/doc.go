// Package telemetry defines the frame the relay carries and its two
// encodings: the protobuf wire messages of the f1.F1TelemetryService
// contract (see proto/f1.proto) and the JSON object observers receive.
//
// The wire codec is written against protowire directly, so no generated code
// is needed and any stock protobuf client can produce frames.
package telemetry
