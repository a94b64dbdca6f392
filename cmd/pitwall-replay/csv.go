package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kbukum/pitwall/telemetry"
)

// csvColumns is the expected column order. A header row with these names is
// optional.
var csvColumns = []string{"driver_id", "timestamp_ms", "speed", "rpm", "gear", "throttle", "brake", "drs", "x", "y", "z"}

// frameReader yields frames from CSV input one row at a time.
type frameReader struct {
	r    *csv.Reader
	line int
}

func newFrameReader(r io.Reader) *frameReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvColumns)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cr.ReuseRecord = true
	return &frameReader{r: cr}
}

// Next returns the next frame or io.EOF.
func (fr *frameReader) Next() (telemetry.Frame, error) {
	for {
		rec, err := fr.r.Read()
		if err != nil {
			return telemetry.Frame{}, err
		}
		fr.line++
		if fr.line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), csvColumns[0]) {
			continue
		}
		f, err := parseRecord(rec)
		if err != nil {
			line, _ := fr.r.FieldPos(0)
			return telemetry.Frame{}, fmt.Errorf("line %d: %w", line, err)
		}
		return f, nil
	}
}

func parseRecord(rec []string) (telemetry.Frame, error) {
	f := telemetry.Frame{DriverID: strings.TrimSpace(rec[0])}
	if f.DriverID == "" {
		return f, fmt.Errorf("driver_id is empty")
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
	if err != nil {
		return f, fmt.Errorf("timestamp_ms: %w", err)
	}
	f.TimestampMs = ts

	gear, err := strconv.ParseInt(strings.TrimSpace(rec[4]), 10, 32)
	if err != nil {
		return f, fmt.Errorf("gear: %w", err)
	}
	f.Gear = int32(gear)

	floats := []struct {
		col int
		dst *float32
	}{
		{2, &f.Speed}, {3, &f.RPM}, {5, &f.Throttle}, {6, &f.Brake},
		{7, &f.DRS}, {8, &f.X}, {9, &f.Y}, {10, &f.Z},
	}
	for _, fl := range floats {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[fl.col]), 32)
		if err != nil {
			return f, fmt.Errorf("%s: %w", csvColumns[fl.col], err)
		}
		*fl.dst = float32(v)
	}
	return f, nil
}
