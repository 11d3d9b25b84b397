package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Field names of the four frames of a cycle, in emission order.
const (
	FieldElapsedTime   = "Elapsed_Time"
	FieldIgnitionState = "Ignition_State"
	FieldEngineRPM     = "EngineRPM"
	FieldVehicleSpeed  = "VehicleSpeed"
)

// FieldOrder is the fixed order of frames within a cycle.
var FieldOrder = [4]string{FieldElapsedTime, FieldIgnitionState, FieldEngineRPM, FieldVehicleSpeed}

const (
	uriPrefix       = "vehicle/"
	shortNameSuffix = "~sub"
	lineTerminator  = "\r\n"

	elapsedStep = 5
)

// ConnectionState is the set of counters owned by one streaming session.
// The zero value is the state before the first cycle.
type ConnectionState struct {
	ElapsedTime   float64
	IgnitionState float64
	EngineRPM     float64
	Temperature   float64

	// rpmDrawn is set once EngineRPM holds a random draw, which goes on
	// the wire as an integer.
	rpmDrawn bool
}

// Advance moves the counters to the next cycle. EngineRPM is redrawn
// uniformly from [0, ElapsedTime] after ElapsedTime has been stepped.
func (s *ConnectionState) Advance(rnd *rand.Rand) {
	s.ElapsedTime += elapsedStep
	s.IgnitionState++
	s.EngineRPM = float64(rnd.IntN(int(s.ElapsedTime) + 1))
	s.rpmDrawn = true
	s.Temperature++
}

// Frames renders the state as the four frames of one cycle, all stamped
// with ts. The VehicleSpeed frame reports the temperature counter; clients
// depend on that field name.
func (s ConnectionState) Frames(ts string) [4]Frame {
	rpm := formatValue(s.EngineRPM)
	if s.rpmDrawn {
		rpm = strconv.FormatInt(int64(s.EngineRPM), 10)
	}
	values := [4]string{formatValue(s.ElapsedTime), formatValue(s.IgnitionState), rpm, formatValue(s.Temperature)}

	var frames [4]Frame
	for i, field := range FieldOrder {
		frames[i] = Frame{
			Field:     field,
			URI:       uriPrefix + field,
			Timestamp: ts,
			Value:     values[i],
		}
	}
	return frames
}

// formatValue renders whole numbers with one decimal place ("5.0") and
// everything else in the shortest exact form.
func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Frame is one self-describing telemetry record.
type Frame struct {
	Field     string
	URI       string
	Timestamp string
	Value     string
}

func (f Frame) ShortName() string {
	return f.Field + shortNameSuffix
}

type sample struct {
	Timestamp string `json:"timestamp"`
	Value     string `json:"value"`
}

// MarshalJSON produces
//
//	{"data": {"<Field>": {"timestamp": T, "value": V}, "timestamp": T, "uri": U, "short_name": "<Field>~sub"}}
func (f Frame) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"data":{`)

	field, err := json.Marshal(f.Field)
	if err != nil {
		return nil, err
	}
	buf.Write(field)
	buf.WriteByte(':')
	inner, err := json.Marshal(sample{Timestamp: f.Timestamp, Value: f.Value})
	if err != nil {
		return nil, err
	}
	buf.Write(inner)

	for _, kv := range [][2]string{
		{"timestamp", f.Timestamp},
		{"uri", f.URI},
		{"short_name", f.ShortName()},
	} {
		v, err := json.Marshal(kv[1])
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"` + kv[0] + `":`)
		buf.Write(v)
	}

	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// Encode returns the frame as one CRLF-terminated line.
func (f Frame) Encode() ([]byte, error) {
	b, err := f.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return append(b, lineTerminator...), nil
}

// DecodeFrame parses one frame, with or without its line terminator.
func DecodeFrame(line []byte) (Frame, error) {
	var env struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(bytes.TrimRight(line, lineTerminator), &env); err != nil {
		return Frame{}, err
	}
	if env.Data == nil {
		return Frame{}, fmt.Errorf("frame has no data object")
	}

	var f Frame
	var shortName string
	for key, dst := range map[string]*string{"timestamp": &f.Timestamp, "uri": &f.URI, "short_name": &shortName} {
		raw, ok := env.Data[key]
		if !ok {
			return Frame{}, fmt.Errorf("frame is missing %q", key)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return Frame{}, fmt.Errorf("frame field %q: %w", key, err)
		}
	}

	if !strings.HasSuffix(shortName, shortNameSuffix) {
		return Frame{}, fmt.Errorf("unexpected short_name %q", shortName)
	}
	f.Field = strings.TrimSuffix(shortName, shortNameSuffix)

	raw, ok := env.Data[f.Field]
	if !ok {
		return Frame{}, fmt.Errorf("frame is missing the %q sample", f.Field)
	}
	var s sample
	if err := json.Unmarshal(raw, &s); err != nil {
		return Frame{}, fmt.Errorf("frame sample: %w", err)
	}
	if s.Timestamp != f.Timestamp {
		return Frame{}, fmt.Errorf("sample timestamp %q differs from frame timestamp %q", s.Timestamp, f.Timestamp)
	}
	f.Value = s.Value

	return f, nil
}
