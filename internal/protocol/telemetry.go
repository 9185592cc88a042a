package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TelemetryFrameSize is the kind byte followed by six big endian float32 values.
const TelemetryFrameSize = 1 + 6*4

type Telemetry struct {
	Speed    float32
	Steering float32
	Pan      float32
	Tilt     float32
	BatteryV float32
	CPUTemp  float32
}

func EncodeTelemetry(t Telemetry) []byte {
	buf := make([]byte, TelemetryFrameSize)
	buf[0] = byte(KindTelemetry)
	values := []float32{t.Speed, t.Steering, t.Pan, t.Tilt, t.BatteryV, t.CPUTemp}
	for i, v := range values {
		binary.BigEndian.PutUint32(buf[1+i*4:], math.Float32bits(v))
	}
	return buf
}

func DecodeTelemetry(buf []byte) (Telemetry, error) {
	if len(buf) != TelemetryFrameSize {
		return Telemetry{}, fmt.Errorf("telemetry frame must be %d bytes - got %d", TelemetryFrameSize, len(buf))
	}
	if Kind(buf[0]) != KindTelemetry {
		return Telemetry{}, fmt.Errorf("not a telemetry frame: kind %s", Kind(buf[0]))
	}

	values := make([]float32, 6)
	for i := range values {
		values[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[1+i*4:]))
	}
	return Telemetry{
		Speed:    values[0],
		Steering: values[1],
		Pan:      values[2],
		Tilt:     values[3],
		BatteryV: values[4],
		CPUTemp:  values[5],
	}, nil
}
