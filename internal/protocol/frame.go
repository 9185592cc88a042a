package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

type Kind uint8

const (
	KindButton    Kind = 0
	KindAxis      Kind = 1
	KindHat       Kind = 2
	KindTelemetry Kind = 3 //server to client only

	FrameSize = 4
	AxisScale = 1000
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindAxis:
		return "axis"
	case KindHat:
		return "hat"
	case KindTelemetry:
		return "telemetry"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Frame is one fixed size message from the controller client.
type Frame struct {
	Kind  Kind
	Index uint8
	Value int16
}

func ParseFrame(b [FrameSize]byte) Frame {
	return Frame{
		Kind:  Kind(b[0]),
		Index: b[1],
		Value: int16(binary.BigEndian.Uint16(b[2:4])),
	}
}

func (f Frame) Bytes() [FrameSize]byte {
	var b [FrameSize]byte
	b[0] = byte(f.Kind)
	b[1] = f.Index
	binary.BigEndian.PutUint16(b[2:4], uint16(f.Value))
	return b
}

func (f Frame) String() string {
	return fmt.Sprintf("%s[%d]=%d", f.Kind, f.Index, f.Value)
}

// EncodeAxis scales a normalized axis value by AxisScale, saturating at the int16 limits.
func EncodeAxis(index uint8, value float64) Frame {
	scaled := math.Round(value * AxisScale)
	if scaled > math.MaxInt16 {
		scaled = math.MaxInt16
	} else if scaled < math.MinInt16 {
		scaled = math.MinInt16
	}
	return Frame{Kind: KindAxis, Index: index, Value: int16(scaled)}
}

func EncodeButton(index uint8, pressed bool) Frame {
	frame := Frame{Kind: KindButton, Index: index}
	if pressed {
		frame.Value = 1
	}
	return frame
}

func EncodeHat(index uint8, x, y int) (Frame, error) {
	if x < -1 || x > 1 || y < -1 || y > 1 {
		return Frame{}, fmt.Errorf("hat values must be -1, 0 or 1 - got x: %d y: %d", x, y)
	}
	return Frame{Kind: KindHat, Index: index, Value: int16((x+1)*3 + (y + 1))}, nil
}
