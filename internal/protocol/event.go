package protocol

// Event is the typed form of a controller frame: ButtonEvent, AxisEvent or HatEvent.
type Event interface {
	event()
}

type ButtonEvent struct {
	Index   uint8
	Pressed bool
}

type AxisEvent struct {
	Index uint8
	Value float64 //[-1.0, 1.0]
}

type HatEvent struct {
	Index uint8
	X     int
	Y     int
}

func (ButtonEvent) event() {}
func (AxisEvent) event()   {}
func (HatEvent) event()    {}

// Interpret converts a frame into an event. Frames of unknown kind report ok=false
// and must be dropped by the caller; they are never an error.
func Interpret(frame Frame) (Event, bool) {
	switch frame.Kind {
	case KindButton:
		return ButtonEvent{Index: frame.Index, Pressed: frame.Value != 0}, true
	case KindAxis:
		return AxisEvent{Index: frame.Index, Value: axisValue(frame.Value)}, true
	case KindHat:
		x, y := hatValue(frame.Value)
		return HatEvent{Index: frame.Index, X: x, Y: y}, true
	default:
		return nil, false
	}
}

func axisValue(raw int16) float64 {
	value := float64(raw) / AxisScale
	if value > 1.0 {
		return 1.0
	} else if value < -1.0 {
		return -1.0
	}
	return value
}

// hatValue decodes (x+1)*3+(y+1). Codes outside 0..8 clamp to the nearest end.
func hatValue(raw int16) (int, int) {
	v := min(max(int(raw), 0), 8)
	return v/3 - 1, v%3 - 1
}
