package vehicle

import "errors"

// ServoGimbal is a pan servo with an optional tilt servo. Without tilt it acts as a
// single axis pan mount and tilt commands are ignored.
type ServoGimbal struct {
	pan  *PercentServo
	tilt *PercentServo
}

func NewServoGimbal(pan, tilt *PercentServo) *ServoGimbal {
	return &ServoGimbal{
		pan:  pan,
		tilt: tilt,
	}
}

func (g *ServoGimbal) Pan(percent float64) error {
	return g.pan.SetPercent(percent)
}

func (g *ServoGimbal) Tilt(percent float64) error {
	if g.tilt == nil {
		return nil
	}
	return g.tilt.SetPercent(percent)
}

func (g *ServoGimbal) Center() error {
	return errors.Join(g.Pan(0), g.Tilt(0))
}
