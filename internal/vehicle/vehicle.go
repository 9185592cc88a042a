package vehicle

import (
	"errors"
	"fmt"
)

const (
	MaxPercent = 100.0
	MinPercent = -100.0
)

var ErrInvalidServoLimits = errors.New("invalid servo limits")

// Actuator is anything driven by a signed speed, such as a motor or esc.
type Actuator interface {
	SetSpeed(percent float64) error
}

// Servo is anything positioned by angle.
type Servo interface {
	SetAngle(degrees float64) error
}

// Chassis combines forward/reverse drive with steering. Positive drive is forward,
// positive steer turns right.
type Chassis interface {
	Drive(percent float64) error
	Steer(percent float64) error
	Stop() error
}

// GimbalControl is the pan/tilt camera mount. Positive pan is right, positive tilt is up.
type GimbalControl interface {
	Pan(percent float64) error
	Tilt(percent float64) error
	Center() error
}

func clampPercent(percent float64) float64 {
	if percent > MaxPercent {
		return MaxPercent
	} else if percent < MinPercent {
		return MinPercent
	}
	return percent
}

// PercentServo positions a servo by percent of its travel around a calibrated zero angle.
type PercentServo struct {
	servo     Servo
	minAngle  float64
	maxAngle  float64
	zeroAngle float64
	reverse   bool
}

func NewPercentServo(servo Servo, minAngle, maxAngle, zeroAngle float64, reverse bool) (*PercentServo, error) {
	if minAngle >= maxAngle {
		return nil, fmt.Errorf("%w: min angle %.1f must be less than max angle %.1f", ErrInvalidServoLimits, minAngle, maxAngle)
	}
	if zeroAngle < minAngle || zeroAngle > maxAngle {
		return nil, fmt.Errorf("%w: zero angle %.1f must be between %.1f and %.1f", ErrInvalidServoLimits, zeroAngle, minAngle, maxAngle)
	}
	return &PercentServo{
		servo:     servo,
		minAngle:  minAngle,
		maxAngle:  maxAngle,
		zeroAngle: zeroAngle,
		reverse:   reverse,
	}, nil
}

// Angle converts percent to the angle sent to the servo. The result never leaves
// [minAngle, maxAngle] even when zero is off center.
func (p *PercentServo) Angle(percent float64) float64 {
	percent = clampPercent(percent)
	if p.reverse {
		percent = -percent
	}

	halfRange := (p.maxAngle - p.minAngle) / 2.0
	angle := p.zeroAngle + (percent/MaxPercent)*halfRange
	if angle > p.maxAngle {
		return p.maxAngle
	} else if angle < p.minAngle {
		return p.minAngle
	}
	return angle
}

func (p *PercentServo) SetPercent(percent float64) error {
	return p.servo.SetAngle(p.Angle(percent))
}
