package command

import "fmt"

// DriverCommand sets one named output channel. Value is interpreted inside [Min, Max]
// and mapped onto the channel's own output range by the driver.
type DriverCommand struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

type Driver interface {
	Init() error
	Set(DriverCommand) error
	SetMany([]DriverCommand) error
	CenterAll()
	Stop() error
}

// ErrUnknownChannel is returned when a command names a channel the driver was not configured with.
type ErrUnknownChannel struct {
	Name string
}

func (e ErrUnknownChannel) Error() string {
	return fmt.Sprintf("unknown output channel: %s", e.Name)
}

func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}

// SetEach applies cmds in order with set, stopping at the first failure.
func SetEach(cmds []DriverCommand, set func(DriverCommand) error) error {
	for i := range cmds {
		err := set(cmds[i])
		if err != nil {
			return err
		}
	}
	return nil
}
