package updater

import (
	"errors"
	"fmt"
	"math"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/drivestate"
	"github.com/Speshl/gorrc_robot/internal/protocol"
	"github.com/hashicorp/go-hclog"
)

const (
	ActionNeutral      = "neutral"
	ActionCameraCenter = "camera_center"
	ActionDriveStop    = "drive_stop"

	HatActionGimbalPoint = "gimbal_point"
	HatActionGimbalNudge = "gimbal_nudge"
)

var ErrUnknownAction = errors.New("unknown action")

// Action is a discrete button action. It may change state or trigger something
// outside of it, like a sound.
type Action func(state *drivestate.State)

// HatAction receives the hat position, each of x and y in {-1, 0, 1}.
type HatAction func(state *drivestate.State, x, y int)

type AxisMapping struct {
	Axis     uint8
	Target   drivestate.Field
	Inverted bool
	DeadZone float64
	Min      float64
	Max      float64
}

// Percent maps a normalized axis value onto the target percentage. Values inside
// the deadzone are 0 and the rest of the travel is rescaled so the output starts
// at 0 on the deadzone edge.
func (m AxisMapping) Percent(value float64) float64 {
	if m.Inverted {
		value = -value
	}

	magnitude := math.Abs(value)
	if magnitude < m.DeadZone || magnitude == 0 {
		return 0
	}
	if magnitude > 1.0 {
		magnitude = 1.0
	}

	scaled := (magnitude - m.DeadZone) / (1.0 - m.DeadZone)
	if value > 0 {
		return scaled * m.Max
	}
	return -scaled * math.Abs(m.Min)
}

type Option func(*Updater)

// WithAction adds or replaces a named button action.
func WithAction(name string, action Action) Option {
	return func(u *Updater) {
		u.actions[name] = action
	}
}

// Updater applies controller events to the desired drive state. It holds no state
// of its own besides the read only mapping tables.
type Updater struct {
	state  *drivestate.State
	logger hclog.Logger

	axes    map[uint8][]AxisMapping
	buttons map[uint8]Action
	hats    map[uint8]HatAction

	actions    map[string]Action
	hatActions map[string]HatAction
}

func New(cfg config.MappingConfig, state *drivestate.State, logger hclog.Logger, opts ...Option) (*Updater, error) {
	u := &Updater{
		state:      state,
		logger:     logger,
		axes:       make(map[uint8][]AxisMapping, len(cfg.Axes)),
		buttons:    make(map[uint8]Action, len(cfg.Buttons)),
		hats:       make(map[uint8]HatAction, len(cfg.Hats)),
		actions:    builtinActions(),
		hatActions: builtinHatActions(cfg.NudgePct),
	}

	for _, opt := range opts {
		opt(u)
	}

	for i, axisCfg := range cfg.Axes {
		mapping, err := axisMapping(axisCfg)
		if err != nil {
			return nil, fmt.Errorf("axis mapping %d: %w", i, err)
		}
		u.axes[mapping.Axis] = append(u.axes[mapping.Axis], mapping)
	}

	for index, name := range cfg.Buttons {
		if index < 0 || index > math.MaxUint8 {
			return nil, fmt.Errorf("button index %d out of range", index)
		}
		action, ok := u.actions[name]
		if !ok {
			return nil, fmt.Errorf("button %d: %w: %s", index, ErrUnknownAction, name)
		}
		u.buttons[uint8(index)] = action
	}

	for index, name := range cfg.Hats {
		if index < 0 || index > math.MaxUint8 {
			return nil, fmt.Errorf("hat index %d out of range", index)
		}
		action, ok := u.hatActions[name]
		if !ok {
			return nil, fmt.Errorf("hat %d: %w: %s", index, ErrUnknownAction, name)
		}
		u.hats[uint8(index)] = action
	}

	return u, nil
}

func axisMapping(cfg config.AxisMappingConfig) (AxisMapping, error) {
	if cfg.Axis < 0 || cfg.Axis > math.MaxUint8 {
		return AxisMapping{}, fmt.Errorf("axis %d out of range", cfg.Axis)
	}
	if cfg.DeadZone < 0 || cfg.DeadZone >= 1 {
		return AxisMapping{}, fmt.Errorf("deadzone %.3f outside [0, 1)", cfg.DeadZone)
	}
	target, err := drivestate.ParseField(cfg.Target)
	if err != nil {
		return AxisMapping{}, err
	}

	mapping := AxisMapping{
		Axis:     uint8(cfg.Axis),
		Target:   target,
		Inverted: cfg.Inverted,
		DeadZone: cfg.DeadZone,
		Min:      cfg.Min,
		Max:      cfg.Max,
	}
	if mapping.Min == 0 && mapping.Max == 0 {
		mapping.Min = drivestate.MinPercent
		mapping.Max = drivestate.MaxPercent
	}
	return mapping, nil
}

// HandleFrame interprets and applies one frame. Frames of unknown kind are dropped.
func (u *Updater) HandleFrame(frame protocol.Frame) {
	event, ok := protocol.Interpret(frame)
	if !ok {
		u.logger.Trace("dropping frame of unknown kind", "frame", frame.String())
		return
	}
	u.Handle(event)
}

func (u *Updater) Handle(event protocol.Event) {
	switch e := event.(type) {
	case protocol.AxisEvent:
		for _, mapping := range u.axes[e.Index] {
			u.state.Set(mapping.Target, mapping.Percent(e.Value))
		}
	case protocol.ButtonEvent:
		if !e.Pressed {
			return
		}
		action, ok := u.buttons[e.Index]
		if !ok {
			return
		}
		u.logger.Debug("button action", "button", e.Index)
		action(u.state)
	case protocol.HatEvent:
		action, ok := u.hats[e.Index]
		if !ok {
			return
		}
		action(u.state, e.X, e.Y)
	}
}

func builtinActions() map[string]Action {
	return map[string]Action{
		ActionNeutral: func(state *drivestate.State) {
			state.Reset()
		},
		ActionCameraCenter: func(state *drivestate.State) {
			state.Apply(func(u drivestate.Update) {
				u.Set(drivestate.Pan, 0)
				u.Set(drivestate.Tilt, 0)
			})
		},
		ActionDriveStop: func(state *drivestate.State) {
			state.Set(drivestate.Drive, 0)
		},
	}
}

func builtinHatActions(nudgePct float64) map[string]HatAction {
	return map[string]HatAction{
		HatActionGimbalPoint: func(state *drivestate.State, x, y int) {
			state.Apply(func(u drivestate.Update) {
				u.Set(drivestate.Pan, float64(x)*drivestate.MaxPercent)
				u.Set(drivestate.Tilt, float64(y)*drivestate.MaxPercent)
			})
		},
		HatActionGimbalNudge: func(state *drivestate.State, x, y int) {
			if x == 0 && y == 0 {
				return
			}
			state.Apply(func(u drivestate.Update) {
				u.Set(drivestate.Pan, u.Get(drivestate.Pan)+float64(x)*nudgePct)
				u.Set(drivestate.Tilt, u.Get(drivestate.Tilt)+float64(y)*nudgePct)
			})
		},
	}
}
