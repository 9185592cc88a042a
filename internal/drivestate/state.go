package drivestate

import (
	"fmt"
	"strings"
	"sync"
)

const (
	MaxPercent = 100.0
	MinPercent = -100.0
)

type Field int

const (
	Drive Field = iota
	Steer
	Pan
	Tilt
)

var fieldNames = map[Field]string{
	Drive: "drive",
	Steer: "steer",
	Pan:   "pan",
	Tilt:  "tilt",
}

func (f Field) String() string {
	name, ok := fieldNames[f]
	if !ok {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return name
}

func ParseField(name string) (Field, error) {
	for field, fieldName := range fieldNames {
		if strings.EqualFold(strings.TrimSpace(name), fieldName) {
			return field, nil
		}
	}
	return 0, fmt.Errorf("unknown drive state field: %q", name)
}

// Snapshot is a consistent copy of every desired actuator intent, in percent.
type Snapshot struct {
	DrivePct float64
	SteerPct float64
	PanPct   float64
	TiltPct  float64

	Version uint64
}

func (s Snapshot) Get(field Field) float64 {
	switch field {
	case Drive:
		return s.DrivePct
	case Steer:
		return s.SteerPct
	case Pan:
		return s.PanPct
	case Tilt:
		return s.TiltPct
	}
	return 0
}

func (s *Snapshot) set(field Field, percent float64) {
	switch field {
	case Drive:
		s.DrivePct = percent
	case Steer:
		s.SteerPct = percent
	case Pan:
		s.PanPct = percent
	case Tilt:
		s.TiltPct = percent
	}
}

// IsNeutral reports whether every field is zero.
func (s Snapshot) IsNeutral() bool {
	return s.DrivePct == 0 && s.SteerPct == 0 && s.PanPct == 0 && s.TiltPct == 0
}

// Update is the mutable view handed to Apply.
type Update struct {
	snap *Snapshot
}

func (u Update) Get(field Field) float64 {
	return u.snap.Get(field)
}

func (u Update) Set(field Field, percent float64) {
	u.snap.set(field, ClampPercent(percent))
}

// State is the desired drive state shared between the session reader and the
// control loop. It is neutral when created.
type State struct {
	lock sync.RWMutex
	snap Snapshot
}

func New() *State {
	return &State{}
}

func (s *State) Set(field Field, percent float64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.snap.set(field, ClampPercent(percent))
	s.snap.Version++
}

// Apply runs fn under the write lock so every field it sets becomes visible to
// readers together. fn must not block.
func (s *State) Apply(fn func(Update)) {
	s.lock.Lock()
	defer s.lock.Unlock()

	fn(Update{snap: &s.snap})
	s.snap.Version++
}

func (s *State) Snapshot() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap
}

// Reset forces every field back to neutral.
func (s *State) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()

	version := s.snap.Version + 1
	s.snap = Snapshot{Version: version}
}

func ClampPercent(value float64) float64 {
	if value > MaxPercent {
		return MaxPercent
	} else if value < MinPercent {
		return MinPercent
	} else if value != value { //NaN
		return 0
	}
	return value
}
