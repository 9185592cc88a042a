package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/drivestate"
	"github.com/Speshl/gorrc_robot/internal/protocol"
	"github.com/Speshl/gorrc_robot/internal/server"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
)

type Snapshotter interface {
	Snapshot() drivestate.Snapshot
}

// Sender delivers an encoded telemetry frame to the connected controller.
type Sender interface {
	SendTelemetry([]byte) error
}

// Sample is one reading of the robot's state and host health.
type Sample struct {
	Drive    drivestate.Snapshot
	CPUTempC float64
	BatteryV float64

	Interface string
	Network   procfs.NetDevLine
}

func (s Sample) Frame() protocol.Telemetry {
	return protocol.Telemetry{
		Speed:    float32(s.Drive.DrivePct),
		Steering: float32(s.Drive.SteerPct),
		Pan:      float32(s.Drive.PanPct),
		Tilt:     float32(s.Drive.TiltPct),
		BatteryV: float32(s.BatteryV),
		CPUTemp:  float32(s.CPUTempC),
	}
}

// Sampler reads drive state plus host stats from procfs and sysfs. Host stats that
// cannot be read are left at zero and reported as an error alongside the sample.
type Sampler struct {
	state Snapshotter
	iface string
	proc  procfs.FS
	sys   sysfs.FS
}

func NewSampler(cfg config.TelemetryConfig, state Snapshotter) (*Sampler, error) {
	proc, err := procfs.NewFS(cfg.ProcFSMount)
	if err != nil {
		return nil, fmt.Errorf("failed opening procfs %s: %w", cfg.ProcFSMount, err)
	}
	sys, err := sysfs.NewFS(cfg.SysFSMount)
	if err != nil {
		return nil, fmt.Errorf("failed opening sysfs %s: %w", cfg.SysFSMount, err)
	}
	return &Sampler{
		state: state,
		iface: cfg.NetInterface,
		proc:  proc,
		sys:   sys,
	}, nil
}

func (s *Sampler) Sample() (Sample, error) {
	sample := Sample{
		Drive:     s.state.Snapshot(),
		Interface: s.iface,
	}

	temp, tempErr := s.cpuTemp()
	sample.CPUTempC = temp

	netLine, netErr := s.netDev()
	sample.Network = netLine

	return sample, errors.Join(tempErr, netErr)
}

// cpuTemp prefers a thermal zone whose type names the cpu, falling back to the first zone.
func (s *Sampler) cpuTemp() (float64, error) {
	zones, err := s.sys.ClassThermalZoneStats()
	if err != nil {
		return 0, fmt.Errorf("failed reading thermal zones: %w", err)
	}
	if len(zones) == 0 {
		return 0, errors.New("no thermal zones found")
	}

	zone := zones[0]
	for i := range zones {
		if strings.Contains(strings.ToLower(zones[i].Type), "cpu") {
			zone = zones[i]
			break
		}
	}
	return float64(zone.Temp) / 1000.0, nil
}

func (s *Sampler) netDev() (procfs.NetDevLine, error) {
	netDev, err := s.proc.NetDev()
	if err != nil {
		return procfs.NetDevLine{}, fmt.Errorf("failed getting netstat: %w", err)
	}
	line, ok := netDev[s.iface]
	if !ok {
		return procfs.NetDevLine{}, fmt.Errorf("failed getting %s stats: not found", s.iface)
	}
	return line, nil
}

type SampleSource interface {
	Sample() (Sample, error)
}

// Streamer pushes telemetry frames to the controller at a fixed rate while a
// session is active.
type Streamer struct {
	logger hclog.Logger
	source SampleSource
	sender Sender
	period time.Duration

	warned bool
}

func NewStreamer(cfg config.TelemetryConfig, source SampleSource, sender Sender, logger hclog.Logger) *Streamer {
	rate := cfg.RateHz
	if rate <= 0 {
		rate = config.DefaultTelemetryRate
	}
	return &Streamer{
		logger: logger,
		source: source,
		sender: sender,
		period: time.Duration(float64(time.Second) / rate),
	}
}

func (s *Streamer) Start(ctx context.Context) error {
	s.logger.Info("starting telemetry", "period", s.period.String())
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("telemetry stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Send()
		}
	}
}

// Send samples once and writes the frame. Host stat errors are logged once and do
// not hold back the frame.
func (s *Streamer) Send() {
	sample, err := s.source.Sample()
	if err != nil && !s.warned {
		s.logger.Warn("telemetry sample incomplete", "error", err)
		s.warned = true
	}

	err = s.sender.SendTelemetry(protocol.EncodeTelemetry(sample.Frame()))
	if err != nil && !errors.Is(err, server.ErrNoSession) {
		s.logger.Debug("failed sending telemetry", "error", err)
	}
}
