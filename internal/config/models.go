package config

import "time"

const (
	MaxSupportedServos = 16
	AppEnvBase         = "GORRC_"

	DefaultLogLevel = "info"

	// Default Server Options
	DefaultListenAddress = "0.0.0.0:9999"
	DefaultIdleTimeout   = 3 * time.Second

	// Default Control Loop Options
	DefaultControlPeriod       = 20 * time.Millisecond
	DefaultFailureReportTicks  = 50
	DefaultFinalNeutralEnabled = true

	// Default Command Options
	DefaultCommandDriver = "dryrun"
	DefaultAddress       = 0x40
	DefaultI2CDevice     = "/dev/i2c-1"

	DefaultMaxPulse = 2250 //2000
	DefaultMinPulse = 750  //1000
	DefaultInverted = false
	DefaultOffset   = 0

	// Default Chassis Options
	DefaultChassisType      = "single"
	DefaultSteerChannel     = "steer"
	DefaultSteerMinAngle    = -40.0
	DefaultSteerMaxAngle    = 40.0
	DefaultSteerZeroAngle   = 0.0
	DefaultSteerReverse     = false
	DefaultDriveChannel     = "esc"
	DefaultLeftChannel      = "left"
	DefaultRightChannel     = "right"
	DefaultMotorFactor      = 1.0
	DefaultLeftMotorFactor  = 1.0
	DefaultRightMotorFactor = -1.0

	// Default Gimbal Options
	DefaultGimbalEnabled  = true
	DefaultPanChannel     = "pan"
	DefaultTiltChannel    = "tilt"
	DefaultPanMinAngle    = -60.0
	DefaultPanMaxAngle    = 60.0
	DefaultTiltMinAngle   = -45.0
	DefaultTiltMaxAngle   = 45.0
	DefaultGimbalZero     = 0.0
	DefaultGimbalReverse  = false
	DefaultTiltEnabled    = true
	DefaultGimbalNudgePct = 5.0

	// Default Mapping Options
	DefaultMappingFile = ""
	DefaultDeadZone    = 0.05
	DefaultDriveAxis   = 4
	DefaultSteerAxis   = 3
	DefaultPanAxis     = 0
	DefaultTiltAxis    = 1

	// Default Telemetry Options
	DefaultTelemetryEnabled = true
	DefaultTelemetryRate    = 5.0
	DefaultNetInterface     = "wlan0"
	DefaultSysFSMount       = "/sys"
	DefaultProcFSMount      = "/proc"

	// Default Hub Options
	DefaultHubEnabled        = false
	DefaultHubServer         = "127.0.0.1:8181"
	DefaultRobotKey          = ""
	DefaultHubPassword       = ""
	DefaultHubHealthInterval = 30 * time.Second

	// Default Speaker Options
	DefaultSpeakerEnabled  = false
	DefaultSpeakerDevice   = "0"
	DefaultSpeakerVolume   = "1.0"
	DefaultSpeakerSoundDir = "./internal/speaker/audio"
)

type Config struct {
	LogLevel string

	ServerCfg    ServerConfig
	ControlCfg   ControlConfig
	CommandCfg   CommandConfig
	ChassisCfg   ChassisConfig
	GimbalCfg    GimbalConfig
	MappingCfg   MappingConfig
	TelemetryCfg TelemetryConfig
	HubCfg       HubConfig
	SpeakerCfg   SpeakerConfig
}

type ServerConfig struct {
	Address     string
	IdleTimeout time.Duration
}

type ControlConfig struct {
	Period             time.Duration
	FailureReportTicks int
	FinalNeutral       bool
}

type CommandConfig struct {
	CommandDriver string
	Address       byte
	I2CDevice     string
	ServoCfgs     []ServoConfig
}

type ServoConfig struct {
	Name     string
	Inverted bool
	Channel  int
	MaxPulse float64
	MinPulse float64
	Offset   int
}

// ChassisConfig selects the chassis composition and the command channels behind it.
type ChassisConfig struct {
	Type  string //single or differential
	Steer AngleServoConfig

	DriveChannel string
	DriveFactor  float64

	LeftChannel  string
	LeftFactor   float64
	RightChannel string
	RightFactor  float64
}

type AngleServoConfig struct {
	Channel   string
	MinAngle  float64
	MaxAngle  float64
	ZeroAngle float64
	Reverse   bool
}

type GimbalConfig struct {
	Enabled     bool
	Pan         AngleServoConfig
	TiltEnabled bool
	Tilt        AngleServoConfig
}

type MappingConfig struct {
	File     string              `yaml:"-"`
	Axes     []AxisMappingConfig `yaml:"axes"`
	Buttons  map[int]string      `yaml:"buttons"`
	Hats     map[int]string      `yaml:"hats"`
	NudgePct float64             `yaml:"nudge_pct"`
}

type AxisMappingConfig struct {
	Axis     int     `yaml:"axis"`
	Target   string  `yaml:"target"`
	Inverted bool    `yaml:"inverted"`
	DeadZone float64 `yaml:"deadzone"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

type TelemetryConfig struct {
	Enabled      bool
	RateHz       float64
	NetInterface string
	SysFSMount   string
	ProcFSMount  string
}

type HubConfig struct {
	Enabled        bool
	Server         string
	Key            string
	Password       string
	HealthInterval time.Duration
}

type SpeakerConfig struct {
	Enabled  bool
	Device   string
	Volume   string
	SoundDir string
}
