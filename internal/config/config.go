package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// GetConfig reads the whole app config from the environment. Values that fail to
// parse fall back to their defaults with a warning. A configured mapping file that
// cannot be loaded is an error.
func GetConfig() (Config, error) {
	mappingCfg, err := GetMappingConfig()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		LogLevel: GetStringEnv("LOGLEVEL", DefaultLogLevel),

		ServerCfg:    GetServerConfig(),
		ControlCfg:   GetControlConfig(),
		CommandCfg:   GetCommandConfig(),
		ChassisCfg:   GetChassisConfig(),
		GimbalCfg:    GetGimbalConfig(),
		MappingCfg:   mappingCfg,
		TelemetryCfg: GetTelemetryConfig(),
		HubCfg:       GetHubConfig(),
		SpeakerCfg:   GetSpeakerConfig(),
	}

	return cfg, nil
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address:     GetStringEnv("ADDRESS", DefaultListenAddress),
		IdleTimeout: GetDurationEnv("IDLETIMEOUT", DefaultIdleTimeout),
	}
}

func GetControlConfig() ControlConfig {
	return ControlConfig{
		Period:             GetDurationEnv("CONTROLPERIOD", DefaultControlPeriod),
		FailureReportTicks: GetIntEnv("FAILUREREPORTTICKS", DefaultFailureReportTicks),
		FinalNeutral:       GetBoolEnv("FINALNEUTRAL", DefaultFinalNeutralEnabled),
	}
}

func GetCommandConfig() CommandConfig {
	commandCfg := CommandConfig{
		CommandDriver: GetStringEnv("SERVODRIVER", DefaultCommandDriver),
		Address:       DefaultAddress,
		I2CDevice:     GetStringEnv("I2CDEVICE", DefaultI2CDevice),
		ServoCfgs:     make([]ServoConfig, 0, MaxSupportedServos),
	}

	for i := 0; i < MaxSupportedServos; i++ {
		envPrefix := fmt.Sprintf("SERVO%d_", i)
		servoCfg := ServoConfig{
			Name:     GetStringEnv(envPrefix+"NAME", ""),
			Channel:  GetIntEnv(envPrefix+"CHANNEL", i),
			MaxPulse: float64(GetIntEnv(envPrefix+"MAXPULSE", DefaultMaxPulse)),
			MinPulse: float64(GetIntEnv(envPrefix+"MINPULSE", DefaultMinPulse)),
			Inverted: GetBoolEnv(envPrefix+"INVERTED", DefaultInverted),
			Offset:   GetIntEnv(envPrefix+"MIDOFFSET", DefaultOffset),
		}

		if servoCfg.Name != "" {
			commandCfg.ServoCfgs = append(commandCfg.ServoCfgs, servoCfg)
		}
	}
	return commandCfg
}

func GetChassisConfig() ChassisConfig {
	envPrefix := "CHASSIS_"
	return ChassisConfig{
		Type: GetStringEnv(envPrefix+"TYPE", DefaultChassisType),
		Steer: AngleServoConfig{
			Channel:   GetStringEnv(envPrefix+"STEER_CHANNEL", DefaultSteerChannel),
			MinAngle:  GetFloatEnv(envPrefix+"STEER_MINANGLE", DefaultSteerMinAngle),
			MaxAngle:  GetFloatEnv(envPrefix+"STEER_MAXANGLE", DefaultSteerMaxAngle),
			ZeroAngle: GetFloatEnv(envPrefix+"STEER_ZEROANGLE", DefaultSteerZeroAngle),
			Reverse:   GetBoolEnv(envPrefix+"STEER_REVERSE", DefaultSteerReverse),
		},
		DriveChannel: GetStringEnv(envPrefix+"DRIVE_CHANNEL", DefaultDriveChannel),
		DriveFactor:  GetFloatEnv(envPrefix+"DRIVE_FACTOR", DefaultMotorFactor),
		LeftChannel:  GetStringEnv(envPrefix+"LEFT_CHANNEL", DefaultLeftChannel),
		LeftFactor:   GetFloatEnv(envPrefix+"LEFT_FACTOR", DefaultLeftMotorFactor),
		RightChannel: GetStringEnv(envPrefix+"RIGHT_CHANNEL", DefaultRightChannel),
		RightFactor:  GetFloatEnv(envPrefix+"RIGHT_FACTOR", DefaultRightMotorFactor),
	}
}

func GetGimbalConfig() GimbalConfig {
	envPrefix := "GIMBAL_"
	return GimbalConfig{
		Enabled: GetBoolEnv(envPrefix+"ENABLED", DefaultGimbalEnabled),
		Pan: AngleServoConfig{
			Channel:   GetStringEnv(envPrefix+"PAN_CHANNEL", DefaultPanChannel),
			MinAngle:  GetFloatEnv(envPrefix+"PAN_MINANGLE", DefaultPanMinAngle),
			MaxAngle:  GetFloatEnv(envPrefix+"PAN_MAXANGLE", DefaultPanMaxAngle),
			ZeroAngle: GetFloatEnv(envPrefix+"PAN_ZEROANGLE", DefaultGimbalZero),
			Reverse:   GetBoolEnv(envPrefix+"PAN_REVERSE", DefaultGimbalReverse),
		},
		TiltEnabled: GetBoolEnv(envPrefix+"TILT_ENABLED", DefaultTiltEnabled),
		Tilt: AngleServoConfig{
			Channel:   GetStringEnv(envPrefix+"TILT_CHANNEL", DefaultTiltChannel),
			MinAngle:  GetFloatEnv(envPrefix+"TILT_MINANGLE", DefaultTiltMinAngle),
			MaxAngle:  GetFloatEnv(envPrefix+"TILT_MAXANGLE", DefaultTiltMaxAngle),
			ZeroAngle: GetFloatEnv(envPrefix+"TILT_ZEROANGLE", DefaultGimbalZero),
			Reverse:   GetBoolEnv(envPrefix+"TILT_REVERSE", DefaultGimbalReverse),
		},
	}
}

// GetMappingConfig returns the built in controller layout, or the mapping file when
// one is configured. The file replaces the defaults entirely, so failing to load it
// is an error rather than a silent fallback to a different calibration.
func GetMappingConfig() (MappingConfig, error) {
	mappingCfg := DefaultMappingConfig()
	mappingCfg.File = GetStringEnv("MAPPINGFILE", DefaultMappingFile)
	mappingCfg.NudgePct = GetFloatEnv("NUDGEPCT", DefaultGimbalNudgePct)

	if mappingCfg.File == "" {
		return mappingCfg, nil
	}

	fileCfg, err := LoadMappingFile(mappingCfg.File)
	if err != nil {
		return MappingConfig{}, fmt.Errorf("failed loading mapping file %s: %w", mappingCfg.File, err)
	}
	fileCfg.File = mappingCfg.File
	if fileCfg.NudgePct == 0 {
		fileCfg.NudgePct = mappingCfg.NudgePct
	}
	return fileCfg, nil
}

func DefaultMappingConfig() MappingConfig {
	deadZone := GetFloatEnv("DEADZONE", DefaultDeadZone)
	return MappingConfig{
		Axes: []AxisMappingConfig{
			{
				Axis:     GetIntEnv("DRIVE_AXIS", DefaultDriveAxis),
				Target:   "drive",
				Inverted: GetBoolEnv("DRIVE_INVERTED", true), //stick forward reads negative
				DeadZone: deadZone,
				Min:      -100,
				Max:      100,
			},
			{
				Axis:     GetIntEnv("STEER_AXIS", DefaultSteerAxis),
				Target:   "steer",
				Inverted: GetBoolEnv("STEER_INVERTED", false),
				DeadZone: deadZone,
				Min:      -100,
				Max:      100,
			},
			{
				Axis:     GetIntEnv("PAN_AXIS", DefaultPanAxis),
				Target:   "pan",
				Inverted: GetBoolEnv("PAN_INVERTED", true),
				DeadZone: deadZone,
				Min:      -100,
				Max:      100,
			},
			{
				Axis:     GetIntEnv("TILT_AXIS", DefaultTiltAxis),
				Target:   "tilt",
				Inverted: GetBoolEnv("TILT_INVERTED", true),
				DeadZone: deadZone,
				Min:      -100,
				Max:      100,
			},
		},
		Buttons: map[int]string{
			1: "neutral",
			2: "camera_center",
		},
		Hats: map[int]string{
			0: "gimbal_nudge",
		},
		NudgePct: DefaultGimbalNudgePct,
	}
}

func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      GetBoolEnv("TELEMETRY_ENABLED", DefaultTelemetryEnabled),
		RateHz:       GetFloatEnv("TELEMETRY_RATE", DefaultTelemetryRate),
		NetInterface: GetStringEnv("TELEMETRY_INTERFACE", DefaultNetInterface),
		SysFSMount:   GetStringEnv("TELEMETRY_SYSFS", DefaultSysFSMount),
		ProcFSMount:  GetStringEnv("TELEMETRY_PROCFS", DefaultProcFSMount),
	}
}

func GetHubConfig() HubConfig {
	return HubConfig{
		Enabled:        GetBoolEnv("HUB_ENABLED", DefaultHubEnabled),
		Server:         GetStringEnv("HUB_SERVER", DefaultHubServer),
		Key:            GetStringEnv("ROBOTKEY", DefaultRobotKey),
		Password:       GetStringEnv("ROBOTPASSWORD", DefaultHubPassword),
		HealthInterval: GetDurationEnv("HUB_HEALTHINTERVAL", DefaultHubHealthInterval),
	}
}

func GetSpeakerConfig() SpeakerConfig {
	return SpeakerConfig{
		Enabled:  GetBoolEnv("SPEAKERENABLED", DefaultSpeakerEnabled),
		Device:   GetStringEnv("SPEAKERDEVICE", DefaultSpeakerDevice),
		Volume:   GetStringEnv("SPEAKERVOLUME", DefaultSpeakerVolume),
		SoundDir: GetStringEnv("SPEAKERSOUNDDIR", DefaultSpeakerSoundDir),
	}
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 10, 32)
		if err != nil {
			hclog.Default().Warn("config value not parsed, using default", "env", AppEnvBase+env, "error", err)
			return defaultValue
		} else {
			return int(value)
		}
	}
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
		if err != nil {
			hclog.Default().Warn("config value not parsed, using default", "env", AppEnvBase+env, "error", err)
			return defaultValue
		} else {
			return value
		}
	}
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		return strings.Trim(envValue, "\r")
	}
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseFloat(strings.Trim(envValue, "\r"), 64)
		if err != nil {
			hclog.Default().Warn("config value not parsed, using default", "env", AppEnvBase+env, "error", err)
			return defaultValue
		}
		return value
	}
}

// GetDurationEnv accepts Go duration strings (500ms, 3s) or a bare number of milliseconds.
func GetDurationEnv(env string, defaultValue time.Duration) time.Duration {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}

	envValue = strings.Trim(envValue, "\r")
	if millis, err := strconv.ParseInt(envValue, 10, 64); err == nil {
		return time.Duration(millis) * time.Millisecond
	}

	value, err := time.ParseDuration(envValue)
	if err != nil {
		hclog.Default().Warn("config value not parsed, using default", "env", AppEnvBase+env, "error", err)
		return defaultValue
	}
	return value
}
