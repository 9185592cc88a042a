package speaker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/hashicorp/go-hclog"
)

const (
	SoundStartup            = "startup"
	SoundShutdown           = "shutdown"
	SoundClientConnected    = "client_connected"
	SoundClientDisconnected = "client_disconnected"
	SoundHorn               = "horn"

	queueSize = 10
)

var ErrSoundNotFound = errors.New("sound not found")

var soundMap = map[string]string{
	SoundStartup:            "startup.wav",
	SoundShutdown:           "shutting_down.wav",
	SoundClientConnected:    "connected.wav",
	SoundClientDisconnected: "disconnected.wav",
	SoundHorn:               "horn.wav",
}

// Runner runs an external player to completion.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("error starting audio playback - %w", err)
	}
	err = cmd.Wait()
	if err != nil {
		return fmt.Errorf("error during audio playback - %w", err)
	}
	return nil
}

// Speaker plays short status sounds through aplay. Sounds are queued so callers on
// the control path never wait for playback.
type Speaker struct {
	cfg          config.SpeakerConfig
	logger       hclog.Logger
	soundChannel chan string
	run          Runner
}

func NewSpeaker(cfg config.SpeakerConfig, logger hclog.Logger) *Speaker {
	return &Speaker{
		cfg:          cfg,
		logger:       logger,
		soundChannel: make(chan string, queueSize),
		run:          execRunner,
	}
}

func (s *Speaker) WithRunner(run Runner) *Speaker {
	s.run = run
	return s
}

// Queue schedules a sound without blocking. Sounds are dropped when the queue is full.
func (s *Speaker) Queue(sound string) {
	select {
	case s.soundChannel <- sound:
	default:
		s.logger.Warn("speaker queue full, dropping sound", "sound", sound)
	}
}

// Start plays queued sounds one at a time until ctx is done.
func (s *Speaker) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("speaker done due to ctx")
			return nil
		case sound := <-s.soundChannel:
			err := s.Play(ctx, sound)
			if err != nil {
				s.logger.Warn("failed to play sound", "sound", sound, "error", err)
			}
		}
	}
}

func (s *Speaker) Play(ctx context.Context, sound string) error {
	if !s.cfg.Enabled {
		s.logger.Debug("speaker disabled, not playing sound", "sound", sound)
		return nil
	}

	soundFile, ok := soundMap[sound]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSoundNotFound, sound)
	}

	s.logger.Debug("start playing sound", "sound", sound)
	defer s.logger.Debug("finished playing sound", "sound", sound)

	args := []string{
		"-q",
		"-D", fmt.Sprintf("plughw:%s", s.cfg.Device),
		filepath.Join(s.cfg.SoundDir, soundFile),
	}
	return s.run(ctx, "aplay", args...)
}
