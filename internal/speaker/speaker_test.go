package speaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordRunner struct {
	lock  sync.Mutex
	calls [][]string
}

func (r *recordRunner) run(ctx context.Context, name string, args ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return nil
}

func (r *recordRunner) count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.calls)
}

func testSpeakerConfig(enabled bool) config.SpeakerConfig {
	return config.SpeakerConfig{
		Enabled:  enabled,
		Device:   "1",
		SoundDir: "/opt/gorrc/audio",
	}
}

func TestPlayBuildsAplayCommand(t *testing.T) {
	runner := &recordRunner{}
	s := NewSpeaker(testSpeakerConfig(true), hclog.NewNullLogger()).WithRunner(runner.run)

	require.NoError(t, s.Play(context.Background(), SoundClientConnected))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"aplay", "-q", "-D", "plughw:1", "/opt/gorrc/audio/connected.wav"}, runner.calls[0])
}

func TestPlayUnknownSound(t *testing.T) {
	s := NewSpeaker(testSpeakerConfig(true), hclog.NewNullLogger()).WithRunner((&recordRunner{}).run)
	assert.ErrorIs(t, s.Play(context.Background(), "fanfare"), ErrSoundNotFound)
}

func TestDisabledSpeakerIsSilent(t *testing.T) {
	runner := &recordRunner{}
	s := NewSpeaker(testSpeakerConfig(false), hclog.NewNullLogger()).WithRunner(runner.run)

	assert.NoError(t, s.Play(context.Background(), SoundHorn))
	assert.Zero(t, runner.count())
}

func TestQueueDropsWhenFull(t *testing.T) {
	s := NewSpeaker(testSpeakerConfig(true), hclog.NewNullLogger())
	for i := 0; i < queueSize+5; i++ {
		s.Queue(SoundHorn)
	}
	assert.Len(t, s.soundChannel, queueSize)
}

func TestStartPlaysQueuedSounds(t *testing.T) {
	runner := &recordRunner{}
	s := NewSpeaker(testSpeakerConfig(true), hclog.NewNullLogger()).WithRunner(runner.run)

	s.Queue(SoundStartup)
	s.Queue(SoundHorn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return runner.count() == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
