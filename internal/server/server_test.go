package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/drivestate"
	"github.com/Speshl/gorrc_robot/internal/protocol"
	"github.com/Speshl/gorrc_robot/internal/updater"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type endRecorder struct {
	lock    sync.Mutex
	started []SessionInfo
	reasons []EndReason
	neutral []bool
}

func (e *endRecorder) ends() []EndReason {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]EndReason{}, e.reasons...)
}

type harness struct {
	server *Server
	state  *drivestate.State
	ends   *endRecorder
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, idle time.Duration) *harness {
	t.Helper()

	state := drivestate.New()
	mapping := config.MappingConfig{
		Axes: []config.AxisMappingConfig{
			{Axis: 1, Target: "drive"},
			{Axis: 3, Target: "steer"},
		},
	}
	u, err := updater.New(mapping, state, hclog.NewNullLogger())
	require.NoError(t, err)

	rec := &endRecorder{}
	srv := NewServer(
		config.ServerConfig{Address: "127.0.0.1:0", IdleTimeout: idle},
		u,
		state,
		hclog.NewNullLogger(),
		OnSessionStart(func(info SessionInfo) {
			rec.lock.Lock()
			defer rec.lock.Unlock()
			rec.started = append(rec.started, info)
		}),
		OnSessionEnd(func(info SessionInfo, reason EndReason) {
			rec.lock.Lock()
			defer rec.lock.Unlock()
			rec.reasons = append(rec.reasons, reason)
			rec.neutral = append(rec.neutral, state.Snapshot().IsNeutral())
		}),
	)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	h := &harness{server: srv, state: state, ends: rec, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) dial(t *testing.T) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", h.server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *harness) waitStatus(t *testing.T, status Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.server.Status() == status
	}, waitFor, tick)
}

func writeFrames(t *testing.T, conn net.Conn, frames ...protocol.Frame) {
	t.Helper()
	for _, f := range frames {
		b := f.Bytes()
		_, err := conn.Write(b[:])
		require.NoError(t, err)
	}
}

func TestSessionAppliesFramesAndResetsOnClose(t *testing.T) {
	h := startServer(t, time.Second)
	conn := h.dial(t)
	h.waitStatus(t, Connected)

	writeFrames(t, conn, protocol.EncodeAxis(1, 0.5), protocol.EncodeAxis(3, -0.25))
	require.Eventually(t, func() bool {
		snap := h.state.Snapshot()
		return snap.DrivePct == 50 && snap.SteerPct == -25
	}, waitFor, tick)

	require.NoError(t, conn.Close())
	h.waitStatus(t, Listening)

	assert.True(t, h.state.Snapshot().IsNeutral())
	assert.Equal(t, []EndReason{EndClosed}, h.ends.ends())
	h.ends.lock.Lock()
	assert.Equal(t, []bool{true}, h.ends.neutral)
	assert.Len(t, h.ends.started, 1)
	h.ends.lock.Unlock()
}

func TestFramesSplitAcrossWrites(t *testing.T) {
	h := startServer(t, time.Second)
	conn := h.dial(t)

	_, err := conn.Write([]byte{0x01, 0x01})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = conn.Write([]byte{0x00, 0xA1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.state.Snapshot().DrivePct > 16 && h.state.Snapshot().DrivePct < 16.2
	}, waitFor, tick)
}

func TestIdleTimeoutResetsState(t *testing.T) {
	h := startServer(t, 100*time.Millisecond)
	conn := h.dial(t)

	writeFrames(t, conn, protocol.EncodeAxis(1, 1.0))
	require.Eventually(t, func() bool {
		return h.state.Snapshot().DrivePct == 100
	}, waitFor, tick)

	h.waitStatus(t, Listening)
	assert.True(t, h.state.Snapshot().IsNeutral())
	assert.Equal(t, []EndReason{EndIdleTimeout}, h.ends.ends())

	// The server closed its side.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

// Bytes trickling in slower than one frame per timeout must not keep a session alive.
func TestIdleTimeoutCountsWholeFrames(t *testing.T) {
	h := startServer(t, 300*time.Millisecond)
	conn := h.dial(t)

	writeFrames(t, conn, protocol.EncodeAxis(1, 0.6))
	require.Eventually(t, func() bool {
		return h.state.Snapshot().DrivePct == 60
	}, waitFor, tick)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		b := protocol.EncodeAxis(1, 0.9).Bytes()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-time.After(200 * time.Millisecond):
			}
			_, err := conn.Write(b[i%protocol.FrameSize : i%protocol.FrameSize+1])
			if err != nil {
				return
			}
		}
	}()

	h.waitStatus(t, Listening)
	assert.True(t, h.state.Snapshot().IsNeutral())
	assert.Equal(t, []EndReason{EndIdleTimeout}, h.ends.ends())
}

func TestSecondConnectionRefused(t *testing.T) {
	h := startServer(t, time.Second)
	first := h.dial(t)
	h.waitStatus(t, Connected)
	active, ok := h.server.Session()
	require.True(t, ok)

	second := h.dial(t)
	require.NoError(t, second.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	writeFrames(t, first, protocol.EncodeAxis(1, 0.3))
	require.Eventually(t, func() bool {
		return h.state.Snapshot().DrivePct == 30
	}, waitFor, tick)

	stillActive, ok := h.server.Session()
	require.True(t, ok)
	assert.Equal(t, active.ID, stillActive.ID)
}

func TestReconnectStartsFromNeutral(t *testing.T) {
	h := startServer(t, time.Second)
	first := h.dial(t)
	writeFrames(t, first, protocol.EncodeAxis(1, 0.8))
	require.Eventually(t, func() bool {
		return h.state.Snapshot().DrivePct == 80
	}, waitFor, tick)
	firstInfo, ok := h.server.Session()
	require.True(t, ok)
	first.Close()
	h.waitStatus(t, Listening)

	h.dial(t)
	h.waitStatus(t, Connected)
	secondInfo, ok := h.server.Session()
	require.True(t, ok)
	assert.NotEqual(t, firstInfo.ID, secondInfo.ID)
	assert.True(t, h.state.Snapshot().IsNeutral())
}

func TestSendTelemetry(t *testing.T) {
	h := startServer(t, time.Second)
	assert.ErrorIs(t, h.server.SendTelemetry([]byte{0x03}), ErrNoSession)

	conn := h.dial(t)
	h.waitStatus(t, Connected)

	payload := protocol.EncodeTelemetry(protocol.Telemetry{Speed: 12.5, CPUTemp: 48})
	require.NoError(t, h.server.SendTelemetry(payload))

	buf := make([]byte, protocol.TelemetryFrameSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)

	telemetry, err := protocol.DecodeTelemetry(buf)
	require.NoError(t, err)
	assert.Equal(t, float32(12.5), telemetry.Speed)
	assert.Equal(t, float32(48), telemetry.CPUTemp)
}

func TestShutdownEndsSession(t *testing.T) {
	h := startServer(t, time.Second)
	conn := h.dial(t)
	writeFrames(t, conn, protocol.EncodeAxis(1, 0.4))
	require.Eventually(t, func() bool {
		return h.state.Snapshot().DrivePct == 40
	}, waitFor, tick)

	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(waitFor):
		t.Fatal("serve did not return")
	}

	assert.Equal(t, Stopped, h.server.Status())
	assert.True(t, h.state.Snapshot().IsNeutral())
	assert.Equal(t, []EndReason{EndShutdown}, h.ends.ends())
	assert.ErrorIs(t, h.server.Listen(), ErrServerStopped)
}

func TestListenFailsWhenAddressInUse(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	srv := NewServer(config.ServerConfig{Address: taken.Addr().String()}, nil, drivestate.New(), hclog.NewNullLogger())
	assert.Error(t, srv.Listen())
	assert.ErrorIs(t, srv.Serve(context.Background()), ErrNotListening)
}
