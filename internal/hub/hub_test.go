package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/models"
	"github.com/Speshl/gorrc_robot/internal/server"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event string
	msg   string
}

type fakeClient struct {
	lock       sync.Mutex
	handlers   map[string]interface{}
	emits      []emitted
	connectErr error
	connected  bool
	closed     bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: map[string]interface{}{}}
}

func (f *fakeClient) OnEvent(event string, h interface{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.handlers[event] = h
}

func (f *fakeClient) Emit(event string, args ...interface{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	msg, _ := args[0].(string)
	f.emits = append(f.emits, emitted{event: event, msg: msg})
}

func (f *fakeClient) Connect() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.connected = f.connectErr == nil
	return f.connectErr
}

func (f *fakeClient) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) events() []emitted {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]emitted{}, f.emits...)
}

func testHubConfig() config.HubConfig {
	return config.HubConfig{
		Enabled:        true,
		Server:         "127.0.0.1:8181",
		Key:            "robot-key",
		Password:       "secret",
		HealthInterval: 10 * time.Millisecond,
	}
}

func healthy() HealthSource {
	return HealthFunc(func() models.Health {
		return models.Health{Status: "healthy", Ticks: 42}
	})
}

func TestRegisterHandlersConnects(t *testing.T) {
	client := newFakeClient()
	reporter := NewReporter(testHubConfig(), client, healthy(), hclog.NewNullLogger())

	require.NoError(t, reporter.RegisterHandlers())
	assert.True(t, client.connected)
	assert.Contains(t, client.handlers, models.EventRegisterSuccess)

	failing := newFakeClient()
	failing.connectErr = errors.New("refused")
	reporter = NewReporter(testHubConfig(), failing, healthy(), hclog.NewNullLogger())
	assert.Error(t, reporter.RegisterHandlers())
}

func TestStartAnnouncesAndReportsHealth(t *testing.T) {
	client := newFakeClient()
	reporter := NewReporter(testHubConfig(), client, healthy(), hclog.NewNullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- reporter.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		for _, e := range client.events() {
			if e.event == models.EventRobotHealthy {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	events := client.events()
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventRobotConnect, events[0].event)
	connectReq := models.ConnectReq{}
	require.NoError(t, json.Unmarshal([]byte(events[0].msg), &connectReq))
	assert.Equal(t, "robot-key", connectReq.Key)
	assert.Equal(t, "secret", connectReq.Password)

	assert.Equal(t, models.EventRobotDisconnect, events[len(events)-1].event)
	assert.True(t, client.closed)

	var health models.Health
	for _, e := range events {
		if e.event == models.EventRobotHealthy {
			require.NoError(t, json.Unmarshal([]byte(e.msg), &health))
			break
		}
	}
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, uint64(42), health.Ticks)
	assert.NotZero(t, health.TimeStamp)
}

func TestSessionEvents(t *testing.T) {
	client := newFakeClient()
	reporter := NewReporter(testHubConfig(), client, healthy(), hclog.NewNullLogger())

	info := server.SessionInfo{ID: uuid.New(), RemoteAddr: "10.0.0.7:50000", Started: time.Now()}
	reporter.SessionStarted(info)
	reporter.SessionEnded(info, server.EndIdleTimeout)

	events := client.events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventSessionStart, events[0].event)
	assert.Equal(t, models.EventSessionEnd, events[1].event)

	ended := models.SessionEvent{}
	require.NoError(t, json.Unmarshal([]byte(events[1].msg), &ended))
	assert.Equal(t, info.ID, ended.SessionId)
	assert.Equal(t, "idle_timeout", ended.Reason)
}

func TestRegisterSuccess(t *testing.T) {
	reporter := NewReporter(testHubConfig(), newFakeClient(), healthy(), hclog.NewNullLogger())
	robotID := uuid.New()

	msg, err := encode(models.ConnectResp{Robot: models.Robot{Id: robotID, Name: "Crawler One", ShortName: "c1"}})
	require.NoError(t, err)

	reporter.onRegisterSuccess(nil, []string{msg})
	assert.Equal(t, robotID, reporter.Robot().Id)
	assert.Equal(t, "c1", reporter.Robot().ShortName)

	reporter.onRegisterSuccess(nil, []string{"{not json"})
	reporter.onRegisterSuccess(nil, nil)
	assert.Equal(t, robotID, reporter.Robot().Id)
}
