package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/models"
	"github.com/Speshl/gorrc_robot/internal/server"
	socketio "github.com/googollee/go-socket.io"
	"github.com/hashicorp/go-hclog"
)

const protocolName = "gorrc-frames-v1"

// Client is the part of the socket.io client the reporter uses.
type Client interface {
	OnEvent(event string, f interface{})
	Emit(event string, args ...interface{})
	Connect() error
	Close() error
}

type HealthSource interface {
	Health() models.Health
}

type HealthFunc func() models.Health

func (f HealthFunc) Health() models.Health {
	return f()
}

func NewClient(cfg config.HubConfig) (*socketio.Client, error) {
	socketURI := fmt.Sprintf("http://%s", cfg.Server)
	client, err := socketio.NewClient(socketURI, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating hub client - %w", err)
	}
	return client, nil
}

// Reporter registers the robot with the hub, sends periodic health checks and
// reports controller sessions starting and ending.
type Reporter struct {
	cfg    config.HubConfig
	client Client
	health HealthSource
	logger hclog.Logger

	lock  sync.RWMutex
	robot models.Robot
}

func NewReporter(cfg config.HubConfig, client Client, health HealthSource, logger hclog.Logger) *Reporter {
	return &Reporter{
		cfg:    cfg,
		client: client,
		health: health,
		logger: logger,
	}
}

func (r *Reporter) RegisterHandlers() error {
	r.logger.Info("registering handlers")
	r.client.OnEvent("reply", func(s socketio.Conn, msg string) {
		r.logger.Debug("hub reply", "reply", msg)
	})

	r.client.OnEvent(models.EventRegisterSuccess, r.onRegisterSuccess)

	r.logger.Info("attempting to connect to hub", "server", r.cfg.Server)
	err := r.client.Connect() //Client must have atleast 1 event handler to work
	if err != nil {
		return fmt.Errorf("error connecting to hub - %w", err)
	}
	r.logger.Info("connected to hub")
	return nil
}

// Start announces the robot and sends health checks until ctx is done.
func (r *Reporter) Start(ctx context.Context) error {
	defer func() {
		r.emit(models.EventRobotDisconnect, models.ConnectReq{Key: r.cfg.Key})
		err := r.client.Close()
		if err != nil {
			r.logger.Warn("failed closing hub client", "error", err)
		}
	}()

	r.emit(models.EventRobotConnect, models.ConnectReq{
		Key:      r.cfg.Key,
		Password: r.cfg.Password,
		Protocol: protocolName,
	})

	interval := r.cfg.HealthInterval
	if interval <= 0 {
		interval = config.DefaultHubHealthInterval
	}
	healthTicker := time.NewTicker(interval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("health checker stopped")
			return ctx.Err()
		case <-healthTicker.C:
			r.SendHealth()
		}
	}
}

func (r *Reporter) SendHealth() {
	health := r.health.Health()
	health.TimeStamp = time.Now().UnixMilli()
	r.logger.Debug("healthcheck", "status", health.Status, "connected", health.Connected)
	r.emit(models.EventRobotHealthy, health)
}

func (r *Reporter) SessionStarted(info server.SessionInfo) {
	r.emit(models.EventSessionStart, models.SessionEvent{
		SessionId:  info.ID,
		RemoteAddr: info.RemoteAddr,
		TimeStamp:  info.Started.UnixMilli(),
	})
}

func (r *Reporter) SessionEnded(info server.SessionInfo, reason server.EndReason) {
	r.emit(models.EventSessionEnd, models.SessionEvent{
		SessionId:  info.ID,
		RemoteAddr: info.RemoteAddr,
		Reason:     string(reason),
		TimeStamp:  time.Now().UnixMilli(),
	})
}

func (r *Reporter) Robot() models.Robot {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.robot
}

func (r *Reporter) onRegisterSuccess(socketConn socketio.Conn, msgs []string) {
	if len(msgs) != 1 {
		r.logger.Warn("register success had unexpected msg count", "count", len(msgs))
		if len(msgs) == 0 {
			return
		}
	}

	decodedMsg := models.ConnectResp{}
	err := decode(msgs[0], &decodedMsg)
	if err != nil {
		r.logger.Error("register success failed unmarshaling", "error", err, "msg", msgs[0])
		return
	}

	r.lock.Lock()
	r.robot = decodedMsg.Robot
	r.lock.Unlock()
	r.logger.Info("robot registered", "name", decodedMsg.Robot.Name, "short_name", decodedMsg.Robot.ShortName, "id", decodedMsg.Robot.Id.String())
}

func (r *Reporter) emit(event string, msg any) {
	encodedMsg, err := encode(msg)
	if err != nil {
		r.logger.Error("failed encoding hub message", "event", event, "error", err)
		return
	}
	r.client.Emit(event, encodedMsg)
}

func encode(msg any) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode(msg string, target any) error {
	return json.Unmarshal([]byte(msg), target)
}
