package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/protocol"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const writeTimeout = 250 * time.Millisecond

var (
	ErrNoSession     = errors.New("no active session")
	ErrServerStopped = errors.New("server stopped")
	ErrNotListening  = errors.New("server is not listening")
)

type Status int

const (
	Listening Status = iota
	Connected
	Stopped
)

func (s Status) String() string {
	switch s {
	case Listening:
		return "listening"
	case Connected:
		return "connected"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// EndReason says why a session left the Connected state.
type EndReason string

const (
	EndClosed      EndReason = "closed"
	EndIdleTimeout EndReason = "idle_timeout"
	EndReadError   EndReason = "read_error"
	EndShutdown    EndReason = "shutdown"
)

type FrameHandler interface {
	HandleFrame(protocol.Frame)
}

// Resetter returns the shared drive state to neutral.
type Resetter interface {
	Reset()
}

type SessionInfo struct {
	ID         uuid.UUID
	RemoteAddr string
	Started    time.Time
}

type session struct {
	info      SessionInfo
	conn      net.Conn
	writeLock sync.Mutex
}

type Option func(*Server)

// OnSessionStart is called from the session goroutine once the server is Connected.
func OnSessionStart(fn func(SessionInfo)) Option {
	return func(s *Server) {
		s.onStart = fn
	}
}

// OnSessionEnd is called after the drive state has been reset and the server is
// back to Listening (or Stopped).
func OnSessionEnd(fn func(SessionInfo, EndReason)) Option {
	return func(s *Server) {
		s.onEnd = fn
	}
}

// Server accepts one controller connection at a time. A connection arriving while
// a session is active is refused by closing it.
type Server struct {
	cfg      config.ServerConfig
	logger   hclog.Logger
	handler  FrameHandler
	resetter Resetter

	onStart func(SessionInfo)
	onEnd   func(SessionInfo, EndReason)

	lock     sync.Mutex
	status   Status
	listener net.Listener
	active   *session
	stopping bool

	sessions sync.WaitGroup
}

func NewServer(cfg config.ServerConfig, handler FrameHandler, resetter Resetter, logger hclog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handler:  handler,
		resetter: resetter,
		onStart:  func(SessionInfo) {},
		onEnd:    func(SessionInfo, EndReason) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the control socket. Failing to bind is a startup error.
func (s *Server) Listen() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.status == Stopped {
		return ErrServerStopped
	}
	if s.listener != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed binding control socket %s: %w", s.cfg.Address, err)
	}
	s.listener = listener
	s.status = Listening
	s.logger.Info("listening for controller", "address", listener.Addr().String())
	return nil
}

func (s *Server) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

// Session returns the active session, if any.
func (s *Server) Session() (SessionInfo, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.active == nil {
		return SessionInfo{}, false
	}
	return s.active.info, true
}

// Serve runs the accept loop until ctx is cancelled. Shutdown closes the listener
// and the active connection and waits for the session to finish its reset.
func (s *Server) Serve(ctx context.Context) error {
	s.lock.Lock()
	listener := s.listener
	s.lock.Unlock()
	if listener == nil {
		return ErrNotListening
	}

	stopDone := make(chan struct{})
	defer close(stopDone)
	go func() {
		select {
		case <-ctx.Done():
			s.shutdown()
		case <-stopDone:
		}
	}()

	defer func() {
		s.shutdown()
		s.sessions.Wait()
		s.resetter.Reset()
		s.logger.Info("control server stopped")
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("accept timed out", "error", err)
				continue
			}
			return fmt.Errorf("failed accepting controller: %w", err)
		}

		sess, ok := s.claim(conn)
		if !ok {
			continue
		}

		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.run(sess)
		}()
	}
}

// claim makes conn the active session, or refuses it when one is already active.
func (s *Server) claim(conn net.Conn) (*session, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopping {
		conn.Close()
		return nil, false
	}
	if s.active != nil {
		s.logger.Warn("refusing controller, session already active",
			"remote", conn.RemoteAddr().String(),
			"active_session", s.active.info.ID.String(),
		)
		conn.Close()
		return nil, false
	}

	sess := &session{
		info: SessionInfo{
			ID:         uuid.New(),
			RemoteAddr: conn.RemoteAddr().String(),
			Started:    time.Now(),
		},
		conn: conn,
	}
	s.active = sess
	s.status = Connected
	return sess, true
}

func (s *Server) run(sess *session) {
	logger := s.logger.With("session", sess.info.ID.String(), "remote", sess.info.RemoteAddr)
	logger.Info("controller connected")
	s.onStart(sess.info)

	reason := s.readFrames(sess, logger)

	sess.conn.Close()
	s.resetter.Reset()

	s.lock.Lock()
	s.active = nil
	if s.stopping {
		s.status = Stopped
		reason = EndShutdown
	} else {
		s.status = Listening
	}
	s.lock.Unlock()

	logger.Info("controller disconnected, drive state reset", "reason", string(reason), "duration", time.Since(sess.info.Started).String())
	s.onEnd(sess.info, reason)
}

func (s *Server) readFrames(sess *session, logger hclog.Logger) EndReason {
	reader := &deadlineReader{conn: sess.conn, timeout: s.cfg.IdleTimeout, lastFrame: time.Now()}
	decoder := protocol.NewStreamDecoder(reader)
	for {
		frame, err := decoder.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return EndClosed
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				logger.Warn("controller idle, closing session", "timeout", s.cfg.IdleTimeout.String())
				return EndIdleTimeout
			}
			if s.isStopping() {
				return EndShutdown
			}
			logger.Warn("controller read failed", "error", err)
			return EndReadError
		}
		reader.lastFrame = time.Now()
		s.handler.HandleFrame(frame)
	}
}

// SendTelemetry writes an encoded server to client frame on the active session.
func (s *Server) SendTelemetry(frame []byte) error {
	s.lock.Lock()
	sess := s.active
	s.lock.Unlock()
	if sess == nil {
		return ErrNoSession
	}

	sess.writeLock.Lock()
	defer sess.writeLock.Unlock()

	err := sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err != nil {
		return fmt.Errorf("failed setting write deadline: %w", err)
	}
	_, err = sess.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("failed writing telemetry: %w", err)
	}
	return nil
}

func (s *Server) isStopping() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stopping
}

func (s *Server) shutdown() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopping {
		return
	}
	s.stopping = true
	if s.listener != nil {
		s.listener.Close()
	}
	if s.active != nil {
		s.active.conn.Close()
	} else {
		s.status = Stopped
	}
}

// deadlineReader bounds every read by the idle timeout counted from the last
// complete frame, so partial frames trickling in do not keep a session alive.
type deadlineReader struct {
	conn      net.Conn
	timeout   time.Duration
	lastFrame time.Time
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if d.timeout > 0 {
		err := d.conn.SetReadDeadline(d.lastFrame.Add(d.timeout))
		if err != nil {
			return 0, err
		}
	}
	return d.conn.Read(p)
}
