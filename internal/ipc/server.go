package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"mps/internal/backlog"
	"mps/internal/daemon"
	"mps/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("MPS", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun mps stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("monitoring start requested")
	if err := s.daemon.StartEngine(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "monitoring started"
	s.log().Info("monitoring started via IPC",
		logging.String(logging.FieldEventType, "engine_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("monitoring stop requested")
	s.daemon.StopEngine()
	resp.Stopped = true
	s.log().Info("monitoring stopped via IPC",
		logging.String(logging.FieldEventType, "engine_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.EngineState = string(status.Engine.State)
	resp.Detail = status.Engine.Detail
	resp.Threshold = status.Engine.Threshold
	resp.BacklogTotal = status.Engine.Backlog.Total
	resp.BacklogPending = status.Engine.Backlog.Pending
	resp.BacklogDead = status.Engine.Backlog.Dead
	resp.BacklogDBPath = status.BacklogDBPath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	if last := status.Engine.LastScrobbled; last != nil {
		resp.LastScrobbled = last.Title
		resp.LastScrobbledAt = last.At
	}
	for _, session := range status.Engine.ActiveSessions {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			SessionID:      session.SessionID,
			ItemID:         session.ItemID,
			Title:          session.Title,
			WatchedSeconds: session.WatchedSeconds,
			TotalSeconds:   session.TotalSeconds,
			State:          string(session.State),
		})
	}
	return nil
}

func (s *service) BacklogProcess(_ BacklogProcessRequest, resp *BacklogProcessResponse) error {
	s.log().Debug("backlog process requested")
	result, err := s.daemon.ProcessBacklog(s.ctx)
	if err != nil {
		return err
	}
	resp.Processed = result.Processed
	resp.Attempted = result.Attempted
	resp.Dead = result.Dead
	resp.Failed = result.Failed
	s.log().Info("backlog processed via IPC",
		logging.String(logging.FieldEventType, "backlog_process"),
		logging.Int("processed", result.Processed),
		logging.Int("attempted", result.Attempted))
	return nil
}

func (s *service) BacklogList(req BacklogListRequest, resp *BacklogListResponse) error {
	statuses := make([]backlog.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := backlog.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	entries, err := s.daemon.ListBacklog(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Entries = make([]BacklogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		dto := BacklogEntry{
			ID:            entry.ID,
			ItemID:        entry.ItemID,
			Title:         entry.Title,
			Status:        string(entry.Status),
			AttemptCount:  entry.AttemptCount,
			LastErrorKind: entry.LastErrorKind,
		}
		if !entry.FirstFailedAt.IsZero() {
			dto.FirstFailedAt = entry.FirstFailedAt.Format(time.RFC3339)
		}
		if entry.LastAttemptAt != nil {
			dto.LastAttemptAt = entry.LastAttemptAt.Format(time.RFC3339)
		}
		resp.Entries = append(resp.Entries, dto)
	}
	return nil
}

func (s *service) BacklogClearDead(_ BacklogClearDeadRequest, resp *BacklogClearDeadResponse) error {
	s.log().Debug("backlog clear dead requested")
	removed, err := s.daemon.ClearDead(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("dead backlog entries cleared",
		logging.String(logging.FieldEventType, "backlog_clear_dead"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) ThresholdGet(_ ThresholdGetRequest, resp *ThresholdGetResponse) error {
	resp.Threshold = s.daemon.Threshold()
	return nil
}

func (s *service) ThresholdSet(req ThresholdSetRequest, resp *ThresholdSetResponse) error {
	if err := s.daemon.SetThreshold(req.Threshold); err != nil {
		return err
	}
	resp.Threshold = req.Threshold
	return nil
}

func (s *service) ThresholdAnswer(req ThresholdAnswerRequest, resp *ThresholdAnswerResponse) error {
	if err := s.daemon.AnswerThreshold(req.Threshold); err != nil {
		return err
	}
	resp.Accepted = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
