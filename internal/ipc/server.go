package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/runtimepath"
)

// ErrAlreadyRunning is returned by Start when another daemon answers on the
// socket.
var ErrAlreadyRunning = errors.New("daemon already running")

const requestTimeout = 10 * time.Second

// Controller is the daemon surface the server exposes.
type Controller interface {
	Status(ctx context.Context) (StatusData, error)
	Windows(ctx context.Context) ([]WindowInfo, error)
	Monitors(ctx context.Context) ([]MonitorInfo, error)
	MoveToMonitor(ctx context.Context, window uint32, connector string) error
	SetSyncMode(ctx context.Context, mode model.Action) error
	SetOverride(ctx context.Context, appID string, rule model.OverrideRule) error
	RemoveOverride(ctx context.Context, appID string) (bool, error)
	Overrides(ctx context.Context) (model.Overrides, error)
	Forget(ctx context.Context, appID, title string) (int, error)
	Saved(ctx context.Context) ([]model.SavedWindowConfig, error)
	Reload(ctx context.Context) error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	ctrl         Controller
	startTime    time.Time
	wg           sync.WaitGroup
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a server on the default runtime socket.
func NewServer(ctrl Controller) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, ctrl), nil
}

// NewServerAt creates a server listening on socketPath.
func NewServerAt(socketPath string, ctrl Controller) *Server {
	return &Server{
		socketPath: socketPath,
		ctrl:       ctrl,
		startTime:  time.Now(),
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	if conn, err := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("%s: %w", s.socketPath, ErrAlreadyRunning)
	}
	// Stale socket from a previous run.
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping() {
				return
			}
			log.Printf("IPC accept error: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) stopping() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.shuttingDown
}

// handleConnection serves a single request on conn.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(requestTimeout + time.Second))

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.Printf("IPC read error: %v", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp := s.handleCommand(ctx, req)

	respData, err := resp.Marshal()
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload(ctx)
	case CommandGetStatus:
		return s.handleGetStatus(ctx)
	case CommandListWindows:
		return s.handleListWindows(ctx)
	case CommandGetMonitors:
		return s.handleGetMonitors(ctx)
	case CommandMoveToMonitor:
		return s.handleMoveToMonitor(ctx, req.Payload)
	case CommandSetSyncMode:
		return s.handleSetSyncMode(ctx, req.Payload)
	case CommandSetOverride:
		return s.handleSetOverride(ctx, req.Payload)
	case CommandRemoveOverride:
		return s.handleRemoveOverride(ctx, req.Payload)
	case CommandListOverrides:
		return s.handleListOverrides(ctx)
	case CommandForget:
		return s.handleForget(ctx, req.Payload)
	case CommandListSaved:
		return s.handleListSaved(ctx)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleReload(ctx context.Context) *Response {
	log.Println("IPC: Received RELOAD command")
	if err := s.ctrl.Reload(ctx); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	log.Println("IPC: Config reloaded successfully")
	return ok(nil)
}

func (s *Server) handleGetStatus(ctx context.Context) *Response {
	status, err := s.ctrl.Status(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get status: %v", err))
	}
	status.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	status.DaemonRunning = true
	return ok(status)
}

func (s *Server) handleListWindows(ctx context.Context) *Response {
	windows, err := s.ctrl.Windows(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to list windows: %v", err))
	}
	if windows == nil {
		windows = []WindowInfo{}
	}
	return ok(WindowsData{Windows: windows})
}

func (s *Server) handleGetMonitors(ctx context.Context) *Response {
	monitors, err := s.ctrl.Monitors(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get monitors: %v", err))
	}
	if monitors == nil {
		monitors = []MonitorInfo{}
	}
	return ok(MonitorsData{Monitors: monitors})
}

func (s *Server) handleMoveToMonitor(ctx context.Context, payload json.RawMessage) *Response {
	var req MoveToMonitorPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid move payload: %v", err))
	}
	if req.Window == 0 {
		return NewErrorResponse("window is required")
	}
	if strings.TrimSpace(req.Connector) == "" {
		return NewErrorResponse("connector is required")
	}

	log.Printf("IPC: Move window %#x to %s", req.Window, req.Connector)
	if err := s.ctrl.MoveToMonitor(ctx, req.Window, req.Connector); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to move window: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleSetSyncMode(ctx context.Context, payload json.RawMessage) *Response {
	var req SetSyncModePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid sync mode payload: %v", err))
	}
	mode, err := model.ParseAction(req.Mode)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	if err := s.ctrl.SetSyncMode(ctx, mode); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set sync mode: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleSetOverride(ctx context.Context, payload json.RawMessage) *Response {
	var req SetOverridePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid override payload: %v", err))
	}
	if strings.TrimSpace(req.AppID) == "" {
		return NewErrorResponse("app_id is required")
	}
	if err := req.Rule.Validate(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid override: %v", err))
	}
	if err := s.ctrl.SetOverride(ctx, req.AppID, req.Rule); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set override: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleRemoveOverride(ctx context.Context, payload json.RawMessage) *Response {
	var req RemoveOverridePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid override payload: %v", err))
	}
	if strings.TrimSpace(req.AppID) == "" {
		return NewErrorResponse("app_id is required")
	}
	removed, err := s.ctrl.RemoveOverride(ctx, req.AppID)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to remove override: %v", err))
	}
	return ok(RemoveOverrideData{Removed: removed})
}

func (s *Server) handleListOverrides(ctx context.Context) *Response {
	overrides, err := s.ctrl.Overrides(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to list overrides: %v", err))
	}
	if overrides == nil {
		overrides = model.Overrides{}
	}
	return ok(OverridesData{Overrides: overrides})
}

func (s *Server) handleForget(ctx context.Context, payload json.RawMessage) *Response {
	var req ForgetPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid forget payload: %v", err))
	}
	if strings.TrimSpace(req.AppID) == "" {
		return NewErrorResponse("app_id is required")
	}
	n, err := s.ctrl.Forget(ctx, req.AppID, req.Title)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to forget: %v", err))
	}
	log.Printf("IPC: Forgot %d record(s) for %s", n, req.AppID)
	return ok(ForgetData{Removed: n})
}

func (s *Server) handleListSaved(ctx context.Context) *Response {
	records, err := s.ctrl.Saved(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to list saved windows: %v", err))
	}
	if records == nil {
		records = []model.SavedWindowConfig{}
	}
	return ok(SavedData{Records: records})
}

func ok(data interface{}) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}
