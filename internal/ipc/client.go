package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/runtimepath"
)

// ErrNotRunning is wrapped by client errors when nothing listens on the
// socket.
var ErrNotRunning = errors.New("daemon not running")

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the default runtime socket.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    15 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?): %w", err, ErrNotRunning)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends command with an optional payload and decodes the reply data
// into out when out is non-nil.
func (c *Client) call(command CommandType, payload any, out any) error {
	req := &Request{Command: command}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", command, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListWindows retrieves the windows the daemon tracks.
func (c *Client) ListWindows() (*WindowsData, error) {
	var data WindowsData
	if err := c.call(CommandListWindows, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMonitors retrieves monitor information
func (c *Client) GetMonitors() (*MonitorsData, error) {
	var monitors MonitorsData
	if err := c.call(CommandGetMonitors, nil, &monitors); err != nil {
		return nil, err
	}
	return &monitors, nil
}

// MoveToMonitor asks the daemon to move window to the monitor on connector
// and remember the choice.
func (c *Client) MoveToMonitor(window uint32, connector string) error {
	return c.call(CommandMoveToMonitor, MoveToMonitorPayload{Window: window, Connector: connector}, nil)
}

func (c *Client) SetSyncMode(mode string) error {
	return c.call(CommandSetSyncMode, SetSyncModePayload{Mode: mode}, nil)
}

func (c *Client) SetOverride(appID string, rule model.OverrideRule) error {
	return c.call(CommandSetOverride, SetOverridePayload{AppID: appID, Rule: rule}, nil)
}

// RemoveOverride reports whether an override existed.
func (c *Client) RemoveOverride(appID string) (bool, error) {
	var data RemoveOverrideData
	if err := c.call(CommandRemoveOverride, RemoveOverridePayload{AppID: appID}, &data); err != nil {
		return false, err
	}
	return data.Removed, nil
}

func (c *Client) ListOverrides() (model.Overrides, error) {
	var data OverridesData
	if err := c.call(CommandListOverrides, nil, &data); err != nil {
		return nil, err
	}
	return data.Overrides, nil
}

// Forget deletes saved records and returns how many were removed.
func (c *Client) Forget(appID, title string) (int, error) {
	var data ForgetData
	if err := c.call(CommandForget, ForgetPayload{AppID: appID, Title: title}, &data); err != nil {
		return 0, err
	}
	return data.Removed, nil
}

// ListSaved retrieves the saved placement records, ordered by application
// and title.
func (c *Client) ListSaved() ([]model.SavedWindowConfig, error) {
	var data SavedData
	if err := c.call(CommandListSaved, nil, &data); err != nil {
		return nil, err
	}
	return data.Records, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
