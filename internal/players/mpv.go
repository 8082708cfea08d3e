package players

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const mpvDialTimeout = 2 * time.Second

// MPV polls an mpv instance over its JSON IPC socket
// (mpv --input-ipc-server=PATH).
type MPV struct {
	socketPath string
	dial       func(ctx context.Context) (net.Conn, error)
}

// NewMPV constructs an mpv source for the given socket path.
func NewMPV(socketPath string) *MPV {
	m := &MPV{socketPath: socketPath}
	m.dial = func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: mpvDialTimeout}
		return d.DialContext(ctx, "unix", m.socketPath)
	}
	return m
}

func (m *MPV) Name() string { return "mpv" }

// Poll queries the current playback state. A player that is not running (no
// socket, connection refused) yields no samples and no error.
func (m *MPV) Poll(ctx context.Context) ([]Sample, error) {
	conn, err := m.dial(ctx)
	if err != nil {
		return nil, nil
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(mpvDialTimeout))
	}

	session := &mpvConn{conn: conn, reader: bufio.NewReader(conn)}

	path, err := session.getString("path")
	if err != nil || path == "" {
		// Idle player with nothing loaded.
		return nil, nil
	}
	title, _ := session.getString("media-title")
	position, err := session.getFloat("playback-time")
	if err != nil {
		return nil, fmt.Errorf("mpv playback-time: %w", err)
	}
	duration, _ := session.getFloat("duration")
	paused, _ := session.getBool("pause")

	if title == "" {
		title = path
	}
	return []Sample{{
		ItemID:   "mpv:" + path,
		Title:    DeriveTitle(title),
		Position: position,
		Duration: duration,
		Paused:   paused,
	}}, nil
}

type mpvConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	requestID int
}

type mpvResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int             `json:"request_id"`
	Event     string          `json:"event"`
}

func (c *mpvConn) getProperty(name string) (json.RawMessage, error) {
	c.requestID++
	request := map[string]any{
		"command":    []any{"get_property", name},
		"request_id": c.requestID,
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		var resp mpvResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		// mpv interleaves asynchronous events on the same socket.
		if resp.Event != "" || resp.RequestID != c.requestID {
			continue
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("mpv property %s: %s", name, resp.Error)
		}
		return resp.Data, nil
	}
}

func (c *mpvConn) getString(name string) (string, error) {
	data, err := c.getProperty(name)
	if err != nil {
		return "", err
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return "", err
	}
	return value, nil
}

func (c *mpvConn) getFloat(name string) (float64, error) {
	data, err := c.getProperty(name)
	if err != nil {
		return 0, err
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (c *mpvConn) getBool(name string) (bool, error) {
	data, err := c.getProperty(name)
	if err != nil {
		return false, err
	}
	var value bool
	if err := json.Unmarshal(data, &value); err != nil {
		return false, err
	}
	return value, nil
}
