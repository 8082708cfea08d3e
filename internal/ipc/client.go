package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to begin monitoring.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("MPS.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop monitoring.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("MPS.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("MPS.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BacklogProcess triggers an immediate backlog replay.
func (c *Client) BacklogProcess() (*BacklogProcessResponse, error) {
	var resp BacklogProcessResponse
	if err := c.client.Call("MPS.BacklogProcess", BacklogProcessRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BacklogList returns backlog entries optionally filtered by statuses.
func (c *Client) BacklogList(statuses []string) (*BacklogListResponse, error) {
	var resp BacklogListResponse
	req := BacklogListRequest{Statuses: statuses}
	if err := c.client.Call("MPS.BacklogList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BacklogClearDead removes dead-letter backlog entries.
func (c *Client) BacklogClearDead() (*BacklogClearDeadResponse, error) {
	var resp BacklogClearDeadResponse
	if err := c.client.Call("MPS.BacklogClearDead", BacklogClearDeadRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ThresholdGet retrieves the active watch-completion threshold.
func (c *Client) ThresholdGet() (*ThresholdGetResponse, error) {
	var resp ThresholdGetResponse
	if err := c.client.Call("MPS.ThresholdGet", ThresholdGetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ThresholdSet updates the watch-completion threshold.
func (c *Client) ThresholdSet(value int) (*ThresholdSetResponse, error) {
	var resp ThresholdSetResponse
	req := ThresholdSetRequest{Threshold: value}
	if err := c.client.Call("MPS.ThresholdSet", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ThresholdAnswer answers a pending threshold prompt.
func (c *Client) ThresholdAnswer(value int) (*ThresholdAnswerResponse, error) {
	var resp ThresholdAnswerResponse
	req := ThresholdAnswerRequest{Threshold: value}
	if err := c.client.Call("MPS.ThresholdAnswer", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("MPS.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
