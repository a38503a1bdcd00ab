package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// DefaultClientTimeout keeps a shell prompt responsive when the daemon is
// wedged; the caller falls back to rendering in-process.
const DefaultClientTimeout = time.Second

// RemoteError is an error reported by the daemon.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "daemon: " + e.Message
}

// Client talks to a daemon socket. Each call uses a fresh connection.
type Client struct {
	SocketPath string
	Timeout    time.Duration
}

// Render asks the daemon for path's prompt. When the daemon reports an
// error it may still return a usable prompt alongside it.
func (c Client) Render(path, dialect string) (string, error) {
	resp, err := c.do(Request{Op: OpRender, Path: path, Dialect: dialect})
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return resp.Prompt, &RemoteError{Message: resp.Error}
	}
	return resp.Prompt, nil
}

// Stats fetches the daemon's worker registry.
func (c Client) Stats() (*StatsReply, error) {
	resp, err := c.do(Request{Op: OpStats})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &RemoteError{Message: resp.Error}
	}
	if resp.Stats == nil {
		return nil, errors.New("daemon: empty stats reply")
	}
	return resp.Stats, nil
}

// Ping checks that the daemon answers.
func (c Client) Ping() error {
	resp, err := c.do(Request{Op: OpPing})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return &RemoteError{Message: resp.Error}
	}
	return nil
}

func (c Client) do(req Request) (Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}

	conn, err := net.DialTimeout("unix", c.SocketPath, timeout)
	if err != nil {
		return Response{}, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	line, err := encodeLine(req)
	if err != nil {
		return Response{}, err
	}
	if _, err := conn.Write(line); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(reply) == 0 {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// IsAlive reports whether something accepts connections on socketPath.
func IsAlive(socketPath string) bool {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
