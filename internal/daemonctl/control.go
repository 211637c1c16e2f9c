package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pricewatch/internal/api"
	"pricewatch/internal/config"
	"pricewatch/internal/services"
)

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the daemon listening on bind (host:port).
func NewClient(bind string, timeout time.Duration) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "daemonctl", "dial", "api.bind is empty", nil)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: "http://" + bind,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// FromConfig builds a client for the daemon configured in cfg.
func FromConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return NewClient(cfg.API.Bind, 0)
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.call(ctx, http.MethodGet, "/api/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TriggerSweep asks the daemon to start a sweep and returns its run id.
func (c *Client) TriggerSweep(ctx context.Context) (string, error) {
	var resp api.SweepAccepted
	if err := c.call(ctx, http.MethodPost, "/hooks/sweep", &resp); err != nil {
		return "", err
	}
	return resp.RunID, nil
}

// Repair asks the daemon to run a repair pass.
func (c *Client) Repair(ctx context.Context) (*api.RepairSummary, error) {
	var resp api.RepairSummary
	if err := c.call(ctx, http.MethodPost, "/hooks/repair", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, method, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
		}
		return fmt.Errorf("daemon request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read daemon response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var payload api.ErrorResponse
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return fmt.Errorf("daemon returned HTTP %d", status)
	}
	if marker := services.MarkerForKind(payload.Kind); marker != nil {
		return fmt.Errorf("%w: daemon: %s", marker, payload.Error)
	}
	return fmt.Errorf("daemon returned HTTP %d: %s", status, payload.Error)
}

// ReadPID returns the pid recorded at pidPath. A missing file yields
// ErrDaemonNotRunning.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrDaemonNotRunning
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", pidPath)
	}
	return pid, nil
}

// StopProcess sends SIGTERM to the daemon recorded at pidPath and waits up to
// timeout for it to exit.
func StopProcess(pidPath string, timeout time.Duration) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = os.Remove(pidPath)
			return pid, ErrDaemonNotRunning
		}
		return 0, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return pid, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return pid, fmt.Errorf("daemon process %d did not exit within %s", pid, timeout)
}
