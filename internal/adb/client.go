// File: internal/adb/client.go
// Description: Minimal client for the ADB server socket protocol. Requests
// are length-prefixed with four hex digits; the server answers with an OKAY
// or FAIL status followed by an optional length-prefixed payload. A device
// service (shell:, exec:) is reached by first switching the connection with
// host:transport:<serial>.

package adb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrServer is wrapped around every failure reported by the ADB server
// itself, as opposed to transport errors reaching it.
var ErrServer = errors.New("adb server error")

const statusLen = 4

// Client talks to a local ADB server. It opens one connection per request;
// the server protocol is not multiplexed.
type Client struct {
	addr        string
	dialTimeout time.Duration
	logger      *zap.Logger
}

// New creates a client for the ADB server at addr (normally 127.0.0.1:5037).
func New(addr string, dialTimeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		addr:        addr,
		dialTimeout: dialTimeout,
		logger:      logger.Named("adb"),
	}
}

// dial opens a connection honoring both the configured timeout and ctx.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial adb server at %s: %w", c.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

// sendRequest writes one hex4 length-prefixed request and checks the status.
func sendRequest(conn net.Conn, req string) error {
	if _, err := fmt.Fprintf(conn, "%04x%s", len(req), req); err != nil {
		return fmt.Errorf("failed to send request %q: %w", req, err)
	}
	return readStatus(conn, req)
}

// readStatus consumes the 4-byte OKAY/FAIL marker, decoding the error
// message on FAIL.
func readStatus(conn net.Conn, req string) error {
	status := make([]byte, statusLen)
	if _, err := io.ReadFull(conn, status); err != nil {
		return fmt.Errorf("failed to read status for %q: %w", req, err)
	}
	switch string(status) {
	case "OKAY":
		return nil
	case "FAIL":
		msg, err := readHexPayload(conn)
		if err != nil {
			return fmt.Errorf("%w: %q failed (unreadable reason: %v)", ErrServer, req, err)
		}
		return fmt.Errorf("%w: %q failed: %s", ErrServer, req, msg)
	default:
		return fmt.Errorf("%w: unexpected status %q for %q", ErrServer, status, req)
	}
}

// readHexPayload reads one hex4 length-prefixed payload.
func readHexPayload(conn net.Conn) (string, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return "", fmt.Errorf("failed to read payload length: %w", err)
	}
	n, err := strconv.ParseUint(string(lenBuf), 16, 32)
	if err != nil {
		return "", fmt.Errorf("malformed payload length %q: %w", lenBuf, err)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}
	return string(payload), nil
}

// ServerVersion queries the ADB server's internal version, which doubles as a
// health check.
func (c *Client) ServerVersion(ctx context.Context) (int, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := sendRequest(conn, "host:version"); err != nil {
		return 0, err
	}
	payload, err := readHexPayload(conn)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(payload, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed version %q: %w", payload, err)
	}
	return int(v), nil
}

// Connect asks the server to connect to a TCP device (host:port). The server
// reports the outcome as a free-form message, returned for logging.
func (c *Client) Connect(ctx context.Context, deviceAddr string) (string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := sendRequest(conn, "host:connect:"+deviceAddr); err != nil {
		return "", err
	}
	msg, err := readHexPayload(conn)
	if err != nil {
		return "", err
	}
	c.logger.Debug("adb connect", zap.String("device", deviceAddr), zap.String("response", msg))
	return msg, nil
}

// transport switches an open connection to the device identified by serial.
func transport(conn net.Conn, serial string) error {
	return sendRequest(conn, "host:transport:"+serial)
}

// Shell runs a command on the device and returns its merged output. This is
// legacy shell v1: stdout and stderr are interleaved and the exit code is not
// reported.
func (c *Client) Shell(ctx context.Context, serial, cmd string) (string, error) {
	out, err := c.deviceService(ctx, serial, "shell:"+cmd)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Exec runs a command through the exec service, which does not mangle binary
// output. Used for screencap.
func (c *Client) Exec(ctx context.Context, serial, cmd string) ([]byte, error) {
	return c.deviceService(ctx, serial, "exec:"+cmd)
}

func (c *Client) deviceService(ctx context.Context, serial, service string) ([]byte, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := transport(conn, serial); err != nil {
		return nil, err
	}
	if err := sendRequest(conn, service); err != nil {
		return nil, err
	}

	out, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q output: %w", service, err)
	}
	return out, nil
}
