package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// ErrNoReply is returned when the server closes the connection without
// sending a status byte.
var ErrNoReply = errors.New("connection closed without a reply")

// Client sends requests to a SmartFilter server, one connection per request.
// A Client is safe for concurrent use.
type Client struct {
	// Addr is the server's host:port.
	Addr string

	// Timeout bounds a whole exchange, from dial to reply. Zero leaves it to
	// the caller's context.
	Timeout time.Duration
}

// Send writes req to the server and waits for its status byte.
//
// A returned error means no status was received; the request may or may not
// have been carried out.
func (c *Client) Send(ctx context.Context, req Request) (Status, error) {
	if strings.Contains(req.InputPath, FieldSeparator) || strings.Contains(req.OutputPath, FieldSeparator) {
		return StatusFailure, fmt.Errorf("%w: path contains %q", ErrMalformedRequest, FieldSeparator)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", c.Addr)
	if err != nil {
		return StatusFailure, fmt.Errorf("failed to connect to %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := io.WriteString(conn, req.String()); err != nil {
		return StatusFailure, fmt.Errorf("failed to send request: %w", err)
	}

	var reply [1]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return StatusFailure, ErrNoReply
		}
		if ctx.Err() != nil {
			return StatusFailure, fmt.Errorf("failed to read reply: %w", ctx.Err())
		}
		return StatusFailure, fmt.Errorf("failed to read reply: %w", err)
	}

	return Status(reply[0]), nil
}
