package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ironsheep/smartfilter/internal/protocol"
)

// State is a session's position in its lifecycle.
type State int

const (
	StateReading State = iota
	StateParsing
	StateExecuting
	StateReplying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateParsing:
		return "parsing"
	case StateExecuting:
		return "executing"
	case StateReplying:
		return "replying"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// noVariant labels requests that failed before a variant was known.
const noVariant = "none"

// session handles a single connection.
type session struct {
	srv     *Server
	conn    net.Conn
	id      string
	log     zerolog.Logger
	state   State
	started time.Time
}

func newSession(srv *Server, conn net.Conn) *session {
	id := uuid.NewString()
	return &session{
		srv:  srv,
		conn: conn,
		id:   id,
		log: srv.log.With().
			Str("session", id).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
		state:   StateReading,
		started: time.Now(),
	}
}

func (ss *session) transition(to State) {
	ss.log.Debug().Stringer("from", ss.state).Stringer("to", to).Msg("Session state")
	ss.state = to
}

// run drives the session from Reading to Closed.
func (ss *session) run(ctx context.Context) {
	m := ss.srv.metrics
	m.sessionsActive.Inc()
	defer m.sessionsActive.Dec()

	defer func() {
		_ = ss.conn.Close()
		ss.transition(StateClosed)
	}()

	// A panic outside the pool still owes the client a reply once parsing
	// has started.
	defer func() {
		if r := recover(); r != nil {
			ss.log.Error().Interface("panic", r).Stringer("state", ss.state).Msg("Session panicked")
			m.recordError("internal")
			if ss.state == StateParsing || ss.state == StateExecuting {
				ss.transition(StateReplying)
				_ = ss.reply(protocol.StatusFailure)
			}
		}
	}()

	payload, err := ss.read(ctx)
	if err != nil {
		m.recordError(errorKind(err))
		ss.log.Debug().Err(err).Msg("No request received")
		return
	}

	ss.transition(StateParsing)
	variant := noVariant
	req, err := protocol.ParseRequest(payload)
	if err == nil {
		variant = req.Variant().String()
		ss.log = ss.log.With().
			Str("variant", variant).
			Str("input", req.InputPath).
			Str("output", req.OutputPath).
			Logger()

		ss.transition(StateExecuting)
		err = ss.srv.pool.do(ctx, func() error {
			return ss.srv.execute(req, ss.log)
		})
	}

	ss.transition(StateReplying)
	status := protocol.StatusFor(err)
	writeErr := ss.reply(status)

	elapsed := time.Since(ss.started)
	m.requests.WithLabelValues(variant, status.String()).Inc()
	m.duration.WithLabelValues(variant).Observe(elapsed.Seconds())

	if err != nil {
		m.recordError(errorKind(err))
		ss.log.Warn().Err(err).Dur("elapsed", elapsed).Msg("Request failed")
	} else {
		ss.log.Info().Dur("elapsed", elapsed).Msg("Request completed")
	}
	if writeErr != nil {
		m.recordError(errorKind(writeErr))
		ss.log.Warn().Err(writeErr).Msg("Reply not delivered")
	}
}

// read performs the single read of the request. Bytes received alongside an
// error are still used; only an empty read ends the session.
//
// Cancelling ctx unblocks a read that is still waiting. No reply is owed at
// this point, so the client just sees the connection close.
func (ss *session) read(ctx context.Context) ([]byte, error) {
	if d := ss.srv.cfg.ReadTimeout; d > 0 {
		_ = ss.conn.SetReadDeadline(time.Now().Add(d))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = ss.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, ss.srv.cfg.MaxRequestSize)
	n, err := ss.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, &ConnectionError{Op: "read", Remote: ss.conn.RemoteAddr().String(), Err: err}
}

func (ss *session) reply(status protocol.Status) error {
	if d := ss.srv.cfg.WriteTimeout; d > 0 {
		_ = ss.conn.SetWriteDeadline(time.Now().Add(d))
	}
	if err := protocol.WriteStatus(ss.conn, status); err != nil {
		return &ConnectionError{Op: "write", Remote: ss.conn.RemoteAddr().String(), Err: err}
	}
	return nil
}
