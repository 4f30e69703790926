package rcon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/craftctl-project/craftctl/internal/util"
)

// ErrManagerClosed is returned for requests submitted after Close.
var ErrManagerClosed = errors.New("rcon manager is closed")

type request struct {
	command    string
	disconnect bool
	reply      chan result
}

type result struct {
	body string
	err  error
}

// Manager owns zero-or-one authenticated session and presents it to
// arbitrarily many concurrent callers. A single worker goroutine
// drains a FIFO request queue, so at most one exchange is ever in
// flight on the wire and the bytes of two commands can never
// interleave. The session is created lazily on the first request,
// kept warm across successes, and torn down on any failure so the
// next request starts from a clean connect+authenticate.
type Manager struct {
	addr     string
	password string
	opts     Options

	requests  chan request
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger

	// Owned exclusively by the worker goroutine.
	session *Session
}

// Options are the connection knobs layered outside the protocol core.
// Zero values mean unbounded, matching the base protocol.
type Options struct {
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

// NewManager creates a manager for the given server address and
// password and starts its worker. No connection is made until the
// first request arrives.
func NewManager(addr, password string, opts Options) *Manager {
	m := &Manager{
		addr:     addr,
		password: password,
		opts:     opts,
		requests: make(chan request),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   util.ComponentLogger("rcon_manager").With().Str("addr", addr).Logger(),
	}
	go m.work()
	return m
}

// Run executes a command against the server, waiting behind any other
// in-flight request. On success the underlying connection stays cached
// for the next caller; on failure it is discarded and the error is
// returned without retry. ctx cancellation abandons the request — but
// once the command has reached the worker it runs to completion, since
// a half-sent command would leave the connection in an unknown state.
func (m *Manager) Run(ctx context.Context, command string) (string, error) {
	return m.submit(ctx, command, false)
}

// RunAndDisconnect executes a command and then closes the connection
// deliberately even on success. Used for "stop", after which the
// remote process is expected to exit.
func (m *Manager) RunAndDisconnect(ctx context.Context, command string) (string, error) {
	return m.submit(ctx, command, true)
}

func (m *Manager) submit(ctx context.Context, command string, disconnect bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := request{
		command:    command,
		disconnect: disconnect,
		// Buffered so an abandoned reply never blocks the worker.
		reply: make(chan result, 1),
	}

	select {
	case m.requests <- req:
	case <-m.stop:
		return "", ErrManagerClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.body, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the worker and drops any cached session. Pending
// requests that have not reached the worker fail with
// ErrManagerClosed. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Manager) work() {
	defer close(m.done)

	for {
		select {
		case req := <-m.requests:
			body, err := m.execute(req.command, req.disconnect)
			req.reply <- result{body: body, err: err}
		case <-m.stop:
			if m.session != nil {
				m.session.Close()
				m.session = nil
			}
			return
		}
	}
}

// execute runs one full exchange. Invariant: on return, m.session is
// either a session that just completed a successful exchange or nil.
func (m *Manager) execute(command string, disconnect bool) (string, error) {
	if m.session == nil {
		conn, err := Dial(m.addr, m.opts.DialTimeout, m.opts.IOTimeout)
		if err != nil {
			return "", err
		}
		session, err := conn.Authenticate(m.password)
		if err != nil {
			return "", err
		}
		m.logger.Info().Msg("connected and authenticated")
		m.session = session
	}

	body, err := m.session.Command(command)
	if err != nil {
		m.logger.Warn().Err(err).Str("command", command).Msg("command failed, discarding connection")
		m.session.Close()
		m.session = nil
		return "", err
	}

	if disconnect {
		if err := m.session.Disconnect(); err != nil {
			m.logger.Debug().Err(err).Msg("disconnect after command")
		}
		m.session = nil
	}

	return body, nil
}
