package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// mockServer is a loopback TCP server speaking the wire protocol. It
// authenticates each connection and then answers commands one full
// exchange at a time, failing the test if a second command frame
// arrives before the previous response has been written.
type mockServer struct {
	t        *testing.T
	listener net.Listener
	password string

	mu       sync.Mutex
	commands []string
	accepted int

	// dropAfterAuth closes each connection right after the first
	// command frame instead of responding.
	dropConnections int
}

func newMockServer(t *testing.T, password string) *mockServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("mock server: listen: %v", err)
	}

	srv := &mockServer{t: t, listener: listener, password: password}
	t.Cleanup(func() { listener.Close() })

	go srv.acceptLoop()
	return srv
}

func (srv *mockServer) addr() string {
	return srv.listener.Addr().String()
}

func (srv *mockServer) seenCommands() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]string(nil), srv.commands...)
}

func (srv *mockServer) connections() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.accepted
}

func (srv *mockServer) acceptLoop() {
	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			return
		}

		srv.mu.Lock()
		srv.accepted++
		drop := srv.dropConnections > 0
		if drop {
			srv.dropConnections--
		}
		srv.mu.Unlock()

		go srv.serve(conn, drop)
	}
}

func (srv *mockServer) serve(conn net.Conn, drop bool) {
	defer conn.Close()

	id, typ, payload := readClientFrame(srv.t, conn)
	if typ != int32(TypeAuthentication) || id != 0 {
		srv.t.Errorf("mock server: unexpected handshake frame id=%d type=%d", id, typ)
		return
	}
	if payload != srv.password {
		writeServerFrame(srv.t, conn, -1, int32(TypeCommand), "")
		return
	}
	writeServerFrame(srv.t, conn, 0, int32(TypeCommand), "")

	for {
		sizeBuf := make([]byte, 4)
		if _, err := readFull(conn, sizeBuf); err != nil {
			return // client disconnected
		}
		size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
		body := make([]byte, size)
		if _, err := readFull(conn, body); err != nil {
			return
		}

		cmdID := int32(body[0]) | int32(body[1])<<8 | int32(body[2])<<16 | int32(body[3])<<24
		command := string(body[8 : len(body)-2])

		srv.mu.Lock()
		srv.commands = append(srv.commands, command)
		srv.mu.Unlock()

		if drop {
			return
		}

		// The client must not pipeline: no bytes may arrive until this
		// response is on the wire.
		conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
		probe := make([]byte, 1)
		if n, _ := conn.Read(probe); n > 0 {
			srv.t.Error("mock server: received bytes before the previous response was sent")
			return
		}
		conn.SetReadDeadline(time.Time{})

		writeServerFrame(srv.t, conn, cmdID, int32(TypeResponse), "echo:"+command)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := conn.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

func TestManagerRunsCommand(t *testing.T) {
	srv := newMockServer(t, "hunter2")
	m := NewManager(srv.addr(), "hunter2", Options{DialTimeout: time.Second})
	defer m.Close()

	body, err := m.Run(context.Background(), "save-all")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if body != "echo:save-all" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestManagerSerializesConcurrentRequests(t *testing.T) {
	srv := newMockServer(t, "hunter2")
	m := NewManager(srv.addr(), "hunter2", Options{DialTimeout: time.Second})
	defer m.Close()

	const callers = 8

	var group errgroup.Group
	for i := 0; i < callers; i++ {
		command := fmt.Sprintf("cmd-%d", i)
		group.Go(func() error {
			body, err := m.Run(context.Background(), command)
			if err != nil {
				return err
			}
			// Each caller must receive its own response, never a
			// neighbour's.
			if body != "echo:"+command {
				return fmt.Errorf("caller %s got response %q", command, body)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := len(srv.seenCommands()); got != callers {
		t.Fatalf("server saw %d commands, want %d", got, callers)
	}
	if got := srv.connections(); got != 1 {
		t.Fatalf("server saw %d connections, want 1 (connection should stay cached)", got)
	}
}

func TestManagerReconnectsAfterBrokenConnection(t *testing.T) {
	srv := newMockServer(t, "hunter2")
	srv.dropConnections = 1

	m := NewManager(srv.addr(), "hunter2", Options{DialTimeout: time.Second})
	defer m.Close()

	// First command: the server drops the connection before replying.
	_, err := m.Run(context.Background(), "list")
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError on dropped connection, got %v", err)
	}

	// Second command: the manager reconnects transparently.
	body, err := m.Run(context.Background(), "list")
	if err != nil {
		t.Fatalf("Run after reconnect failed: %v", err)
	}
	if body != "echo:list" {
		t.Fatalf("unexpected body: %q", body)
	}

	if got := srv.connections(); got != 2 {
		t.Fatalf("server saw %d connections, want 2", got)
	}
}

func TestManagerAuthFailure(t *testing.T) {
	srv := newMockServer(t, "hunter2")
	m := NewManager(srv.addr(), "wrong-password", Options{DialTimeout: time.Second})
	defer m.Close()

	_, err := m.Run(context.Background(), "list")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestManagerConnectFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close() // nothing is listening here any more

	m := NewManager(addr, "hunter2", Options{DialTimeout: 500 * time.Millisecond})
	defer m.Close()

	_, err = m.Run(context.Background(), "list")
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
}

func TestManagerStopDisconnects(t *testing.T) {
	srv := newMockServer(t, "hunter2")
	m := NewManager(srv.addr(), "hunter2", Options{DialTimeout: time.Second})
	defer m.Close()

	if _, err := m.RunAndDisconnect(context.Background(), "stop"); err != nil {
		t.Fatalf("RunAndDisconnect failed: %v", err)
	}

	// The next command must open a fresh connection.
	if _, err := m.Run(context.Background(), "list"); err != nil {
		t.Fatalf("Run after stop failed: %v", err)
	}
	if got := srv.connections(); got != 2 {
		t.Fatalf("server saw %d connections, want 2", got)
	}
}

func TestManagerClosedRejectsRequests(t *testing.T) {
	srv := newMockServer(t, "hunter2")
	m := NewManager(srv.addr(), "hunter2", Options{DialTimeout: time.Second})
	m.Close()

	_, err := m.Run(context.Background(), "list")
	if !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
}

func TestManagerCloseIdempotent(t *testing.T) {
	srv := newMockServer(t, "hunter2")
	m := NewManager(srv.addr(), "hunter2", Options{DialTimeout: time.Second})
	defer m.Close()

	if _, err := m.Run(context.Background(), "list"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A second Close (here via the deferred one) must not panic.
	m.Close()
	m.Close()
}

func TestManagerContextCancellation(t *testing.T) {
	srv := newMockServer(t, "hunter2")
	m := NewManager(srv.addr(), "hunter2", Options{DialTimeout: time.Second})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Run(ctx, "list")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
