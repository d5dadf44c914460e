package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"tcptalk/internal/protocol"
)

const ioTimeout = 2 * time.Second

func startServer(test *testing.T, opts ...Option) (*Server, string) {
	test.Helper()
	srv, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		test.Fatal("server.New, unexpected error:", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		test.Fatal("listen:", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	test.Cleanup(func() {
		srv.Shutdown()
		if err := <-done; !errors.Is(err, ErrServerClosed) {
			test.Error("Serve: expected ErrServerClosed, got", err)
		}
	})
	return srv, ln.Addr().String()
}

// testClient is a raw protocol client.
type testClient struct {
	test *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(test *testing.T, addr string) *testClient {
	test.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		test.Fatal("dial:", err)
	}
	test.Cleanup(func() { conn.Close() })
	return &testClient{test: test, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(s string) {
	c.test.Helper()
	if _, err := io.WriteString(c.conn, s); err != nil {
		c.test.Fatal("write:", err)
	}
}

func (c *testClient) expect(expected string) {
	c.test.Helper()
	c.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	buf := make([]byte, len(expected))
	if _, err := io.ReadFull(c.r, buf); err != nil {
		c.test.Fatalf("expected %q, read failed: %v", expected, err)
	}
	if string(buf) != expected {
		c.test.Fatalf("expected %q, got %q", expected, buf)
	}
}

// expectSilence asserts nothing arrives within a short window.
func (c *testClient) expectSilence() {
	c.test.Helper()
	c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if b, err := c.r.Peek(1); err == nil {
		c.test.Fatalf("expected no data, got %q…", b)
	}
	c.conn.SetReadDeadline(time.Time{})
}

func (c *testClient) login(name string, roster ...string) {
	c.test.Helper()
	c.expect(protocol.Prompt)
	c.send(name + "\n")
	c.expect(string(protocol.EncodeUserList(roster)))
}

func TestServer_Scenario(test *testing.T) {
	_, addr := startServer(test)

	alice := dial(test, addr)
	alice.login("alice", "alice")

	bob := dial(test, addr)
	bob.expect(protocol.Prompt)
	bob.send("alice\n")
	bob.expect(protocol.MsgNameTaken)
	bob.expect(protocol.Prompt)
	bob.send("bob\n")
	bob.expect(string(protocol.EncodeUserList([]string{"alice", "bob"})))

	alice.expect("bob has joined the chat\n")
	alice.expect(string(protocol.EncodeUserList([]string{"alice", "bob"})))

	alice.send("hi\n")
	bob.expect("alice: hi\n")

	// GET_USERS is answered to the requester only.
	bob.send("GET_USERS\n")
	bob.expect(string(protocol.EncodeUserList([]string{"alice", "bob"})))
	alice.expectSilence()

	bob.conn.Close()
	alice.expect("bob has left the chat\n")
	alice.expect(string(protocol.EncodeUserList([]string{"alice"})))
}

func TestServer_ReservedAndEmptyNames(test *testing.T) {
	_, addr := startServer(test)

	c := dial(test, addr)
	c.expect(protocol.Prompt)
	c.send("   \n")
	c.expect(protocol.MsgNameEmpty)
	c.expect(protocol.Prompt)
	c.send("SYSTEM\n")
	c.expect(protocol.MsgNameReserved)
	c.expect(protocol.Prompt)
	c.send("carol\n")
	c.expect(string(protocol.EncodeUserList([]string{"carol"})))
}

func TestServer_SenderDoesNotReceiveOwnLine(test *testing.T) {
	_, addr := startServer(test)

	alice := dial(test, addr)
	alice.login("alice", "alice")
	bob := dial(test, addr)
	bob.login("bob", "alice", "bob")
	alice.expect("bob has joined the chat\n")
	alice.expect(string(protocol.EncodeUserList([]string{"alice", "bob"})))

	// Two lines in one segment are relayed as two lines.
	bob.send("one\ntwo\n")
	alice.expect("bob: one\nbob: two\n")
	bob.expectSilence()
}

func TestServer_ConcurrentJoinsKeepNamesUnique(test *testing.T) {
	srv, addr := startServer(test)

	const n = 8
	wg := sync.WaitGroup{}
	admitted := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				test.Error("dial:", err)
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(ioTimeout))
			r := bufio.NewReader(conn)

			prompt := make([]byte, len(protocol.Prompt))
			if _, err := io.ReadFull(r, prompt); err != nil {
				test.Error("read prompt:", err)
				return
			}
			io.WriteString(conn, "same\n")
			line, err := r.ReadString('\n')
			if err != nil {
				test.Error("read reply:", err)
				return
			}
			if line == protocol.MsgNameTaken {
				return
			}
			admitted <- line
			// Hold the connection until every contender has been answered.
			time.Sleep(300 * time.Millisecond)
		}()
	}
	wg.Wait()
	close(admitted)

	var count int
	for range admitted {
		count++
	}
	if count != 1 {
		test.Error("expected exactly one session to win the name, got", count)
	}
	if names := srv.Registry().Usernames(); len(names) > 1 {
		test.Error("registry holds duplicate names:", names)
	}
}

func TestServer_ShutdownClosesSessions(test *testing.T) {
	srv, err := New(WithLogger(quietLogger()))
	if err != nil {
		test.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		test.Fatal(err)
	}
	go srv.Serve(ln)

	c := dial(test, ln.Addr().String())
	c.login("dave", "dave")

	srv.Shutdown()
	c.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	if _, err := c.r.ReadByte(); err == nil {
		test.Error("expected the connection to be closed")
	}
	if srv.Registry().Len() != 0 {
		test.Error("expected an empty registry after shutdown, got", srv.Registry().Usernames())
	}
	if err := srv.Serve(ln); !errors.Is(err, ErrServerClosed) {
		test.Error("Serve after Shutdown: expected ErrServerClosed, got", err)
	}
}

func TestNew_InvalidOptions(test *testing.T) {
	for _, opt := range []Option{WithLogger(nil), WithWriteTimeout(-time.Second), WithMaxLine(8)} {
		if _, err := New(opt); err == nil {
			test.Error("expected option error")
		}
	}
}
