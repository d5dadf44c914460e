package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tcptalk/internal/protocol"
)

func dialWebSocket(test *testing.T, url string) *websocket.Conn {
	test.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+WebSocketPath, nil)
	if err != nil {
		test.Fatal("websocket dial:", err)
	}
	test.Cleanup(func() { ws.Close() })
	return ws
}

func expectFrame(test *testing.T, ws *websocket.Conn, expected string) {
	test.Helper()
	ws.SetReadDeadline(time.Now().Add(ioTimeout))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		test.Fatalf("expected frame %q, read failed: %v", expected, err)
	}
	if mt != websocket.TextMessage || string(data) != expected {
		test.Fatalf("expected text frame %q, got type %d %q", expected, mt, data)
	}
}

func TestWebSocket_SharesRegistryWithTCP(test *testing.T) {
	srv, addr := startServer(test)
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	tcp := dial(test, addr)
	tcp.login("alice", "alice")

	ws := dialWebSocket(test, hs.URL)
	expectFrame(test, ws, protocol.Prompt)
	// No trailing newline: one frame is one line.
	if err := ws.WriteMessage(websocket.TextMessage, []byte("webby")); err != nil {
		test.Fatal(err)
	}
	expectFrame(test, ws, string(protocol.EncodeUserList([]string{"alice", "webby"})))

	tcp.expect("webby has joined the chat\n")
	tcp.expect(string(protocol.EncodeUserList([]string{"alice", "webby"})))

	ws.WriteMessage(websocket.TextMessage, []byte("hello from the browser"))
	tcp.expect("webby: hello from the browser\n")

	tcp.send("hi web\n")
	expectFrame(test, ws, "alice: hi web\n")

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	tcp.expect("webby has left the chat\n")
	tcp.expect(string(protocol.EncodeUserList([]string{"alice"})))
}
