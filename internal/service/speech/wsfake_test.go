package speech

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// wsFake 模拟火山引擎 websocket 服务，handle 在每个连接上运行一次
type wsFake struct {
	*httptest.Server
	headers chan http.Header
}

func newWSFake(t *testing.T, handle func(conn *websocket.Conn, header http.Header)) *wsFake {
	t.Helper()

	upgrader := websocket.Upgrader{}
	fake := &wsFake{headers: make(chan http.Header, 8)}
	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		select {
		case fake.headers <- r.Header.Clone():
		default:
		}
		handle(conn, r.Header)
	}))
	t.Cleanup(fake.Close)
	return fake
}

func (f *wsFake) endpoint() string {
	return "ws" + strings.TrimPrefix(f.URL, "http")
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame *Frame) {
	t.Helper()
	data, err := frame.MarshalBinary()
	if err != nil {
		t.Errorf("MarshalBinary err: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Errorf("write frame err: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) *Frame {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("read frame err: %v", err)
		return nil
	}
	frame, err := ParseFrame(data)
	if err != nil {
		t.Errorf("ParseFrame err: %v", err)
		return nil
	}
	return frame
}
