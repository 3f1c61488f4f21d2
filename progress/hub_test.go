package progress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, srv *httptest.Server, socketID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?socketId=" + socketID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversToMatchingSocket(t *testing.T) {
	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.Attach)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialHub(t, srv, "sock-1")

	// Registration happens server-side just after the handshake; give the
	// handler a moment before pushing.
	time.Sleep(50 * time.Millisecond)

	hub.Emit("sock-1", Event{Stage: StageProcessing, Percent: 0, CurrentFile: 1, TotalFiles: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Stage != StageProcessing || ev.CurrentFile != 1 || ev.TotalFiles != 2 {
		t.Errorf("event = %+v", ev)
	}
}

func TestHubSerializesConcurrentEmits(t *testing.T) {
	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.Attach)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialHub(t, srv, "shared")
	time.Sleep(50 * time.Millisecond)

	// Two upload batches pushing to the same socketId at once must not
	// interleave writes on the connection.
	const perBatch = 25
	var wg sync.WaitGroup
	for batch := 0; batch < 2; batch++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := 0; p < perBatch; p++ {
				hub.Emit("shared", Event{Stage: StageCloudUpload, Percent: p})
			}
		}()
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 2*perBatch; i++ {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if ev.Stage != StageCloudUpload {
			t.Fatalf("event %d corrupted: %+v", i, ev)
		}
	}
	wg.Wait()
}

func TestHubDropsEventsForUnknownSocket(t *testing.T) {
	hub := NewHub()
	// Must not panic or block with nobody listening.
	hub.Emit("ghost", Event{Stage: StageCloudUpload, Percent: 50})
	hub.Emit("", Event{Stage: StageCloudUpload, Percent: 50})
}

func TestHubRequiresSocketID(t *testing.T) {
	hub := NewHub()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()
	hub.Attach(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
