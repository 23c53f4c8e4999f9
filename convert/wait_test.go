package convert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pdfcast/html2pdf/devtools"
)

// newFakeSession starts a websocket server that, for every inbound frame,
// immediately replies with an empty-result envelope, and lets the test
// push arbitrary event frames via the returned push func.
func newFakeSession(t *testing.T) (sess *devtools.Session, push func(frame string)) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- ws
		for {
			typ, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var msg struct {
				ID int64 `json:"id"`
			}
			if json.Unmarshal(data, &msg) == nil {
				ws.WriteMessage(typ, []byte(`{"id":`+strconv.FormatInt(msg.ID, 10)+`,"result":{}}`))
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s, err := devtools.Open(context.Background(), wsURL, devtools.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("devtools.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ws := <-connCh
	return s, func(frame string) {
		ws.WriteMessage(websocket.TextMessage, []byte(frame))
	}
}

func TestAwaitLifecycleEventUnblocksOnMatchingFrame(t *testing.T) {
	t.Parallel()

	sess, push := newFakeSession(t)

	done := make(chan error, 1)
	go func() {
		done <- awaitLifecycleEvent(context.Background(), sess, "DOMContentLoaded")
	}()
	time.Sleep(50 * time.Millisecond) // let the subscription register before pushing events

	push(`{"method":"Page.lifecycleEvent","params":{"name":"init"}}`)
	push(`{"method":"Page.lifecycleEvent","params":{"name":"DOMContentLoaded"}}`)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("awaitLifecycleEvent: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("awaitLifecycleEvent did not unblock on the matching event")
	}
}

func TestAwaitEventOrTimeoutProceedsWithoutEvent(t *testing.T) {
	t.Parallel()

	sess, _ := newFakeSession(t)

	start := time.Now()
	err := awaitEventOrTimeout(context.Background(), sess, "Page.loadEventFired", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("awaitEventOrTimeout: %v", err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatal("expected awaitEventOrTimeout to wait out the timeout")
	}
}

func TestAwaitEventOrTimeoutZeroIsNoOp(t *testing.T) {
	t.Parallel()

	sess, _ := newFakeSession(t)

	if err := awaitEventOrTimeout(context.Background(), sess, "Page.loadEventFired", 0); err != nil {
		t.Fatalf("awaitEventOrTimeout: %v", err)
	}
}
