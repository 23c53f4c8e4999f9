package devtools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{ReadBufferSize: 1 << 20, WriteBufferSize: 1 << 20}

// echoServer runs a minimal DevTools-shaped WebSocket endpoint: it
// echoes back {"id":<id>,"result":{}} for every inbound frame, letting
// tests exercise Session.Send's id correlation without a real browser.
func echoServer(t *testing.T) (wsURL string, closeFn func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg struct {
				ID int64 `json:"id"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			reply := []byte(`{"id":` + strconv.FormatInt(msg.ID, 10) + `,"result":{}}`)
			if err := conn.WriteMessage(typ, reply); err != nil {
				return
			}
		}
	}))
	return "ws" + strings.TrimPrefix(srv.URL, "http"), srv.Close
}

func TestSendCorrelatesReplyByID(t *testing.T) {
	t.Parallel()

	wsURL, closeFn := echoServer(t)
	defer closeFn()

	sess, err := Open(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := sess.Send(ctx, cdproto.MethodType("Test.ping"), nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Send failed under concurrency: %v", err)
	}
}

func newSilentWSServer(t *testing.T, onUpgrade func(*websocket.Conn)) (wsURL string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		onUpgrade(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSendTimesOutWithoutReply(t *testing.T) {
	t.Parallel()

	wsURL := newSilentWSServer(t, func(conn *websocket.Conn) {
		// Never reply; let the caller's Send time out.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess, err := Open(context.Background(), wsURL, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	_, err = sess.Send(context.Background(), cdproto.MethodType("Test.ping"), nil)
	if err != ErrTimeout {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestCloseFailsInFlightWaiters(t *testing.T) {
	t.Parallel()

	ready := make(chan struct{})
	wsURL := newSilentWSServer(t, func(conn *websocket.Conn) {
		close(ready)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess, err := Open(context.Background(), wsURL, WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := sess.Send(context.Background(), cdproto.MethodType("Test.ping"), nil)
		done <- err
	}()

	<-ready
	time.Sleep(20 * time.Millisecond)
	sess.Close()

	select {
	case err := <-done:
		if err != ErrConnectionClosed {
			t.Fatalf("got %v, want ErrConnectionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not unblock after Close")
	}
}
