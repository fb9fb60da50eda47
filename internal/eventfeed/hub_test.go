package eventfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"headlessrun/internal/escalate"
)

func dialFeed(t *testing.T, ts *httptest.Server, ctx context.Context) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + ts.URL[len("http"):] + "/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func waitForEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, expectedOp string, publish func()) []byte {
	t.Helper()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			publish()
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
	defer close(done)

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read ws failed: %v", err)
		}
		var evt Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			t.Fatalf("decode ws event failed: %v", err)
		}
		if evt.Type == "event" && evt.Op == expectedOp {
			return msg
		}
	}
}

func TestHubPublish(t *testing.T) {
	srv := NewServer(NewHub())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialFeed(t, ts, ctx)

	msg := waitForEvent(t, ctx, conn, "attempt.started", func() {
		srv.Hub().Publish("attempt.started", "run-1", map[string]any{"strategy": "instrumented_spawn"})
	})

	var evt Event
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["run_id"] != "run-1" {
		t.Fatalf("expected run_id run-1, got %v", payload["run_id"])
	}
	if payload["strategy"] != "instrumented_spawn" {
		t.Fatalf("expected strategy in payload, got %v", payload["strategy"])
	}
}

func TestBroadcasterEvents(t *testing.T) {
	srv := NewServer(nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialFeed(t, ts, ctx)

	b := NewBroadcaster(srv.Hub(), "run-2")
	msg := waitForEvent(t, ctx, conn, "prompt.answered", func() {
		b.PromptAnswered(escalate.InstrumentedSpawn, "yes-no", "Proceed? [y/N]")
	})

	var evt Event
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["rule"] != "yes-no" {
		t.Fatalf("expected rule yes-no, got %v", payload["rule"])
	}
}

func TestHealthz(t *testing.T) {
	srv := NewServer(NewHub())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv := NewServer(NewHub())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after cancel")
	}
}
