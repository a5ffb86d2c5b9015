package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

func TestBridgePublishDeliversThroughRunSubscription(t *testing.T) {
	client := newTestRedis(t)
	registry := NewConnectionRegistry(nil)
	bridge := NewBridge(client, registry, nil)

	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bridge.Run(runCtx)
	time.Sleep(50 * time.Millisecond) // let the subscription attach

	org := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := registry.Accept(w, r, &org)
		if err != nil {
			return
		}
		<-r.Context().Done()
		registry.Remove(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	wsConn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { wsConn.Close(websocket.StatusNormalClosure, "") })
	time.Sleep(50 * time.Millisecond)

	bridge.Publish(context.Background(), CrawlComplete, map[string]any{"source_id": "s1"}, &org)

	ctx, readCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer readCancel()
	var env Envelope
	if err := wsjson.Read(ctx, wsConn, &env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Event != CrawlComplete {
		t.Fatalf("event = %q, want %q", env.Event, CrawlComplete)
	}
}
