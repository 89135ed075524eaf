package feedback

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

func TestHubBroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub(IndicatorConfig{})
	client := hub.Register()
	defer hub.Unregister(client)

	for i := 0; i < clientSendQueue+10; i++ {
		hub.Broadcast([]byte("x"))
	}

	stats := hub.Stats()
	if stats.Sent != clientSendQueue {
		t.Errorf("Expected %d sent, got %d", clientSendQueue, stats.Sent)
	}
	if stats.Dropped != 10 {
		t.Errorf("Expected 10 dropped, got %d", stats.Dropped)
	}
}

func TestHubUnregisterIdempotent(t *testing.T) {
	hub := NewHub(IndicatorConfig{})
	client := hub.Register()

	hub.Unregister(client)
	hub.Unregister(client)

	if _, ok := <-client.Send; ok {
		t.Error("Expected send channel closed")
	}
	if hub.Stats().Clients != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.Stats().Clients)
	}
}

func TestHubCloseRejectsClients(t *testing.T) {
	hub := NewHub(IndicatorConfig{})
	client := hub.Register()

	hub.Close()
	hub.Close()

	if _, ok := <-client.Send; ok {
		t.Error("Expected existing client closed")
	}
	if hub.Register() != nil {
		t.Error("Expected Register to return nil after Close")
	}
	hub.Unregister(client)
}

func TestHubWebsocketStream(t *testing.T) {
	hub := NewHub(IndicatorConfig{})
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	eventually(t, func() bool { return hub.Stats().Clients == 1 }, "client registered")

	hub.OnAngle(types.AngleSample{Degrees: 135, Seq: 7, SessionID: "s1"})
	hub.OnReport(Report{SessionID: "s1", MaxAngle: 135, Headline: "Session Complete! You reached 135° ROM"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var angle Message
	if err := conn.ReadJSON(&angle); err != nil {
		t.Fatalf("read angle: %v", err)
	}
	if angle.Type != "angle" || angle.Indicator == nil {
		t.Fatalf("Expected angle message, got %+v", angle)
	}
	if angle.Indicator.Label != "Right Arm ROM: 135°" || angle.Indicator.Seq != 7 {
		t.Errorf("Unexpected indicator %+v", angle.Indicator)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report Message
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Type != "report" || report.Report == nil || report.Report.MaxAngle != 135 {
		t.Errorf("Unexpected report message %s", raw)
	}

	conn.Close()
	eventually(t, func() bool { return hub.Stats().Clients == 0 }, "client unregistered")
}

func TestHubRejectsPlainHTTP(t *testing.T) {
	hub := NewHub(IndicatorConfig{})
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		t.Error("Expected non-200 for non-websocket request")
	}
}
