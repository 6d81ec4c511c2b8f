package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConstants(t *testing.T) {
	assert.Equal(t, 10*time.Second, writeWait)
	assert.Equal(t, 60*time.Second, pongWait)
	assert.Equal(t, (pongWait*9)/10, pingPeriod)
	assert.Equal(t, 512, maxMessageSize)
}

func TestNewClientWithConnection(t *testing.T) {
	hub := NewHub(testLogger())
	conn := NewMockConnection()
	conn.RemoteAddress = "192.168.1.5:51234"

	client := NewClientWithConnection(hub, conn, testLogger())

	assert.NotEmpty(t, client.id)
	assert.Equal(t, "192.168.1.5:51234", client.remoteAddr)
	assert.Equal(t, 256, cap(client.send))
	assert.NotNil(t, client.logger)
	assert.False(t, client.connectedAt.IsZero())
}

func TestClientWritePumpSendsFrames(t *testing.T) {
	hub := NewHub(testLogger())
	conn := NewMockConnection()
	client := NewClientWithConnection(hub, conn, testLogger())

	messages := []string{
		`{"type":"output","data":"message1"}`,
		`{"type":"output","data":"message2"}`,
		`{"type":"output","data":"message3"}`,
	}
	for _, msg := range messages {
		client.send <- []byte(msg)
	}

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	// Wait until all frames were written, then close the channel so the
	// pump sends a close frame and exits
	require.Eventually(t, func() bool {
		count := 0
		for _, written := range conn.GetWrittenMessages() {
			if written.Type == websocket.TextMessage {
				count++
			}
		}
		return count == len(messages)
	}, time.Second, 10*time.Millisecond)

	close(client.send)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("write pump did not exit after channel close")
	}

	written := conn.GetWrittenMessages()
	var texts []string
	closeFrames := 0
	for _, msg := range written {
		switch msg.Type {
		case websocket.TextMessage:
			texts = append(texts, string(msg.Data))
		case websocket.CloseMessage:
			closeFrames++
		}
	}
	assert.Equal(t, messages, texts)
	assert.Equal(t, 1, closeFrames)
	assert.Equal(t, int64(3), client.messagesSent)
	assert.True(t, conn.Closed)
}

func TestClientWritePumpStopsOnWriteError(t *testing.T) {
	hub := NewHub(testLogger())
	conn := NewMockConnection()
	conn.WriteMessageFunc = func(messageType int, data []byte) error {
		return assert.AnError
	}
	client := NewClientWithConnection(hub, conn, testLogger())

	client.send <- []byte(`{"type":"output"}`)

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("write pump did not exit on write error")
	}

	assert.Equal(t, int64(0), client.messagesSent)
}

func TestClientReadPumpCountsMessages(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	conn := NewMockConnection()
	conn.AddReadMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`), nil)
	conn.AddReadMessage(websocket.TextMessage, []byte(`{"type":"noop"}`), nil)

	client := NewClientWithConnection(hub, conn, testLogger())

	// ReadPump returns once the mock runs out of messages
	client.ReadPump()

	assert.Equal(t, int64(2), client.messagesReceived)
	assert.True(t, conn.Closed)
	assert.Equal(t, int64(maxMessageSize), conn.ReadLimit)
	assert.False(t, conn.ReadDeadline.IsZero())

	metrics := hub.GetHubMetrics()
	assert.Equal(t, int64(2), metrics["messages_received"])
}

func TestServeWSIntegration(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		ServeWS(hub, conn)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	// The first frame is the connection message
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)

	var connMsg map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &connMsg))
	assert.Equal(t, TypeConnection, connMsg["type"])
	data := connMsg["data"].(map[string]interface{})
	assert.Equal(t, "connected", data["status"])
	assert.NotEmpty(t, data["client_id"])

	// Heartbeats are consumed without closing the connection
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))

	// Broadcasts reach the dialer
	hub.BroadcastOutput("profiling complete", LevelSuccess)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err = ws.ReadMessage()
	require.NoError(t, err)

	var outMsg map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &outMsg))
	assert.Equal(t, TypeOutput, outMsg["type"])
	outData := outMsg["data"].(map[string]interface{})
	assert.Equal(t, "profiling complete", outData["message"])
	assert.Equal(t, LevelSuccess, outData["level"])
}

func TestConnectionWrapperRemoteAddr(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	addrCh := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		wrapped := NewConnectionWrapper(conn)
		addrCh <- wrapped.RemoteAddr()
		conn.Close()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	select {
	case addr := <-addrCh:
		assert.NotEmpty(t, addr)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for remote address")
	}
}
