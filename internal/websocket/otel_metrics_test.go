package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOTelMetrics(t *testing.T) {
	// The default global meter provider is a no-op, which still hands
	// out working instruments
	metrics, err := NewOTelMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
	assert.NotNil(t, metrics.connectionsTotal)
	assert.NotNil(t, metrics.messagesTotal)
	assert.NotNil(t, metrics.broadcastOperations)
}

func TestOTelMetricsRecording(t *testing.T) {
	metrics, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordConnection(ctx, "client-1", "127.0.0.1:9000")
		metrics.RecordDisconnection(ctx, "client-1", time.Second, "normal")
		metrics.RecordConnectionError(ctx, "client-1", "upgrade_failed", errors.New("bad handshake"))
		metrics.RecordConnectionError(ctx, "client-1", "upgrade_failed", nil)

		metrics.RecordMessageSent(ctx, "server_message", "client-1", 128)
		metrics.RecordMessageReceived(ctx, "client_message", "client-1", 64)
		metrics.RecordMessageError(ctx, "server_message", "client-1", "write_failed", errors.New("broken pipe"))
		metrics.RecordMessageLatency(ctx, "outbound", "server_message", 5*time.Millisecond)

		metrics.RecordQueueDepth(ctx, 3, "broadcast")
		metrics.RecordQueueOperation(ctx, "enqueue", "broadcast")
		metrics.RecordDroppedMessage(ctx, "broadcast", "client_buffer_full")

		metrics.RecordBroadcast(ctx, "broadcast", 5, 4, 1)
		metrics.RecordClientCount(ctx, 5)

		metrics.RecordRunEvent(ctx, "run-1", "run:snapshot", "impute")
		metrics.RecordSystemEvent(ctx, "health", "info")
	})
}

func TestInitOTelMetrics(t *testing.T) {
	original := globalOTelMetrics
	defer func() { globalOTelMetrics = original }()

	globalOTelMetrics = nil
	assert.Nil(t, GetOTelMetrics())

	require.NoError(t, InitOTelMetrics())
	assert.NotNil(t, GetOTelMetrics())
}
