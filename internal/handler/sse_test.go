package handler

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub-notify/internal/domain"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestSSEWriter_Framing(t *testing.T) {
	var buf bytes.Buffer
	out := newSSEWriter(bufio.NewWriter(&buf))

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, out.Emit(domain.NewHeartbeatEvent(at)))
	require.NoError(t, out.ping())
	require.NoError(t, out.Emit(domain.NewDisconnectedEvent("timeout")))

	assert.Equal(t,
		"event: heartbeat\ndata: {\"time\":\"2026-03-01T09:00:00Z\"}\n\n"+
			": ping\n\n"+
			"event: disconnected\ndata: {\"reason\":\"timeout\"}\n\n",
		buf.String())
}

func TestSSEWriter_ConnectedPayload(t *testing.T) {
	var buf bytes.Buffer
	out := newSSEWriter(bufio.NewWriter(&buf))
	userID := uuid.MustParse("6f1c2b7e-8d1e-4a53-9c55-1e0f3b7a9d10")

	require.NoError(t, out.Emit(domain.NewConnectedEvent(userID)))
	assert.Equal(t, "event: connected\ndata: {\"recipientId\":\"6f1c2b7e-8d1e-4a53-9c55-1e0f3b7a9d10\"}\n\n", buf.String())
}

func TestSSEWriter_FlushFailure(t *testing.T) {
	out := newSSEWriter(bufio.NewWriter(failingWriter{}))

	assert.Error(t, out.ping())
	assert.Error(t, out.Emit(domain.NewHeartbeatEvent(time.Now())))
}
