package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducerWritesEnvelope(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{w: w}

	require.NoError(t, p.Publish(context.Background(), "42", EventAccepted, map[string]string{"event_id": "evt_abc"}))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, EventAccepted, string(msg.Headers[0].Value))

	var env struct {
		ID   string            `json:"id"`
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EventAccepted, env.Type)
	assert.Equal(t, "evt_abc", env.Data["event_id"])
	_, err := ulid.Parse(env.ID)
	assert.NoError(t, err)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewEnvelopeUsesUTC(t *testing.T) {
	local := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	env := NewEnvelope(EventAccepted, nil, local)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.True(t, env.OccurredAt.Equal(local))
}
