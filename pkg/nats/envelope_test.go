package nats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso-risk-agent-be/pkg/events"
)

func TestEnvelopeCarriesEventType(t *testing.T) {
	ev := events.NewControlsCommitted("u1", []string{"c1"}, []string{"r1"})
	data, err := json.Marshal(envelope{Type: ev.EventType(), OccurredAt: ev.Timestamp(), Data: ev.Payload()})
	require.NoError(t, err)

	got, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, events.ControlsCommitted, got.EventType())
	assert.Equal(t, "u1", got.Payload()["user_id"])
	assert.WithinDuration(t, ev.Timestamp(), got.Timestamp(), time.Second)
}

func TestDecodeRejectsUntypedPayload(t *testing.T) {
	_, err := decode([]byte(`{"data": {}}`))
	assert.Error(t, err)

	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "agent.risk.created", Subject(events.RiskCreated))
	assert.Equal(t, "agent.>", Subject(">"))
}
