package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
)

func TestNewMsg_RoutesByScope(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	broadcast, err := events.NewEnvelope(events.EventTypePickMade, "m1", "", events.PickMadePayload{MatchID: "m1"}, at)
	require.NoError(t, err)
	msg, err := NewMsg(broadcast)
	require.NoError(t, err)
	assert.Equal(t, "match.m1.events.pick-made", msg.Subject)
	assert.Equal(t, broadcast.EventID, msg.Header.Get(HeaderEventID))
	assert.Equal(t, "pick-made", msg.Header.Get(HeaderEventType))

	targeted, err := events.NewEnvelope(events.EventTypeRoundStart, "m1", "u1", events.RoundStartPayload{MatchID: "m1"}, at)
	require.NoError(t, err)
	msg, err = NewMsg(targeted)
	require.NoError(t, err)
	assert.Equal(t, "match.m1.users.u1.events.round-start", msg.Subject)

	decoded, err := DecodeMsg(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, targeted.EventID, decoded.EventID)
	assert.Equal(t, "u1", decoded.UserID)
	assert.JSONEq(t, string(targeted.Payload), string(decoded.Payload))
}

func TestDecodeMsg_RejectsIncomplete(t *testing.T) {
	_, err := DecodeMsg([]byte(`{"eventId":"x","payload":{}}`))
	assert.Error(t, err)

	_, err = DecodeMsg([]byte(`not json`))
	assert.Error(t, err)
}

func TestStreamConfig(t *testing.T) {
	sc := StreamConfig(DefaultJetStreamConfig())
	assert.Equal(t, "MATCH_EVENTS", sc.Name)
	assert.Equal(t, []string{"match.>"}, sc.Subjects)
	assert.True(t, isStreamConfigEqual(sc, StreamConfig(DefaultJetStreamConfig())))
}
