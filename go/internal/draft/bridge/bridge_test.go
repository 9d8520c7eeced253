package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

const (
	matchID = "m-1"
	userID  = "u-ash"
)

// newListeningBridge wires the bridge so that transport deliveries are queued
// and dispatched explicitly, the way the session loop does.
func newListeningBridge(t *testing.T) (*Bridge, *fakeChannel, *MockHost, *[]events.Envelope) {
	t.Helper()
	ch := &fakeChannel{}
	host := &MockHost{}
	queue := &[]events.Envelope{}
	b := New(ch, Session{MatchID: matchID, UserID: userID, Creds: Credentials{Token: "tok"}}, host,
		func(env events.Envelope) { *queue = append(*queue, env) })

	require.NoError(t, b.Join(context.Background()))
	require.Equal(t, StateListening, b.State())
	return b, ch, host, queue
}

func drain(b *Bridge, queue *[]events.Envelope) {
	for len(*queue) > 0 {
		env := (*queue)[0]
		*queue = (*queue)[1:]
		b.Dispatch(env)
	}
}

func envelope(t *testing.T, eventType events.EventType, scope events.Scope, payload any) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(eventType, scope.MatchID, scope.UserID, payload, time.Now())
	require.NoError(t, err)
	return env
}

func TestJoin_SubscribesBothScopes(t *testing.T) {
	_, ch, _, _ := newListeningBridge(t)

	require.Len(t, ch.memberships, 2)
	assert.Equal(t, events.Scope{MatchID: matchID}, ch.memberships[0].scope)
	assert.Equal(t, events.Scope{MatchID: matchID, UserID: userID}, ch.memberships[1].scope)
	for _, m := range ch.memberships {
		assert.Equal(t, "tok", m.creds.Token)
		for _, et := range events.AllEventTypes {
			assert.True(t, m.registered(et), "%s on %s", et, m.scope)
		}
	}
}

func TestJoin_MissingCredentialsDegradesToPullOnly(t *testing.T) {
	ch := &fakeChannel{}
	b := New(ch, Session{MatchID: matchID, UserID: userID}, &MockHost{}, func(events.Envelope) {})

	err := b.Join(context.Background())
	assert.True(t, errors.Is(err, ErrMissingCredentials))
	assert.Equal(t, StateIdle, b.State())
	assert.Empty(t, ch.memberships)
}

func TestJoin_TransportFailureLeavesJoinedScopes(t *testing.T) {
	ch := &fakeChannel{joinErr: errors.New("boom")}
	b := New(ch, Session{MatchID: matchID, UserID: userID, Creds: Credentials{Token: "tok"}}, &MockHost{}, func(events.Envelope) {})

	err := b.Join(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, b.State())
}

func TestPickMade_HotAppliesAndRefreshes(t *testing.T) {
	b, ch, host, queue := newListeningBridge(t)

	snap := models.Snapshot{Match: models.Match{ID: matchID}}
	host.On("ApplySnapshot", snap).Return().Once()
	host.On("RefreshRoundState").Return().Once()
	host.On("RefreshPickable").Return().Once()

	ch.publish(envelope(t, events.EventTypePickMade, events.Scope{MatchID: matchID},
		events.PickMadePayload{MatchID: matchID, Data: &snap}))
	drain(b, queue)

	host.AssertExpectations(t)
	assert.Equal(t, StateListening, b.State())
}

func TestPickMade_StaleMatchIgnored(t *testing.T) {
	b, _, host, _ := newListeningBridge(t)

	env := envelope(t, events.EventTypePickMade, events.Scope{MatchID: matchID},
		events.PickMadePayload{MatchID: "m-other"})
	b.Dispatch(env)

	env = envelope(t, events.EventTypePickMade, events.Scope{MatchID: "m-other"},
		events.PickMadePayload{MatchID: "m-other"})
	b.Dispatch(env)

	host.AssertNotCalled(t, "RefreshRoundState")
	host.AssertNotCalled(t, "RefreshPickable")
}

func TestRoundPreStart_SyncsClockAndSeedsCountdown(t *testing.T) {
	b, ch, host, queue := newListeningBridge(t)

	start := time.Date(2025, 5, 1, 9, 0, 5, 0, time.UTC)
	round, delay := 2, 5
	host.On("ObserveServerStart", start).Return().Once()
	host.On("SeedPreRound", 2, 5).Return().Once()
	host.On("RefreshRoundState").Return().Once()

	ch.publish(envelope(t, events.EventTypeRoundPreStart, events.Scope{MatchID: matchID, UserID: userID},
		events.RoundPreStartPayload{MatchID: matchID, StartTime: &start, RoundNumber: &round, DelaySeconds: &delay}))
	drain(b, queue)

	host.AssertExpectations(t)
}

func TestRoundPreStart_WithoutDelayOnlySyncs(t *testing.T) {
	b, _, host, _ := newListeningBridge(t)

	start := time.Date(2025, 5, 1, 9, 0, 5, 0, time.UTC)
	host.On("ObserveServerStart", start).Return().Once()

	b.Dispatch(envelope(t, events.EventTypeRoundPreStart, events.Scope{MatchID: matchID},
		events.RoundPreStartPayload{MatchID: matchID, StartTime: &start, Message: "get ready"}))

	host.AssertExpectations(t)
	host.AssertNotCalled(t, "SeedPreRound", mock.Anything, mock.Anything)
}

func TestRoundStart_HandsOffExactlyOnce(t *testing.T) {
	b, ch, host, queue := newListeningBridge(t)

	start := time.Date(2025, 5, 1, 9, 0, 5, 0, time.UTC)
	payload := events.RoundStartPayload{StartTime: &start, Round: &events.RoundRef{RoundNumber: 2}}
	host.On("ObserveServerStart", start).Return().Once()
	host.On("HandOff", mock.AnythingOfType("events.RoundStartPayload")).Return().Once()

	env := envelope(t, events.EventTypeRoundStart, events.Scope{MatchID: matchID}, payload)

	// both deliveries reach the queue before either is processed
	assert.Equal(t, 1, ch.publish(env))
	*queue = append(*queue, env)
	drain(b, queue)

	// redelivery after self-unsubscription finds no handler
	assert.Equal(t, 0, ch.publish(env))

	host.AssertNumberOfCalls(t, "HandOff", 1)
	host.AssertExpectations(t)
	assert.Equal(t, StateHandedOff, b.State())
	for _, m := range ch.memberships {
		assert.False(t, m.registered(events.EventTypeRoundStart))
		assert.True(t, m.registered(events.EventTypePickMade))
	}
}

func TestRoundStart_IgnoredAfterHandOffEvenForOtherEvents(t *testing.T) {
	b, _, host, _ := newListeningBridge(t)
	host.On("HandOff", mock.Anything).Return().Once()

	b.Dispatch(envelope(t, events.EventTypeRoundStart, events.Scope{MatchID: matchID}, events.RoundStartPayload{}))
	b.Dispatch(envelope(t, events.EventTypePickMade, events.Scope{MatchID: matchID}, events.PickMadePayload{MatchID: matchID}))

	host.AssertExpectations(t)
	host.AssertNotCalled(t, "RefreshRoundState")
}

func TestClose_UnsubscribesAndLeaves(t *testing.T) {
	b, ch, host, queue := newListeningBridge(t)

	b.Close()
	assert.Equal(t, StateClosed, b.State())
	for _, m := range ch.memberships {
		assert.True(t, m.left)
		for _, et := range events.AllEventTypes {
			assert.False(t, m.registered(et))
		}
	}

	ch.publish(envelope(t, events.EventTypePickMade, events.Scope{MatchID: matchID}, events.PickMadePayload{MatchID: matchID}))
	drain(b, queue)
	host.AssertNotCalled(t, "RefreshRoundState")
}

func TestDispatch_MalformedPayloadIsDropped(t *testing.T) {
	b, _, host, _ := newListeningBridge(t)

	b.Dispatch(events.Envelope{EventType: events.EventTypePickMade, MatchID: matchID, Payload: []byte("{")})
	host.AssertNotCalled(t, "RefreshRoundState")
}
