package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
)

type memStore struct {
	mu     sync.Mutex
	rows   []Event
	sent   map[uuid.UUID]bool
	marked []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{sent: map[uuid.UUID]bool{}}
}

func (s *memStore) Insert(_ context.Context, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, Event{
		ID:        uuid.MustParse(env.EventID),
		MatchID:   env.MatchID,
		EventType: env.EventType,
		Envelope:  data,
	})
	return nil
}

func (s *memStore) FetchByID(_ context.Context, id uuid.UUID) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id && !s.sent[id] {
			return row, nil
		}
	}
	return Event{}, ErrNotFound
}

func (s *memStore) FetchUnsent(_ context.Context, limit int32) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, row := range s.rows {
		if !s.sent[row.ID] && int32(len(out)) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memStore) MarkSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = true
	s.marked = append(s.marked, id)
	return nil
}

func (s *memStore) markedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marked)
}

type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	published []events.Envelope
}

func (p *flakyPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.failures > 0 {
		p.failures--
		return errors.New("nats unavailable")
	}
	p.published = append(p.published, env)
	return nil
}

func (p *flakyPublisher) publishedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.published))
	for _, env := range p.published {
		ids = append(ids, env.EventID)
	}
	return ids
}

type chanNotifier struct {
	notes  chan *pq.Notification
	closed bool
}

func (n *chanNotifier) NotificationChannel() <-chan *pq.Notification { return n.notes }
func (n *chanNotifier) Ping() error                                  { return nil }
func (n *chanNotifier) Close() error {
	n.closed = true
	return nil
}

func insertEvent(t *testing.T, store *memStore, matchID string) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(events.EventTypePickMade, matchID, "", events.PickMadePayload{MatchID: matchID}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), env))
	return env
}

func testConfig() ListenerConfig {
	cfg := DefaultListenerConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Second
	return cfg
}

func TestProcessUnsent_PublishesAndMarks(t *testing.T) {
	store := newMemStore()
	first := insertEvent(t, store, "m1")
	second := insertEvent(t, store, "m2")
	pub := &flakyPublisher{}
	l := NewListener(store, &chanNotifier{}, pub, clockwork.NewFakeClock(), testConfig())

	require.NoError(t, l.processUnsent(context.Background()))
	assert.Equal(t, []string{first.EventID, second.EventID}, pub.publishedIDs())
	assert.Equal(t, 2, store.markedCount())

	// nothing left on the next sweep
	require.NoError(t, l.processUnsent(context.Background()))
	assert.Len(t, pub.publishedIDs(), 2)
}

func TestHandleNotification(t *testing.T) {
	store := newMemStore()
	env := insertEvent(t, store, "m1")
	pub := &flakyPublisher{}
	l := NewListener(store, &chanNotifier{}, pub, clockwork.NewFakeClock(), testConfig())

	assert.Error(t, l.handleNotification(context.Background(), "not-a-uuid"))
	assert.NoError(t, l.handleNotification(context.Background(), uuid.NewString()))
	assert.Empty(t, pub.publishedIDs())

	require.NoError(t, l.handleNotification(context.Background(), env.EventID))
	assert.Equal(t, []string{env.EventID}, pub.publishedIDs())

	// already sent rows are skipped
	require.NoError(t, l.handleNotification(context.Background(), env.EventID))
	assert.Len(t, pub.publishedIDs(), 1)
}

func TestPublishWithRetry_BacksOff(t *testing.T) {
	store := newMemStore()
	env := insertEvent(t, store, "m1")
	pub := &flakyPublisher{failures: 1}
	clock := clockwork.NewFakeClock()
	l := NewListener(store, &chanNotifier{}, pub, clock, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := store.FetchUnsent(ctx, 10)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- l.publishWithRetry(ctx, rows[0]) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("publish did not complete")
	}
	assert.Equal(t, []string{env.EventID}, pub.publishedIDs())
	assert.Equal(t, 1, store.markedCount())
}

func TestPublishWithRetry_GivesUp(t *testing.T) {
	store := newMemStore()
	insertEvent(t, store, "m1")
	pub := &flakyPublisher{failures: 10}
	cfg := testConfig()
	cfg.MaxRetries = 0
	l := NewListener(store, &chanNotifier{}, pub, clockwork.NewFakeClock(), cfg)

	rows, err := store.FetchUnsent(context.Background(), 10)
	require.NoError(t, err)
	err = l.publishWithRetry(context.Background(), rows[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish failed after 1 attempts")
	assert.Zero(t, store.markedCount())
}

func TestStart_RelaysNotifications(t *testing.T) {
	store := newMemStore()
	backlog := insertEvent(t, store, "m1")
	pub := &flakyPublisher{}
	notifier := &chanNotifier{notes: make(chan *pq.Notification, 1)}
	l := NewListener(store, notifier, pub, clockwork.NewFakeClock(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, func() bool { return len(pub.publishedIDs()) == 1 }, time.Second, 5*time.Millisecond)

	fresh := insertEvent(t, store, "m1")
	notifier.notes <- &pq.Notification{Channel: "match_outbox_events", Extra: fresh.EventID}
	require.Eventually(t, func() bool { return len(pub.publishedIDs()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{backlog.EventID, fresh.EventID}, pub.publishedIDs())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
	assert.True(t, notifier.closed)
}

func TestWriter_Inserts(t *testing.T) {
	store := newMemStore()
	w := &Writer{store: store}
	env, err := events.NewEnvelope(events.EventTypeRoundStart, "m1", "u1", events.RoundStartPayload{MatchID: "m1"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, w.Publish(context.Background(), env))
	rows, err := store.FetchUnsent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	decoded, err := rows[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "u1", decoded.UserID)
	assert.Equal(t, events.EventTypeRoundStart, rows[0].EventType)
}
