package orchestrator

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/eventbus"
	"github.com/mcdev12/matchdraft/go/internal/draft/events"
)

// consumedMsg is the part of a JetStream message the orchestrator uses.
type consumedMsg interface {
	Subject() string
	Data() []byte
	Ack() error
	Nak() error
}

// EnsureConsumer creates or binds the durable pick-made consumer. Every
// stored event is replayed on first start.
func (o *Orchestrator) EnsureConsumer(ctx context.Context, js jetstream.JetStream) error {
	stream, err := js.Stream(ctx, o.cfg.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          o.cfg.ConsumerName,
		Durable:       o.cfg.ConsumerName,
		Description:   "Match orchestrator pick consumer",
		FilterSubject: events.PickMadeSubjectFilter,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    o.cfg.MaxDeliver,
		AckWait:       o.cfg.AckWait,
		MaxAckPending: o.cfg.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, o.cfg.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().Str("consumer", o.cfg.ConsumerName).Msg("created JetStream consumer for orchestrator")
	} else {
		log.Info().Str("consumer", o.cfg.ConsumerName).Msg("using existing JetStream consumer for orchestrator")
	}

	o.consumer = consumer
	return nil
}

func (o *Orchestrator) enqueueMsg(ctx context.Context, eventCh chan<- consumedMsg) jetstream.MessageHandler {
	return func(msg jetstream.Msg) {
		select {
		case eventCh <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	}
}

// processEvent decodes one bus message and hands it to HandleEvent.
func (o *Orchestrator) processEvent(ctx context.Context, msg consumedMsg) error {
	env, err := eventbus.DecodeMsg(msg.Data())
	if err != nil {
		return err
	}

	log.Debug().
		Str("subject", msg.Subject()).
		Str("match_id", env.MatchID).
		Str("event_type", string(env.EventType)).
		Msg("processing orchestrator event")

	return o.HandleEvent(ctx, env)
}

// HandleEvent reacts to a match event. Only picks move the round clock.
func (o *Orchestrator) HandleEvent(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.EventTypePickMade:
		return o.Evaluate(ctx, env.MatchID)
	default:
		log.Debug().Str("event_type", string(env.EventType)).Msg("ignoring event")
		return nil
	}
}
