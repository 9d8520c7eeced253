package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const retryDelay = 5 * time.Second

// RunScheduler consumes match events from JetStream and drives round clocks
// until ctx is cancelled. Active matches are recovered from the store first.
func (o *Orchestrator) RunScheduler(ctx context.Context) error {
	if o.consumer == nil {
		return errors.New("orchestrator has no consumer; call EnsureConsumer first")
	}

	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.cfg.NumWorkers).
		Msg("orchestrator started as JetStream consumer")

	wg := o.startWorkers(ctx)
	defer func() {
		log.Info().Str("instance", o.instanceID).Msg("shutting down workers")
		o.shutdown()
		wg.Wait()
		log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	}()

	if err := o.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("failed to recover active matches")
	}

	eventCh := make(chan consumedMsg, eventChannelBufferSize)
	consumeCtx, err := o.consumer.Consume(o.enqueueMsg(ctx, eventCh))
	if err != nil {
		return fmt.Errorf("start JetStream consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", o.instanceID).Msg("orchestrator shutdown requested")
			return nil
		case msg := <-eventCh:
			if err := o.processEvent(ctx, msg); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process event")
				_ = msg.Nak()
			} else {
				_ = msg.Ack()
			}
		}
	}
}

// startWorkers launches the worker pool. Workers exit when ctx is cancelled
// or the orchestrator shuts down.
func (o *Orchestrator) startWorkers(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.NumWorkers; i++ {
		wg.Add(1)
		go o.worker(ctx, &wg, i)
	}
	return &wg
}

// shutdown stops every timer and releases blocked workers.
func (o *Orchestrator) shutdown() {
	select {
	case <-o.done:
		return
	default:
		close(o.done)
	}

	o.activeTimersMu.Lock()
	for matchID, st := range o.activeTimers {
		stopAndDrainTimer(st.timer)
		log.Debug().Str("match_id", matchID).Msg("cancelled timer on shutdown")
	}
	o.activeTimers = make(map[string]scheduledTimer)
	o.activeTimersMu.Unlock()
}

func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case t := <-o.workCh:
			log.Debug().
				Str("match_id", t.matchID).
				Int("open_round", t.openRound).
				Int("worker_id", workerID).
				Msg("worker handling timer")

			if err := o.handleTask(ctx, t); err != nil {
				log.Error().
					Err(err).
					Str("match_id", t.matchID).
					Str("instance", o.instanceID).
					Int("worker_id", workerID).
					Msg("timer handling failed, retrying later")
				o.schedule(t.matchID, scheduleKey{waitingOn: "retry", at: o.clock.Now().Add(retryDelay)}, o.clock.Now().Add(retryDelay), t)
			}
		}
	}
}
