// Command drafter is a terminal client for the pick phase of a match.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/bridge"
	"github.com/mcdev12/matchdraft/go/internal/draft/matchapi"
	"github.com/mcdev12/matchdraft/go/internal/draft/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	path := os.Getenv("DRAFTER_CONFIG")
	if path == "" {
		path = "drafter.yaml"
	}
	config, err := loadDrafterConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load drafter config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := drive(ctx, config); err != nil {
		log.Fatal().Err(err).Msg("drafter stopped")
	}
}

// drive runs one phase after another over a single push channel, carrying
// each handoff into the next session.
func drive(ctx context.Context, config *DrafterConfig) error {
	client := matchapi.NewClient(config.ServerURL, config.Token)
	channel := newPushChannel(config)
	if closer, ok := channel.(io.Closer); ok {
		defer closer.Close()
	}
	lines := readLines(ctx)

	var resume *session.Handoff
	for phase := 1; ; phase++ {
		next, err := runPhase(ctx, config, client, channel, resume, lines)
		if err != nil {
			return fmt.Errorf("phase %d: %w", phase, err)
		}
		if next == nil || ctx.Err() != nil {
			return nil
		}
		resume = next
	}
}

// runPhase runs one session until the round hands off, the match ends or
// ctx is cancelled. It returns the handoff for the next phase, or nil when
// the drafter should exit.
func runPhase(ctx context.Context, config *DrafterConfig, client *matchapi.Client, channel bridge.PushChannel, resume *session.Handoff, lines <-chan string) (*session.Handoff, error) {
	sessionConfig := session.DefaultSessionConfig()
	sessionConfig.MatchID = config.MatchID
	sessionConfig.UserID = config.UserID
	sessionConfig.Token = config.Token
	sessionConfig.Resume = resume

	s := session.New(sessionConfig, client, channel, clockwork.NewRealClock())
	watch := &finishWatch{client: client, matchID: config.MatchID, userID: config.UserID, out: os.Stdout}

	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(phaseCtx) }()

	out := os.Stdout
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case err := <-runErr:
			return nil, err
		case v := <-s.Updates():
			renderView(out, v)
			if finished, err := watch.finished(ctx, v); err != nil {
				log.Warn().Err(err).Msg("failed to check match status")
			} else if finished {
				return nil, nil
			}
		case n := <-s.Notices():
			renderNotice(out, n)
		case h := <-s.Handoff():
			if h.Start.Round != nil {
				fmt.Fprintf(out, "round %d is starting\n", h.Start.Round.RoundNumber)
			}
			<-s.Done()
			return &h, nil
		case line, ok := <-lines:
			if !ok {
				return nil, nil
			}
			entityID := strings.TrimSpace(line)
			if entityID == "" {
				continue
			}
			if err := s.RequestPick(ctx, entityID); err != nil {
				if errors.Is(err, session.ErrClosed) {
					continue
				}
				fmt.Fprintf(out, "! %v\n", err)
			}
		}
	}
}

func newPushChannel(config *DrafterConfig) bridge.PushChannel {
	switch config.Push.Kind {
	case PushNATS:
		natsConfig := bridge.DefaultNATSChannelConfig()
		natsConfig.URL = config.Push.NATSURL
		return bridge.NewNATSChannel(natsConfig)
	case PushWebSocket:
		wsConfig := bridge.DefaultWebSocketChannelConfig()
		wsConfig.GatewayURL = config.Push.GatewayURL
		return bridge.NewWebSocketChannel(wsConfig)
	default:
		return nil
	}
}

func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
