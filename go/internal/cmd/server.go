package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/matchdraft/go/internal/draft/matchapi"
)

// setupServer mounts the match RPC service and health endpoints behind CORS, serving
// HTTP/2 cleartext for Connect clients.
func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()
	path, handler := matchapi.NewMatchServiceHandler(services.Match)
	mux.Handle(path, handler)
	mux.HandleFunc("/health", writeStatus(func(context.Context) error { return nil }))
	mux.HandleFunc("/ready", writeStatus(services.Ready))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders: []string{"Grpc-Status", "Grpc-Message"},
	})

	return &http.Server{
		Addr:              net.JoinHostPort("", getEnv("PORT", "8080")),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// writeStatus answers 200 OK when check passes and 503 otherwise.
func writeStatus(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, body := http.StatusOK, "OK"
		if err := check(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, err.Error()
		}
		w.WriteHeader(status)
		if _, err := w.Write([]byte(body)); err != nil {
			log.Error().Err(err).Msg("failed to write health response")
		}
	}
}
