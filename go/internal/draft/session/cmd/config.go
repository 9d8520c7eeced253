package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// PushKind selects the live-update transport.
type PushKind string

const (
	PushNATS      PushKind = "nats"
	PushWebSocket PushKind = "websocket"
	PushNone      PushKind = "none"
)

// DrafterConfig is the drafter's YAML file.
type DrafterConfig struct {
	ServerURL string `yaml:"server_url"`
	MatchID   string `yaml:"match_id"`
	UserID    string `yaml:"user_id"`
	Token     string `yaml:"token"`
	Push      struct {
		Kind       PushKind `yaml:"kind"`
		NATSURL    string   `yaml:"nats_url"`
		GatewayURL string   `yaml:"gateway_url"`
	} `yaml:"push"`
}

func defaultDrafterConfig() *DrafterConfig {
	var config DrafterConfig
	config.ServerURL = "http://localhost:8080"
	config.Push.Kind = PushWebSocket
	config.Push.NATSURL = "nats://localhost:4222"
	config.Push.GatewayURL = "ws://localhost:8081/ws/match"
	return &config
}

// loadDrafterConfig reads path over the defaults and applies MATCHDRAFT_*
// env overrides. A missing file is fine when the env fills the gaps.
func loadDrafterConfig(path string) (*DrafterConfig, error) {
	config := defaultDrafterConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	override(&config.ServerURL, "MATCHDRAFT_SERVER_URL")
	override(&config.MatchID, "MATCHDRAFT_MATCH_ID")
	override(&config.UserID, "MATCHDRAFT_USER_ID")
	override(&config.Token, "MATCHDRAFT_TOKEN")
	override(&config.Push.NATSURL, "MATCHDRAFT_NATS_URL")
	override(&config.Push.GatewayURL, "MATCHDRAFT_GATEWAY_URL")
	if kind := os.Getenv("MATCHDRAFT_PUSH"); kind != "" {
		config.Push.Kind = PushKind(kind)
	}

	if config.MatchID == "" || config.UserID == "" {
		return nil, errors.New("match_id and user_id are required")
	}
	switch config.Push.Kind {
	case PushNATS, PushWebSocket, PushNone:
	default:
		return nil, fmt.Errorf("unknown push kind %q", config.Push.Kind)
	}
	return config, nil
}

func override(field *string, key string) {
	if value := os.Getenv(key); value != "" {
		*field = value
	}
}
