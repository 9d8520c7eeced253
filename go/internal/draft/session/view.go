package session

import (
	"time"

	"github.com/mcdev12/matchdraft/go/internal/draft/bridge"
	"github.com/mcdev12/matchdraft/go/internal/draft/roundstate"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// View is the read-only projection handed to the host UI.
type View struct {
	Ready             bool                   `json:"ready"`
	Turn              roundstate.TurnContext `json:"turn"`
	RemainingSec      int                    `json:"remainingSec"`
	PreRoundActive    bool                   `json:"preRoundActive"`
	PreRoundRemaining int                    `json:"preRoundRemaining"`
	Pickable          []models.Entity        `json:"pickable"`
	PendingEntityID   string                 `json:"pendingEntityId,omitempty"`
	BridgeState       bridge.State           `json:"bridgeState"`
	PullOnly          bool                   `json:"pullOnly"`
	ClockOffset       time.Duration          `json:"clockOffset"`
}

// CanPick reports whether entityID may be requested right now.
func (v View) CanPick(entityID string) bool {
	if !v.Ready || !v.Turn.IsLocalTurn || v.PendingEntityID != "" {
		return false
	}
	if _, taken := v.Turn.PickedEntityMap[entityID]; taken {
		return false
	}
	for _, e := range v.Pickable {
		if e.ID == entityID {
			return true
		}
	}
	return false
}

// NoticeKind classifies a host notification.
type NoticeKind string

const (
	NoticeSubmissionFailed NoticeKind = "submission_failed"
	NoticeRefreshFailed    NoticeKind = "refresh_failed"
	NoticePullOnly         NoticeKind = "pull_only"
)

// Notice is a non-fatal condition surfaced to the host.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	EntityID  string     `json:"entityId,omitempty"`
	Retryable bool       `json:"retryable"`
	Err       error      `json:"-"`
}
