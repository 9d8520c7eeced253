// Package matchapi is the RPC contract between match clients and the
// authoritative match service: procedures, messages, codec and client.
package matchapi

import (
	"encoding/json"

	"github.com/mcdev12/matchdraft/go/internal/models"
)

// MatchServiceName is the fully-qualified name of the match service.
const MatchServiceName = "matchdraft.v1.MatchService"

const (
	// GetRoundStateProcedure returns the full match snapshot.
	GetRoundStateProcedure = "/" + MatchServiceName + "/GetRoundState"
	// ListPickableEntitiesProcedure returns the entities a user may still pick.
	ListPickableEntitiesProcedure = "/" + MatchServiceName + "/ListPickableEntities"
	// SubmitPickProcedure submits a pick intent for a round.
	SubmitPickProcedure = "/" + MatchServiceName + "/SubmitPick"
)

type GetRoundStateRequest struct {
	MatchID string `json:"matchId"`
}

type GetRoundStateResponse struct {
	Snapshot models.Snapshot `json:"snapshot"`
}

type ListPickableEntitiesRequest struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

type ListPickableEntitiesResponse struct {
	Entities []models.Entity `json:"entities"`
}

type SubmitPickRequest struct {
	Round    models.RoundRef `json:"round"`
	EntityID string          `json:"entityId"`
}

type SubmitPickResponse struct {
	Snapshot models.Snapshot `json:"snapshot"`
}

// JSONCodec serializes messages as plain JSON. It replaces connect's protojson
// codec under the same name, so messages need not be protobuf types.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

func (JSONCodec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }
