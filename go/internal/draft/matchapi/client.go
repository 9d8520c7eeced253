package matchapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mcdev12/matchdraft/go/internal/models"
)

// Client calls the match service on behalf of one authenticated user.
type Client struct {
	token                string
	getRoundState        *connect.Client[GetRoundStateRequest, GetRoundStateResponse]
	listPickableEntities *connect.Client[ListPickableEntitiesRequest, ListPickableEntitiesResponse]
	submitPick           *connect.Client[SubmitPickRequest, SubmitPickResponse]
}

// NewClient creates a match service client. token is sent as a bearer token.
func NewClient(baseURL, token string, opts ...connect.ClientOption) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)

	return &Client{
		token: token,
		getRoundState: connect.NewClient[GetRoundStateRequest, GetRoundStateResponse](
			httpClient, baseURL+GetRoundStateProcedure, opts...),
		listPickableEntities: connect.NewClient[ListPickableEntitiesRequest, ListPickableEntitiesResponse](
			httpClient, baseURL+ListPickableEntitiesProcedure, opts...),
		submitPick: connect.NewClient[SubmitPickRequest, SubmitPickResponse](
			httpClient, baseURL+SubmitPickProcedure, opts...),
	}
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}

// GetRoundState fetches the full match snapshot.
func (c *Client) GetRoundState(ctx context.Context, matchID string) (*models.Snapshot, error) {
	req := connect.NewRequest(&GetRoundStateRequest{MatchID: matchID})
	c.authorize(req.Header())

	resp, err := c.getRoundState.CallUnary(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get round state: %w", err)
	}
	return &resp.Msg.Snapshot, nil
}

// ListPickableEntities fetches the entities userID may still pick in the match.
func (c *Client) ListPickableEntities(ctx context.Context, matchID, userID string) ([]models.Entity, error) {
	req := connect.NewRequest(&ListPickableEntitiesRequest{MatchID: matchID, UserID: userID})
	c.authorize(req.Header())

	resp, err := c.listPickableEntities.CallUnary(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list pickable entities: %w", err)
	}
	return resp.Msg.Entities, nil
}

// SubmitPick submits a pick intent and returns the updated snapshot.
func (c *Client) SubmitPick(ctx context.Context, round models.RoundRef, entityID string) (*models.Snapshot, error) {
	req := connect.NewRequest(&SubmitPickRequest{Round: round, EntityID: entityID})
	c.authorize(req.Header())

	resp, err := c.submitPick.CallUnary(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit pick: %w", err)
	}
	return &resp.Msg.Snapshot, nil
}

// Retryable reports whether a failed call is worth retrying as-is.
func Retryable(err error) bool {
	switch connect.CodeOf(err) {
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeResourceExhausted,
		connect.CodeAborted, connect.CodeUnknown, connect.CodeInternal, connect.CodeCanceled:
		return true
	default:
		return false
	}
}
