package matchsvc

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"

	"github.com/mcdev12/matchdraft/go/internal/draft/matchapi"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// MatchApp defines what the service layer needs from the match application.
type MatchApp interface {
	GetRoundState(ctx context.Context, matchID string) (*models.Snapshot, error)
	ListPickableEntities(ctx context.Context, matchID, userID string) ([]models.Entity, error)
	SubmitPick(ctx context.Context, userID string, ref models.RoundRef, entityID string) (*models.Snapshot, error)
}

// Service implements the MatchService RPC interface.
type Service struct {
	app  MatchApp
	auth Authenticator
}

// NewService creates the RPC service. A nil auth accepts any caller and
// trusts the participant named in the request.
func NewService(app MatchApp, auth Authenticator) *Service {
	return &Service{app: app, auth: auth}
}

var _ matchapi.MatchServiceHandler = (*Service)(nil)

func (s *Service) GetRoundState(ctx context.Context, req *connect.Request[matchapi.GetRoundStateRequest]) (*connect.Response[matchapi.GetRoundStateResponse], error) {
	if _, err := s.authenticate(ctx, req.Header().Get("Authorization")); err != nil {
		return nil, err
	}
	if req.Msg.MatchID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("match id is required"))
	}

	snap, err := s.app.GetRoundState(ctx, req.Msg.MatchID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&matchapi.GetRoundStateResponse{Snapshot: *snap}), nil
}

func (s *Service) ListPickableEntities(ctx context.Context, req *connect.Request[matchapi.ListPickableEntitiesRequest]) (*connect.Response[matchapi.ListPickableEntitiesResponse], error) {
	userID, err := s.authenticate(ctx, req.Header().Get("Authorization"))
	if err != nil {
		return nil, err
	}
	if req.Msg.MatchID == "" || req.Msg.UserID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("match id and user id are required"))
	}
	if userID != "" && userID != req.Msg.UserID {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("cannot list another user's entities"))
	}

	entities, err := s.app.ListPickableEntities(ctx, req.Msg.MatchID, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&matchapi.ListPickableEntitiesResponse{Entities: entities}), nil
}

func (s *Service) SubmitPick(ctx context.Context, req *connect.Request[matchapi.SubmitPickRequest]) (*connect.Response[matchapi.SubmitPickResponse], error) {
	userID, err := s.authenticate(ctx, req.Header().Get("Authorization"))
	if err != nil {
		return nil, err
	}
	ref := req.Msg.Round
	if ref.MatchID == "" || ref.RoundID == "" || ref.ParticipantID == "" || req.Msg.EntityID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("round reference and entity id are required"))
	}

	snap, err := s.app.SubmitPick(ctx, userID, ref, req.Msg.EntityID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&matchapi.SubmitPickResponse{Snapshot: *snap}), nil
}

func (s *Service) authenticate(ctx context.Context, header string) (string, error) {
	if s.auth == nil {
		return "", nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, ErrUnauthenticated)
	}
	userID, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return "", connect.NewError(connect.CodeUnauthenticated, err)
	}
	return userID, nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrNotParticipant):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, ErrNotYourTurn), errors.Is(err, ErrRoundClosed), errors.Is(err, ErrRoundNotPending):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, ErrAlreadyPicked):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, ErrEntityUnavailable):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
