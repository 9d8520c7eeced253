package matchapi

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// MatchServiceHandler is implemented by the match server.
type MatchServiceHandler interface {
	GetRoundState(context.Context, *connect.Request[GetRoundStateRequest]) (*connect.Response[GetRoundStateResponse], error)
	ListPickableEntities(context.Context, *connect.Request[ListPickableEntitiesRequest]) (*connect.Response[ListPickableEntitiesResponse], error)
	SubmitPick(context.Context, *connect.Request[SubmitPickRequest]) (*connect.Response[SubmitPickResponse], error)
}

// NewMatchServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler.
func NewMatchServiceHandler(svc MatchServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	getRoundState := connect.NewUnaryHandler(GetRoundStateProcedure, svc.GetRoundState, opts...)
	listPickable := connect.NewUnaryHandler(ListPickableEntitiesProcedure, svc.ListPickableEntities, opts...)
	submitPick := connect.NewUnaryHandler(SubmitPickProcedure, svc.SubmitPick, opts...)

	return "/" + MatchServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GetRoundStateProcedure:
			getRoundState.ServeHTTP(w, r)
		case ListPickableEntitiesProcedure:
			listPickable.ServeHTTP(w, r)
		case SubmitPickProcedure:
			submitPick.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
