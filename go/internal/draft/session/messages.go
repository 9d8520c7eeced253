package session

import (
	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// msg is anything the session loop consumes from its inbox.
type msg interface{ isSessionMsg() }

type eventDelivered struct {
	env events.Envelope
}

type roundStateFetched struct {
	seq  uint64
	snap *models.Snapshot
	err  error
}

type pickableFetched struct {
	seq      uint64
	entities []models.Entity
	err      error
}

type pickRequested struct {
	entityID string
	reply    chan error
}

type pickSubmitted struct {
	ref      models.RoundRef
	entityID string
	snap     *models.Snapshot
	err      error
}

type viewRequested struct {
	reply chan View
}

func (eventDelivered) isSessionMsg()    {}
func (roundStateFetched) isSessionMsg() {}
func (pickableFetched) isSessionMsg()   {}
func (pickRequested) isSessionMsg()     {}
func (pickSubmitted) isSessionMsg()     {}
func (viewRequested) isSessionMsg()     {}
