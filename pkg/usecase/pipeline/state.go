package pipeline

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
)

// Status is the pipeline invocation state. Transitions are strictly linear:
// Created → ContextBuilt → Generated → Captured → Done, with Failed as the
// only other terminal state.
type Status string

const (
	StatusCreated      Status = "created"
	StatusContextBuilt Status = "context_built"
	StatusGenerated    Status = "generated"
	StatusCaptured     Status = "captured"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

// Stage names the pipeline stage, used to report where an aborted
// invocation failed.
type Stage string

const (
	StageContext    Stage = "context"
	StageGeneration Stage = "generation"
	StageCapture    Stage = "capture"
)

var transitions = map[Status]Status{
	StatusCreated:      StatusContextBuilt,
	StatusContextBuilt: StatusGenerated,
	StatusGenerated:    StatusCaptured,
	StatusCaptured:     StatusDone,
}

// State is the accumulator threaded through the stages. Each stage writes
// only the fields it owns, exactly once per invocation; no stage overwrites
// another's output. History is append-only and is the authoritative
// transcript for the next invocation.
type State struct {
	// Request, set once at creation
	UserID      string
	UserMessage string
	HiveContext string

	Status      Status
	FailedStage Stage

	// Context stage outputs
	SystemPrompt     string
	Identity         *model.UserIdentity
	PersonalMemories []*model.Memory
	SharedMemories   []*model.Memory
	Knowledge        []*model.Knowledge
	Intent           string

	// Generation stage outputs
	Response string
	Exchange *model.Exchange

	// Capture stage outputs
	MemoryIDs []model.MemoryID

	History []model.Message
}

func newState(input Input) *State {
	return &State{
		UserID:      input.UserID,
		UserMessage: input.Message,
		HiveContext: input.HiveContext,
		Status:      StatusCreated,
		History:     append([]model.Message{}, input.History...),
	}
}

// advance moves the state to the next status, enforcing the linear order
func (s *State) advance(next Status) error {
	if transitions[s.Status] != next {
		return goerr.New("invalid state transition",
			goerr.V("from", s.Status), goerr.V("to", next))
	}
	s.Status = next
	return nil
}

// fail marks the state as terminally failed at the given stage and returns
// the error to surface to the caller
func (s *State) fail(stage Stage, err error) error {
	s.Status = StatusFailed
	s.FailedStage = stage
	return goerr.Wrap(err, "pipeline invocation aborted",
		goerr.V("stage", stage), goerr.V("user_id", s.UserID))
}
