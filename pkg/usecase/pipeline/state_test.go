package pipeline

import (
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/meera-os/meera/pkg/model"
)

func TestStateLinearTransitions(t *testing.T) {
	state := newState(Input{UserID: "u1", Message: "hi"})
	gt.Equal(t, state.Status, StatusCreated)

	gt.NoError(t, state.advance(StatusContextBuilt))
	gt.NoError(t, state.advance(StatusGenerated))
	gt.NoError(t, state.advance(StatusCaptured))
	gt.NoError(t, state.advance(StatusDone))
	gt.Equal(t, state.Status, StatusDone)
}

func TestStateSkippedTransition(t *testing.T) {
	state := newState(Input{UserID: "u1", Message: "hi"})

	gt.Error(t, state.advance(StatusGenerated))
	gt.Error(t, state.advance(StatusDone))
	gt.Equal(t, state.Status, StatusCreated)
}

func TestStateNoAdvanceFromTerminal(t *testing.T) {
	state := newState(Input{UserID: "u1", Message: "hi"})
	_ = state.fail(StageGeneration, goerr.New("model overloaded"))

	gt.Error(t, state.advance(StatusContextBuilt))
	gt.Equal(t, state.Status, StatusFailed)

	done := newState(Input{UserID: "u1", Message: "hi"})
	gt.NoError(t, done.advance(StatusContextBuilt))
	gt.NoError(t, done.advance(StatusGenerated))
	gt.NoError(t, done.advance(StatusCaptured))
	gt.NoError(t, done.advance(StatusDone))
	gt.Error(t, done.advance(StatusContextBuilt))
}

func TestStateFailRecordsStage(t *testing.T) {
	state := newState(Input{UserID: "u1", Message: "hi"})

	err := state.fail(StageContext, goerr.New("store unavailable"))
	gt.Error(t, err)
	gt.Equal(t, state.Status, StatusFailed)
	gt.Equal(t, state.FailedStage, StageContext)
}

func TestNewStateCopiesHistory(t *testing.T) {
	history := []model.Message{{Role: model.RoleUser, Content: "earlier"}}
	state := newState(Input{UserID: "u1", Message: "hi", History: history})

	state.History = append(state.History, model.Message{Role: model.RoleAssistant, Content: "reply"})
	gt.A(t, history).Length(1)
	gt.A(t, state.History).Length(2)
}
