package buildproc

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	pferrors "github.com/packforge/packforge/internal/errors"
)

// Release lifecycle stages.
const (
	stageIdle      statekit.StateID = "idle"
	stageGuarding  statekit.StateID = "guarding"
	stageRecording statekit.StateID = "recording"
	stageHooking   statekit.StateID = "hooking"
	stageBuilding  statekit.StateID = "building"
	stageTagging   statekit.StateID = "tagging"
	stageReleased  statekit.StateID = "released"
	stageCancelled statekit.StateID = "cancelled"
)

// Release lifecycle events.
const (
	eventGuard  statekit.EventType = "GUARD"
	eventRecord statekit.EventType = "RECORD"
	eventHook   statekit.EventType = "HOOK"
	eventBuild  statekit.EventType = "BUILD"
	eventTag    statekit.EventType = "TAG"
	eventFinish statekit.EventType = "FINISH"
	eventCancel statekit.EventType = "CANCEL"
)

// Transition is one recorded stage change of a release run.
type Transition struct {
	Event string
	From  string
	To    string
	At    time.Time
}

// releaseMachine enforces the strict stage ordering of a release run.
// Stages only ever advance guarding → recording → hooking → building →
// tagging → released; any active stage may cancel. The recorded history
// is attached to the release result for auditing.
type releaseMachine struct {
	interpreter *statekit.Interpreter[struct{}]
	history     []Transition
}

func newReleaseMachine() (*releaseMachine, error) {
	const op = "buildproc.newReleaseMachine"

	machine, err := statekit.NewMachine[struct{}]("release").
		WithInitial(stageIdle).
		State(stageIdle).
		On(eventGuard).Target(stageGuarding).
		Done().
		State(stageGuarding).
		On(eventRecord).Target(stageRecording).
		On(eventCancel).Target(stageCancelled).
		Done().
		State(stageRecording).
		On(eventHook).Target(stageHooking).
		On(eventCancel).Target(stageCancelled).
		Done().
		State(stageHooking).
		On(eventBuild).Target(stageBuilding).
		On(eventCancel).Target(stageCancelled).
		Done().
		State(stageBuilding).
		On(eventTag).Target(stageTagging).
		On(eventCancel).Target(stageCancelled).
		Done().
		State(stageTagging).
		On(eventFinish).Target(stageReleased).
		On(eventCancel).Target(stageCancelled).
		Done().
		State(stageReleased).
		Final().
		Done().
		State(stageCancelled).
		Final().
		Done().
		Build()
	if err != nil {
		return nil, pferrors.Wrap(err, pferrors.KindState, op, "failed to build release machine")
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()

	return &releaseMachine{interpreter: interp}, nil
}

// fire sends event and fails when the machine refuses the transition,
// which means the release flow attempted stages out of order.
func (m *releaseMachine) fire(event statekit.EventType) error {
	const op = "buildproc.releaseMachine"

	from := m.interpreter.State().Value
	m.interpreter.Send(statekit.Event{Type: event})
	to := m.interpreter.State().Value

	if to == from {
		return pferrors.State(op, fmt.Sprintf("cannot %s while in the %s stage", event, from))
	}

	m.history = append(m.history, Transition{
		Event: string(event),
		From:  string(from),
		To:    string(to),
		At:    time.Now().UTC(),
	})
	return nil
}

// cancel moves the machine to the cancelled stage. Best-effort: a refusal
// means the run never left idle or already finished, and there is nothing
// to record in that case.
func (m *releaseMachine) cancel() {
	_ = m.fire(eventCancel)
}

// stage returns the current lifecycle stage.
func (m *releaseMachine) stage() statekit.StateID {
	return m.interpreter.State().Value
}

// transitions returns the recorded stage history.
func (m *releaseMachine) transitions() []Transition {
	return m.history
}
