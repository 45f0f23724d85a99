package buildproc

import (
	"testing"

	"github.com/felixgeelhaar/statekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/packforge/packforge/internal/errors"
)

var fullReleaseSequence = []statekit.EventType{
	eventGuard, eventRecord, eventHook, eventBuild, eventTag, eventFinish,
}

func TestReleaseMachineHappyPath(t *testing.T) {
	m, err := newReleaseMachine()
	require.NoError(t, err)
	assert.Equal(t, stageIdle, m.stage())

	for _, event := range fullReleaseSequence {
		require.NoError(t, m.fire(event))
	}
	assert.Equal(t, stageReleased, m.stage())

	history := m.transitions()
	require.Len(t, history, 6)
	assert.Equal(t, "idle", history[0].From)
	assert.Equal(t, "guarding", history[0].To)
	assert.Equal(t, "tagging", history[5].From)
	assert.Equal(t, "released", history[5].To)
	for _, tr := range history {
		assert.False(t, tr.At.IsZero())
	}
}

func TestReleaseMachineRefusesOutOfOrder(t *testing.T) {
	m, err := newReleaseMachine()
	require.NoError(t, err)

	err = m.fire(eventTag)
	require.Error(t, err)
	assert.True(t, pferrors.IsKind(err, pferrors.KindState))
	assert.Contains(t, err.Error(), "cannot TAG while in the idle stage")
	assert.Equal(t, stageIdle, m.stage())
	assert.Empty(t, m.transitions())
}

func TestReleaseMachineCancelFromEveryActiveStage(t *testing.T) {
	stages := []struct {
		name   string
		events []statekit.EventType
	}{
		{"guarding", fullReleaseSequence[:1]},
		{"recording", fullReleaseSequence[:2]},
		{"hooking", fullReleaseSequence[:3]},
		{"building", fullReleaseSequence[:4]},
		{"tagging", fullReleaseSequence[:5]},
	}

	for _, tt := range stages {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newReleaseMachine()
			require.NoError(t, err)
			for _, event := range tt.events {
				require.NoError(t, m.fire(event))
			}

			m.cancel()

			assert.Equal(t, stageCancelled, m.stage())
			last := m.transitions()[len(m.transitions())-1]
			assert.Equal(t, "CANCEL", last.Event)
			assert.Equal(t, tt.name, last.From)
		})
	}
}

func TestReleaseMachineCancelBeforeStartIsInert(t *testing.T) {
	m, err := newReleaseMachine()
	require.NoError(t, err)

	m.cancel()

	assert.Equal(t, stageIdle, m.stage())
	assert.Empty(t, m.transitions())
}

func TestReleaseMachineFinalStagesAreTerminal(t *testing.T) {
	m, err := newReleaseMachine()
	require.NoError(t, err)
	for _, event := range fullReleaseSequence {
		require.NoError(t, m.fire(event))
	}

	err = m.fire(eventGuard)
	require.Error(t, err)
	assert.True(t, pferrors.IsKind(err, pferrors.KindState))

	m.cancel()
	assert.Equal(t, stageReleased, m.stage(), "a finished release cannot be cancelled")
}
