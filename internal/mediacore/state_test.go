package mediacore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateMachineLifecycle(t *testing.T) {
	t.Parallel()

	var m StateMachine
	assert.Equal(t, StateStopped, m.Load())

	assert.False(t, m.Transition(StateStopped, StateRunning), "must pass through starting")
	assert.True(t, m.Transition(StateStopped, StateStarting))
	assert.False(t, m.Transition(StateStopped, StateStarting), "second start must fail")
	assert.True(t, m.Transition(StateStarting, StateRunning))
	assert.False(t, m.Transition(StateRunning, StateStopped), "must pass through stopping")
	assert.True(t, m.Transition(StateRunning, StateStopping))
	assert.True(t, m.Transition(StateStopping, StateStopped))
	assert.Equal(t, "stopped", m.Load().String())
}

func TestStateMachineStartFailure(t *testing.T) {
	t.Parallel()

	var m StateMachine
	assert.True(t, m.Transition(StateStopped, StateStarting))
	assert.True(t, m.Transition(StateStarting, StateStopped))
	assert.Equal(t, StateStopped, m.Load())
}

func TestSourceStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "unknown", SourceState(42).String())
}
