package system

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	phase Phase
	name  string
	log   *[]string
	err   error
}

func (r *recorder) Phase() Phase { return r.phase }
func (r *recorder) Update(context.Context, time.Duration) error {
	*r.log = append(*r.log, r.name)
	return r.err
}

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{phase: PhasePersist, name: "persist", log: &log})
	r.Register(&recorder{phase: PhaseUpdate, name: "update-a", log: &log})
	r.Register(&recorder{phase: PhasePreUpdate, name: "pre", log: &log})
	r.Register(&recorder{phase: PhaseUpdate, name: "update-b", log: &log})

	require.NoError(t, r.Tick(context.Background(), time.Millisecond))
	assert.Equal(t, []string{"pre", "update-a", "update-b", "persist"}, log)
}

func TestRunnerKeepsGoingAfterFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	r := NewRunner()
	r.Register(&recorder{phase: PhaseUpdate, name: "update", log: &log, err: boom})
	r.Register(&recorder{phase: PhaseOutput, name: "output", log: &log})

	err := r.Tick(context.Background(), time.Millisecond)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "update system")
	assert.Equal(t, []string{"update", "output"}, log)
}

func TestTickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{phase: PhaseUpdate, name: "update", log: &log})
	r.Register(&recorder{phase: PhaseOutput, name: "output", log: &log})

	require.NoError(t, r.TickPhase(context.Background(), PhaseOutput, time.Millisecond))
	assert.Equal(t, []string{"output"}, log)
}
