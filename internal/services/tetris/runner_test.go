package tetris

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
)

func TestRunnerPublishesAfterEachEvent(t *testing.T) {
	snaps := make(chan Snapshot, 16)
	r := NewRunner(DefaultStageConfig(), NewSequencePicker(int(tetris.TypeT)), func(s Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	first := <-snaps
	assert.Equal(t, StateIdle, first.State)

	require.True(t, r.Do(func(s *Stage) { s.Start() }))
	assert.Equal(t, StateSpawning, (<-snaps).State)

	cancel()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	assert.False(t, r.Do(func(s *Stage) {}))
}

func TestRunnerDoesNotSwallowStagePanics(t *testing.T) {
	r := NewRunner(DefaultStageConfig(), NewSequencePicker(int(tetris.TypeT)), nil)
	bad := NewPieceFactory(NewSequencePicker(9))

	assert.Panics(t, func() {
		r.exec(func() { bad.CreateRandom() })
	})
}

func TestStageWithBrokenPickerPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewStage(DefaultStageConfig(), NewManualClock(), NewScoreboard(DefaultStageConfig()), NewSequencePicker(9))
	})
}
