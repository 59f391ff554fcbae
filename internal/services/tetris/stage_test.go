package tetris

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
)

func newTestStage(t *testing.T, cfg StageConfig, pieces ...int) (*Stage, *ManualClock, *Scoreboard) {
	t.Helper()
	clock := NewManualClock()
	board := NewScoreboard(cfg)
	s := NewStage(cfg, clock, board, NewSequencePicker(pieces...))
	require.Equal(t, StateIdle, s.State())
	return s, clock, board
}

// startFalling はゲームを開始し、最初のテトリミノが落下を始めるまで時間を進めます。
func startFalling(t *testing.T, s *Stage, clock *ManualClock) {
	t.Helper()
	require.NoError(t, s.Start())
	clock.Advance(s.cfg.SpawnDelay)
	require.Equal(t, StateFalling, s.State())
}

// fillRow は y 行目を skip 以外の列で埋めます。
func fillRow(s *Stage, y int, skip ...int) {
	for x := 0; x < tetris.BoardWidth; x++ {
		skipped := false
		for _, k := range skip {
			if k == x {
				skipped = true
			}
		}
		if !skipped {
			s.board.Set(x, y, tetris.ColorGray)
		}
	}
}

func TestStageStartSpawnsFirstPiece(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeI))

	require.NoError(t, s.Start())
	assert.Equal(t, StateSpawning, s.State())
	require.NotNil(t, s.Active())
	assert.Equal(t, tetris.TypeI, s.Active().Type)
	assert.Equal(t, 3, s.Active().X)
	assert.Equal(t, -1, s.Active().Y)
	assert.False(t, s.Press(KeyLeft), "input waits for the first ghost drop")

	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, StateFalling, s.State())
	require.NotNil(t, s.Ghost())
	assert.Equal(t, 18, s.Ghost().Y)

	assert.ErrorIs(t, s.Start(), ErrNotIdle)
}

func TestStageGravity(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	startFalling(t, s, clock)
	require.Equal(t, 0, s.Active().Y)

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, s.Active().Y)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, s.Active().Y)
	clock.Advance(3 * time.Second)
	assert.Equal(t, 4, s.Active().Y)
}

func TestStageSingleLineClear(t *testing.T) {
	s, clock, score := newTestStage(t, DefaultStageConfig(), int(tetris.TypeI))
	startFalling(t, s, clock)
	fillRow(s, 19, 3, 4, 5, 6)

	require.True(t, s.Press(KeyHardDrop))
	assert.Equal(t, StateClearing, s.State())
	assert.Equal(t, Stats{Score: 510, Lines: 1, Level: 1}, score.Stats())
	assert.Equal(t, 0, s.board.Count(), "cleared row is removed immediately")
	assert.Nil(t, s.Active())

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, StateClearing, s.State())
	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, StateSpawning, s.State())
	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, StateFalling, s.State())
	assert.False(t, s.HoldUsed())
}

func TestStageClearCompactsRowsAbove(t *testing.T) {
	s, clock, score := newTestStage(t, DefaultStageConfig(), int(tetris.TypeI))
	startFalling(t, s, clock)
	fillRow(s, 19, 3, 4, 5, 6)
	s.board.Set(0, 18, tetris.ColorRed)
	s.board.Set(9, 17, tetris.ColorGreen)

	require.True(t, s.Press(KeyHardDrop))
	assert.Equal(t, 1, score.Stats().Lines)
	assert.Equal(t, tetris.ColorRed, s.board.At(0, 18), "rows stay in place until the settle delay")

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, tetris.ColorRed, s.board.At(0, 19))
	assert.Equal(t, tetris.ColorGreen, s.board.At(9, 18))
	assert.Equal(t, 2, s.board.Count())
}

func TestStageHardDropWithoutClear(t *testing.T) {
	s, clock, score := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	startFalling(t, s, clock)

	require.True(t, s.Press(KeyHardDrop))
	assert.Equal(t, StateResolving, s.State())
	assert.Equal(t, 10, score.Stats().Score)
	assert.Equal(t, 4, s.board.Count())
	assert.Equal(t, tetris.ColorYellow, s.board.At(4, 19))

	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, StateSpawning, s.State())
	require.NotNil(t, s.Active())
	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, StateFalling, s.State())
}

func TestStageSoftDrop(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	startFalling(t, s, clock)

	require.True(t, s.Press(KeySoftDrop))
	assert.Equal(t, 1, s.Active().Y)

	s.active.HardDrop(&s.board)
	require.True(t, s.Press(KeySoftDrop))
	assert.Equal(t, 4, s.board.Count(), "soft drop on the floor locks immediately")
	assert.Equal(t, StateResolving, s.State())
}

func TestStageLockDelay(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	startFalling(t, s, clock)
	s.active.HardDrop(&s.board)

	clock.Advance(time.Second)
	assert.Equal(t, StateLockPending, s.State())
	assert.Equal(t, 0, s.board.Count())

	clock.Advance(299 * time.Millisecond)
	assert.Equal(t, 0, s.board.Count())
	clock.Advance(time.Millisecond)
	assert.Equal(t, 4, s.board.Count())
}

func TestStageLockDelayDeferredByMove(t *testing.T) {
	s, clock, score := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	startFalling(t, s, clock)
	s.active.HardDrop(&s.board)

	clock.Advance(time.Second)
	require.Equal(t, StateLockPending, s.State())

	clock.Advance(100 * time.Millisecond)
	require.True(t, s.Press(KeyLeft))
	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, StateFalling, s.State(), "a move during the grace period prevents locking")
	assert.Equal(t, 0, s.board.Count())

	// 次の落下タイミングで再び猶予が始まり、操作がなければ固定される
	clock.Advance(700 * time.Millisecond)
	assert.Equal(t, StateLockPending, s.State())
	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 4, s.board.Count())
	assert.Equal(t, tetris.ColorYellow, s.board.At(3, 19))
	assert.Equal(t, 10, score.Stats().Score)
}

func TestStageFailedMovesCountTowardLockDelay(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	startFalling(t, s, clock)
	for s.active.MoveLeft(&s.board) {
	}
	s.active.HardDrop(&s.board)

	clock.Advance(time.Second)
	require.Equal(t, StateLockPending, s.State())
	require.True(t, s.Press(KeyLeft), "press is accepted even though the piece is against the wall")
	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 0, s.board.Count())
}

func TestStageHold(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), allTypes...)
	startFalling(t, s, clock)
	require.Equal(t, tetris.TypeI, s.Active().Type)

	require.True(t, s.Press(KeyHold))
	assert.True(t, s.HoldUsed())
	assert.Equal(t, StateSpawning, s.State())
	assert.Nil(t, s.Active())
	require.NotNil(t, s.Held())
	assert.Equal(t, tetris.TypeI, s.Held().Type)
	assert.Equal(t, 0, s.Held().Rotation)

	assert.False(t, s.Press(KeyHold))

	clock.Advance(302 * time.Millisecond)
	require.Equal(t, StateFalling, s.State())
	assert.Equal(t, tetris.TypeO, s.Active().Type)

	// 同じ落下中の2回目のホールドは無視される
	assert.False(t, s.Press(KeyHold))
	assert.Equal(t, tetris.TypeO, s.Active().Type)
	assert.Equal(t, tetris.TypeI, s.Held().Type)

	require.True(t, s.Press(KeyHardDrop))
	assert.False(t, s.HoldUsed(), "locking re-enables hold")
	clock.Advance(302 * time.Millisecond)
	require.Equal(t, tetris.TypeJ, s.Active().Type)
	nextBefore := s.Next()[0].Type

	require.True(t, s.Press(KeyHold))
	assert.Equal(t, StateSpawning, s.State())
	require.NotNil(t, s.Active())
	assert.Equal(t, tetris.TypeI, s.Active().Type, "swap brings the held piece back")
	assert.Equal(t, 3, s.Active().X)
	assert.Equal(t, -1, s.Active().Y)
	assert.Equal(t, tetris.TypeJ, s.Held().Type)
	assert.Equal(t, nextBefore, s.Next()[0].Type, "swap does not draw from the queue")

	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, StateFalling, s.State())
	assert.False(t, s.Press(KeyHold))
}

func TestStageSpeedUpAfterTenLines(t *testing.T) {
	s, clock, score := newTestStage(t, DefaultStageConfig(), int(tetris.TypeI))
	startFalling(t, s, clock)

	for i := 0; i < 10; i++ {
		fillRow(s, 19, 3, 4, 5, 6)
		require.True(t, s.Press(KeyHardDrop))
		require.Equal(t, StateClearing, s.State())
		if i < 9 {
			assert.Equal(t, time.Second, s.DropDelay())
		}
		clock.Advance(802 * time.Millisecond)
		require.Equal(t, StateFalling, s.State())
	}

	assert.Equal(t, 900*time.Millisecond, s.DropDelay())
	assert.Equal(t, Stats{Score: 5100, Lines: 10, Level: 2}, score.Stats())
	assert.Equal(t, 0, s.clearCount)

	clock.Advance(899 * time.Millisecond)
	assert.Equal(t, -1, s.Active().Y)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 0, s.Active().Y)
}

func TestStageGameOverOnSpawnOverlap(t *testing.T) {
	s, clock, score := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	require.NoError(t, s.Start())
	s.board.Set(4, 0, tetris.ColorRed)

	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, StateGameOver, s.State())
	assert.True(t, score.GameOver())
	assert.False(t, s.Press(KeyHardDrop))
	assert.ErrorIs(t, s.Pause(), ErrNotRunning)
	assert.ErrorIs(t, s.Start(), ErrNotIdle)
	assert.Equal(t, 0, clock.Pending())

	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, score.GameOver())
	startFalling(t, s, clock)
}

func TestStageGameOverWhenStackReachesTop(t *testing.T) {
	s, clock, score := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	require.NoError(t, s.Start())
	for y := 2; y < tetris.BoardHeight; y++ {
		s.board.Set(4, y, tetris.ColorGray)
		s.board.Set(5, y, tetris.ColorGray)
	}
	clock.Advance(2 * time.Millisecond)
	require.Equal(t, StateFalling, s.State())

	require.True(t, s.Press(KeyHardDrop))
	assert.Equal(t, StateResolving, s.State())
	clock.Advance(302 * time.Millisecond)
	assert.Equal(t, StateGameOver, s.State())
	assert.Equal(t, 10, score.Stats().Score)
}

func TestStageGameOverWhenLockingAboveField(t *testing.T) {
	s, clock, score := newTestStage(t, DefaultStageConfig(), int(tetris.TypeI))
	startFalling(t, s, clock)
	for y := 3; y < tetris.BoardHeight; y++ {
		s.board.Set(5, y, tetris.ColorGray)
	}

	require.True(t, s.Press(KeyRotateCW))
	require.Equal(t, 1, s.Active().Rotation)
	require.True(t, s.Press(KeyHardDrop))
	assert.Equal(t, StateGameOver, s.State())
	assert.True(t, score.GameOver())
}

func TestStagePauseResume(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	assert.ErrorIs(t, s.Pause(), ErrNotRunning)
	startFalling(t, s, clock)

	clock.Advance(500 * time.Millisecond)
	require.NoError(t, s.Pause())
	assert.True(t, s.Paused())
	assert.False(t, s.Press(KeyLeft))

	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, s.Active().Y)

	require.NoError(t, s.Pause())
	assert.False(t, s.Paused())
	// 再開後はまるごと1間隔待つ
	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, s.Active().Y)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, s.Active().Y)
}

func TestStagePauseDuringSpawnDelay(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeO))
	startFalling(t, s, clock)
	require.True(t, s.Press(KeyHardDrop))

	clock.Advance(100 * time.Millisecond)
	require.NoError(t, s.Pause())
	clock.Advance(time.Second)
	assert.Nil(t, s.Active())

	require.NoError(t, s.Pause())
	clock.Advance(299 * time.Millisecond)
	assert.Nil(t, s.Active())
	clock.Advance(time.Millisecond)
	assert.NotNil(t, s.Active())
}

func TestStageReset(t *testing.T) {
	cfg := DefaultStageConfig()
	s, clock, score := newTestStage(t, cfg, int(tetris.TypeI))
	startFalling(t, s, clock)
	fillRow(s, 19, 3, 4, 5, 6)
	require.True(t, s.Press(KeyHardDrop))
	s.ToggleGhost()
	s.dropDelay = 500 * time.Millisecond

	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.Paused())
	assert.Nil(t, s.Active())
	assert.Nil(t, s.Ghost())
	assert.Nil(t, s.Held())
	assert.Equal(t, 0, s.board.Count())
	assert.Equal(t, cfg.DropDelay, s.DropDelay())
	assert.Equal(t, Stats{Level: 1}, score.Stats())
	assert.Equal(t, cfg.Ghost, s.GhostVisible())
	assert.Equal(t, 0, clock.Pending())
	assert.Len(t, s.Next(), VisibleCount)

	clock.Advance(10 * time.Second)
	assert.Equal(t, StateIdle, s.State())
	startFalling(t, s, clock)
}

func TestStageSlideAfterRotation(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeT))
	startFalling(t, s, clock)

	require.True(t, s.Press(KeyLeft))
	require.Equal(t, 2, s.Active().X)

	require.True(t, s.Press(KeyRotateCW))
	assert.Equal(t, 1, s.Active().Rotation)
	assert.Equal(t, 1, s.Active().X, "held left slides one more step")

	s.Release(KeyLeft)
	require.True(t, s.Press(KeyRotateCW))
	assert.Equal(t, 2, s.Active().Rotation)
	assert.Equal(t, 1, s.Active().X)

	assert.Equal(t, s.Active().X, s.Ghost().X)
	assert.Equal(t, s.Active().Rotation, s.Ghost().Rotation)
}

func TestStageNoSlideWhenBothHeld(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeT))
	startFalling(t, s, clock)

	require.True(t, s.Press(KeyLeft))
	require.True(t, s.Press(KeyRight))
	require.Equal(t, 3, s.Active().X)

	require.True(t, s.Press(KeyRotateCCW))
	assert.Equal(t, 3, s.Active().Rotation)
	assert.Equal(t, 3, s.Active().X)
}

func TestStageGhostVisibility(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeT))
	startFalling(t, s, clock)

	assert.Nil(t, s.Snapshot().Ghost)
	assert.True(t, s.ToggleGhost())

	snap := s.Snapshot()
	require.NotNil(t, snap.Ghost)
	assert.Equal(t, 17, snap.Ghost.Y)
	assert.Equal(t, "gray", snap.Ghost.Color)

	s.SetGhostVisible(false)
	assert.Nil(t, s.Snapshot().Ghost)
	require.NotNil(t, s.Ghost(), "the ghost is still tracked while hidden")
}

func TestStageSnapshotJSON(t *testing.T) {
	s, clock, _ := newTestStage(t, DefaultStageConfig(), int(tetris.TypeL))
	startFalling(t, s, clock)

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "falling", decoded["state"])
	assert.Equal(t, float64(1000), decoded["drop_delay_ms"])
	assert.Len(t, decoded["next"], VisibleCount)
	active := decoded["active"].(map[string]interface{})
	assert.Equal(t, "L", active["type"])
	assert.Len(t, decoded["board"], tetris.BoardHeight)
}

func TestStageWaitsForPieceLoading(t *testing.T) {
	cfg := DefaultStageConfig()
	cfg.LoadDelay = 10 * time.Millisecond
	s, clock, _ := newTestStage(t, cfg, int(tetris.TypeS))

	require.NoError(t, s.Start())
	assert.Equal(t, StateSpawning, s.State())
	assert.Nil(t, s.Active())

	clock.Advance(10 * time.Millisecond)
	require.NotNil(t, s.Active())
	assert.Equal(t, tetris.TypeS, s.Active().Type)
	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, StateFalling, s.State())
	assert.Len(t, s.Next(), VisibleCount)
}

func TestStagePauseHoldsWhilePiecesLoad(t *testing.T) {
	cfg := DefaultStageConfig()
	cfg.LoadDelay = 10 * time.Millisecond
	s, clock, _ := newTestStage(t, cfg, int(tetris.TypeT))

	require.NoError(t, s.Start())
	require.NoError(t, s.Pause())

	clock.Advance(10 * time.Millisecond)
	require.NotNil(t, s.Active(), "the piece is placed once loading completes")
	assert.True(t, s.Paused())
	assert.Equal(t, StateSpawning, s.State())

	clock.Advance(2 * time.Second)
	assert.True(t, s.Paused())
	assert.Equal(t, StateSpawning, s.State())
	assert.Equal(t, -1, s.Active().Y)

	require.NoError(t, s.Pause())
	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, StateFalling, s.State())
}

func TestStageClampsZeroDropDelay(t *testing.T) {
	cfg := DefaultStageConfig()
	cfg.DropDelay = 0
	s, clock, _ := newTestStage(t, cfg, int(tetris.TypeO))
	assert.Equal(t, MinDropDelay, s.DropDelay())

	startFalling(t, s, clock)
	clock.Advance(5 * time.Millisecond)
	assert.Equal(t, 5, s.Active().Y, "one step per millisecond")
}

func TestStageHoldFreezesPieceUntilLoaded(t *testing.T) {
	cfg := DefaultStageConfig()
	cfg.LoadDelay = 10 * time.Millisecond
	cfg.DropDelay = 2 * time.Millisecond
	s, clock, _ := newTestStage(t, cfg, allTypes...)

	require.NoError(t, s.Start())
	clock.Advance(12 * time.Millisecond)
	require.Equal(t, StateFalling, s.State())
	y := s.Active().Y

	require.True(t, s.Press(KeyHold))
	clock.Advance(9 * time.Millisecond)
	require.NotNil(t, s.Active())
	assert.Equal(t, y, s.Active().Y, "gravity stops while the held piece loads")
	assert.Nil(t, s.Held())

	clock.Advance(time.Millisecond)
	assert.Nil(t, s.Active())
	require.NotNil(t, s.Held())
	assert.Equal(t, tetris.TypeI, s.Held().Type)
}

func TestSnapshotNextIsEmptyWhileLoading(t *testing.T) {
	cfg := DefaultStageConfig()
	cfg.LoadDelay = 10 * time.Millisecond
	s, _, _ := newTestStage(t, cfg, int(tetris.TypeI))

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"next":[]`)
}
