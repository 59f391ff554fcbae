package tetris

import (
	"context"
	"log"
)

// runnerEventBuffer はイベントループに溜められる処理の数です。
const runnerEventBuffer = 256

// Runner は1つの Stage を専用のゴルーチンで動かすイベントループです。
// タイマーの発火と外部からの操作はすべて LoopClock のチャネルを経由して順番に実行されます。
type Runner struct {
	clock *LoopClock
	stage *Stage
	board *Scoreboard

	onChange func(Snapshot)
}

// NewRunner は新しい Stage と Scoreboard を持つ Runner を作成します。
// 実際にループを動かすには Run を呼び出してください。
//
// Parameters:
//   cfg      : ステージの設定
//   picker   : テトリミノの乱数源 (nil可)
//   onChange : 処理を1つ実行するたびに最新のスナップショットを受け取る関数 (nil可)
// Returns:
//   *Runner: 初期化された Runner
func NewRunner(cfg StageConfig, picker Picker, onChange func(Snapshot)) *Runner {
	clock := NewLoopClock(runnerEventBuffer)
	board := NewScoreboard(cfg)
	return &Runner{
		clock:    clock,
		stage:    NewStage(cfg, clock, board, picker),
		board:    board,
		onChange: onChange,
	}
}

// OnGameOver はゲームオーバー時に呼び出される関数を設定します。Run の前に呼び出してください。
// fn はループのゴルーチンで呼ばれるため、時間のかかる処理は別のゴルーチンで行ってください。
func (r *Runner) OnGameOver(fn func(Stats)) {
	r.board.OnGameOver = fn
}

// Run は ctx がキャンセルされるか Close されるまでイベントを処理し続けます。
func (r *Runner) Run(ctx context.Context) {
	defer r.clock.Close()
	r.publish()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.clock.Done():
			return
		case fn := <-r.clock.Events():
			r.exec(fn)
		}
	}
}

// exec は1つのイベントを実行してスナップショットを配信します。
// イベント中の panic (定義表との不整合など) は復旧できないため、ログに残してそのまま伝播させます。
func (r *Runner) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Runner] Fatal error in stage event: %v", rec)
			panic(rec)
		}
	}()
	fn()
	r.publish()
}

func (r *Runner) publish() {
	if r.onChange != nil {
		r.onChange(r.stage.Snapshot())
	}
}

// Do は fn をループのゴルーチンで実行するよう依頼します。
// ループが終了している場合はfalseを返します。
func (r *Runner) Do(fn func(s *Stage)) bool {
	return r.clock.Post(func() { fn(r.stage) })
}

// Close はループを停止します。複数回呼んでも安全です。
func (r *Runner) Close() {
	r.clock.Close()
}

// Done はループが停止したときに閉じられるチャネルを返します。
func (r *Runner) Done() <-chan struct{} {
	return r.clock.Done()
}
