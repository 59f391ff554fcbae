package tetris

import (
	"errors"
	"log"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
)

var (
	// ErrNotIdle はスタート待ち以外の状態で Start が呼ばれたときに返されます。
	ErrNotIdle = errors.New("stage is not idle")
	// ErrNotRunning はゲームが進行していないときに Pause が呼ばれたときに返されます。
	ErrNotRunning = errors.New("stage is not running")
)

// Stage はフィールドと操作中のテトリミノを持ち、落下・固定・ライン消去・ホールドの進行を管理します。
//
// Stage のメソッドはすべて1つのゴルーチンから呼び出す必要があります。
// タイマーの発火も Clock を通じて同じゴルーチンで実行されるため、内部でロックは取りません。
type Stage struct {
	cfg     StageConfig
	clock   Clock
	sink    ScoreSink
	factory *PieceFactory
	queue   *PieceQueue
	holder  *PieceHolder
	board   tetris.Board

	dropTimer *Ticker // 自動落下
	delay     *Delay  // 固定猶予と各フェーズ間の待ち時間

	state        State
	paused       bool
	pausedTicker bool // 一時停止したときに自動落下が動いていたか
	pausedDelay  bool // 一時停止したときに待ち時間が残っていたか

	active       *tetris.Piece
	ghost        *tetris.Piece
	ghostVisible bool

	dropDelay      time.Duration
	clearCount     int // 前回のスピードアップ以降に消したライン数
	moveCount      int // 固定猶予が始まった時点の操作回数
	totalMoveCount int // 出現してからの操作回数
	lockPending    bool
	holdUsed       bool
	heldLeft       bool
	heldRight      bool
	cleared        []int
}

// NewStage は新しい Stage をスタート待ちの状態で作成し、ネクストの準備を始めます。
//
// Parameters:
//   cfg    : 進行速度や得点の設定
//   clock  : タイマーの予約先
//   sink   : 得点とゲームオーバーの通知先
//   picker : テトリミノの種類を選ぶ乱数源 (nilなら時刻シードの RandomPicker)
// Returns:
//   *Stage: 初期化されたステージ
func NewStage(cfg StageConfig, clock Clock, sink ScoreSink, picker Picker) *Stage {
	if picker == nil {
		picker = NewRandomPicker(tetris.PieceTypeCount, 0)
	}
	var loader Loader = ImmediateLoader{}
	if cfg.LoadDelay > 0 {
		loader = NewClockLoader(clock, cfg.LoadDelay)
	}

	// 間隔0のティッカーは同じ時刻に再発火し続けるため下限で丸める
	if cfg.DropDelay < MinDropDelay {
		cfg.DropDelay = MinDropDelay
	}

	factory := NewPieceFactory(picker)
	s := &Stage{
		cfg:          cfg,
		clock:        clock,
		sink:         sink,
		factory:      factory,
		queue:        NewPieceQueue(factory, loader),
		holder:       NewPieceHolder(loader),
		board:        tetris.NewBoard(),
		delay:        NewDelay(clock),
		state:        StateIdle,
		dropDelay:    cfg.DropDelay,
		ghostVisible: cfg.Ghost,
	}
	s.dropTimer = NewTicker(clock, cfg.DropDelay, s.onDropTick)
	s.queue.Init(nil)
	return s
}

// Start はゲームを開始します。得点表示とフィールドを初期化し、最初のテトリミノを出現させます。
func (s *Stage) Start() error {
	if s.state != StateIdle {
		return ErrNotIdle
	}
	log.Printf("[Stage] Game start (drop delay %v)", s.dropDelay)
	s.sink.Reset()
	s.board.Clear()
	s.paused = false
	s.pausedTicker = false
	s.pausedDelay = false
	s.queue.Init(nil)
	s.startDrop()
	return nil
}

// Reset はタイマーをすべて止め、フィールド・テトリミノ・ホールド・速度を初期状態に戻します。
// ネクストを作り直し、準備ができたら得点表示とゴースト表示も初期化します。
func (s *Stage) Reset() {
	s.dropTimer.Stop()
	s.delay.Stop()
	s.board.Clear()
	s.active = nil
	s.ghost = nil
	s.holder.Remove()
	s.cleared = nil

	s.dropDelay = s.cfg.DropDelay
	s.dropTimer.SetInterval(s.dropDelay)
	s.clearCount = 0
	s.moveCount = 0
	s.totalMoveCount = 0
	s.lockPending = false
	s.holdUsed = false
	s.heldLeft = false
	s.heldRight = false
	s.paused = false
	s.pausedTicker = false
	s.pausedDelay = false
	s.state = StateIdle

	s.queue.Init(func() {
		s.sink.Reset()
		s.ghostVisible = s.cfg.Ghost
	})
	log.Printf("[Stage] Reset")
}

// Pause は一時停止と再開を切り替えます。
// 一時停止中は動いていたタイマーを止めて入力を受け付けず、再開するとそのタイマーをまるごと同じ待ち時間で再開します。
//
// Returns:
//   error: ゲームが進行していない場合は ErrNotRunning
func (s *Stage) Pause() error {
	if !s.state.Running() {
		return ErrNotRunning
	}
	if s.paused {
		s.paused = false
		if s.pausedTicker {
			s.dropTimer.Start()
		}
		if s.pausedDelay {
			s.delay.Restart()
		}
		s.pausedTicker = false
		s.pausedDelay = false
		return nil
	}

	s.pausedTicker = s.dropTimer.Running()
	s.pausedDelay = s.delay.Pending()
	s.dropTimer.Stop()
	s.delay.Stop()
	s.paused = true
	return nil
}

// SetGhostVisible はゴーストを表示するかどうかを切り替えます。
// ゴーストの位置は表示の有無に関係なく常に計算されています。
func (s *Stage) SetGhostVisible(visible bool) {
	s.ghostVisible = visible
}

// ToggleGhost はゴースト表示を反転し、新しい設定を返します。
func (s *Stage) ToggleGhost() bool {
	s.ghostVisible = !s.ghostVisible
	return s.ghostVisible
}

// Press はキーが押されたことを通知します。
// 落下中 (固定猶予中を含む) で一時停止していないときだけ受け付けます。
//
// Parameters:
//   k : 押されたキー
// Returns:
//   bool: 入力が受け付けられた場合はtrue (移動できたかどうかではありません)
func (s *Stage) Press(k Key) bool {
	if !s.acceptsInput() {
		return false
	}

	switch k {
	case KeyLeft:
		s.active.MoveLeft(&s.board)
		s.syncGhost()
		s.heldLeft = true
		s.totalMoveCount++
	case KeyRight:
		s.active.MoveRight(&s.board)
		s.syncGhost()
		s.heldRight = true
		s.totalMoveCount++
	case KeyHardDrop:
		s.active.HardDrop(&s.board)
		s.lock()
	case KeySoftDrop:
		if !s.active.MoveDown(&s.board) {
			s.lock()
		}
	case KeyRotateCCW:
		s.active.RotateCounterClockwise(&s.board)
		s.syncGhost()
		s.slide()
		s.totalMoveCount++
	case KeyRotateCW:
		s.active.RotateClockwise(&s.board)
		s.syncGhost()
		s.slide()
		s.totalMoveCount++
	case KeyHold:
		if s.holdUsed {
			return false
		}
		if s.holder.IsEmpty() {
			s.addHold()
		} else {
			s.swapHold()
		}
	default:
		return false
	}
	return true
}

// Release はキーが離されたことを通知します。左右キーの押下状態だけを記録しています。
func (s *Stage) Release(k Key) {
	switch k {
	case KeyLeft:
		s.heldLeft = false
	case KeyRight:
		s.heldRight = false
	}
}

func (s *Stage) acceptsInput() bool {
	if s.paused || s.active == nil {
		return false
	}
	return s.state == StateFalling || s.state == StateLockPending
}

// slide は回転の直後、左右どちらか一方だけが押され続けていればその方向へもう1マス動かします。
func (s *Stage) slide() {
	switch {
	case s.heldLeft && !s.heldRight:
		s.active.MoveLeft(&s.board)
		s.syncGhost()
	case !s.heldLeft && s.heldRight:
		s.active.MoveRight(&s.board)
		s.syncGhost()
	}
}

// syncGhost はゴーストを操作中のテトリミノと同じ列・回転に合わせて着地位置まで落とします。
func (s *Stage) syncGhost() {
	if s.ghost == nil || s.active == nil {
		return
	}
	s.ghost.CopyPlacement(s.active)
	s.ghost.HardDrop(&s.board)
}

// schedule は待ち時間タイマーを予約します。一時停止中は予約だけ残して再開時に開始します。
func (s *Stage) schedule(d time.Duration, fn func()) {
	s.delay.Set(d, fn)
	if s.paused {
		s.delay.Stop()
		s.pausedDelay = true
	}
}

// startDrop はネクストから次のテトリミノを取り出して出現させます。
// ネクストの準備ができていなければ、準備完了まで出現を遅らせます。
func (s *Stage) startDrop() {
	s.state = StateSpawning

	p := s.queue.Next()
	if p == nil {
		s.queue.OnReady(func() {
			if s.state == StateSpawning && s.active == nil {
				s.startDrop()
			}
		})
		return
	}

	s.active = p
	s.ghost = s.factory.Ghost(p)
	s.ghost.SetStage()

	s.moveCount = 0
	s.totalMoveCount = 0
	s.lockPending = false
	s.heldLeft = false
	s.heldRight = false
	s.schedule(s.cfg.SpawnDelay, s.firstGhostDrop)
}

// firstGhostDrop は出現直後のゴーストを落とし、出現位置が塞がっていなければ自動落下を始めます。
func (s *Stage) firstGhostDrop() {
	s.syncGhost()
	if s.board.Overlaps(s.active) {
		s.gameOver()
		return
	}
	s.dropTimer.SetInterval(s.dropDelay)
	s.dropTimer.Start()
	s.state = StateFalling
}

func (s *Stage) onDropTick() {
	if s.active == nil {
		return
	}
	if !s.active.MoveDown(&s.board) && !s.lockPending {
		s.lockPending = true
		s.moveCount = s.totalMoveCount
		s.state = StateLockPending
		s.schedule(s.cfg.LockDelay, s.lockCheck)
	}
}

// lockCheck は固定猶予の終了時に呼ばれます。猶予中に操作されていなければ固定します。
func (s *Stage) lockCheck() {
	if s.moveCount == s.totalMoveCount {
		s.lock()
		return
	}
	s.lockPending = false
	s.state = StateFalling
}

// lock は操作中のテトリミノをフィールドに固定し、ライン判定に進みます。
func (s *Stage) lock() {
	s.ghost = nil
	s.sink.AddScore(s.cfg.LockBonus)
	s.dropTimer.Stop()
	s.delay.Stop()
	s.lockPending = false
	s.state = StateResolving

	if !s.board.Lock(s.active) {
		s.gameOver()
		return
	}
	s.active = nil
	s.resolve()
}

// resolve は揃ったラインを探し、あれば消去して得点とライン数を加算します。
func (s *Stage) resolve() {
	s.holdUsed = false
	rows := s.board.FullRows()
	if len(rows) == 0 {
		s.schedule(s.cfg.NextDelay, s.startDrop)
		return
	}

	s.state = StateClearing
	s.board.RemoveRows(rows)
	n := len(rows)
	s.sink.AddScore(s.cfg.LineClearScore(n))
	s.sink.AddLines(n)

	s.clearCount += n
	if s.cfg.SpeedUpLines > 0 && s.clearCount >= s.cfg.SpeedUpLines {
		s.speedUp()
		s.sink.AddLevel(1)
		s.clearCount = 0
	}

	s.cleared = rows
	s.schedule(s.cfg.ClearDelay, s.compact)
}

func (s *Stage) compact() {
	s.board.Compact(s.cleared)
	s.cleared = nil
	s.schedule(s.cfg.NextDelay, s.startDrop)
}

func (s *Stage) speedUp() {
	s.dropDelay = NextDropDelay(s.dropDelay)
	s.dropTimer.SetInterval(s.dropDelay)
	log.Printf("[Stage] Level up: drop delay %v", s.dropDelay)
}

// addHold は空のホールド枠に操作中のテトリミノの複製を入れ、ネクストから次を出現させます。
func (s *Stage) addHold() {
	s.holdUsed = true
	s.dropTimer.Stop()
	s.delay.Stop()
	s.lockPending = false
	s.state = StateSpawning

	s.holder.Add(s.factory.Clone(s.active), func() {
		s.active = nil
		s.ghost = nil
		s.schedule(s.cfg.NextDelay, s.startDrop)
	})
}

// swapHold は操作中のテトリミノとホールド中のテトリミノを入れ替えます。
// ネクストからは取り出さず、ホールドしていたテトリミノを出現位置から落とし直します。
func (s *Stage) swapHold() {
	held := s.holder.Remove()
	held.SetStage()
	s.holder.Add(s.active, nil)

	s.active = held
	s.ghost = s.factory.Ghost(held)
	s.ghost.SetStage()

	s.holdUsed = true
	s.lockPending = false
	s.moveCount = 0
	s.totalMoveCount = 0
	s.dropTimer.Stop()
	s.state = StateSpawning
	s.schedule(s.cfg.SpawnDelay, s.firstGhostDrop)
}

func (s *Stage) gameOver() {
	s.dropTimer.Stop()
	s.delay.Stop()
	s.lockPending = false
	s.state = StateGameOver
	if sp, ok := s.sink.(StatsProvider); ok {
		st := sp.Stats()
		log.Printf("[Stage] Game over: score %d, lines %d, level %d", st.Score, st.Lines, st.Level)
	} else {
		log.Printf("[Stage] Game over")
	}
	s.sink.ShowGameOver()
}

// State は現在の進行状態を返します。
func (s *Stage) State() State { return s.state }

// Paused は一時停止中かどうかを返します。
func (s *Stage) Paused() bool { return s.paused }

// Board は固定済みブロックのコピーを返します。
func (s *Stage) Board() tetris.Board { return s.board }

// Active は操作中のテトリミノのコピーを返します。なければ nil です。
func (s *Stage) Active() *tetris.Piece {
	if s.active == nil {
		return nil
	}
	p := *s.active
	return &p
}

// Ghost はゴーストのコピーを返します。なければ nil です。
func (s *Stage) Ghost() *tetris.Piece {
	if s.ghost == nil {
		return nil
	}
	p := *s.ghost
	return &p
}

// Held はホールド中のテトリミノを返します。
func (s *Stage) Held() *tetris.Piece { return s.holder.Peek() }

// Next はネクスト枠のテトリミノを返します。
func (s *Stage) Next() []*tetris.Piece { return s.queue.Peek() }

// DropDelay は現在の自動落下間隔を返します。
func (s *Stage) DropDelay() time.Duration { return s.dropDelay }

// HoldUsed は今回の落下でホールドを使用済みかどうかを返します。
func (s *Stage) HoldUsed() bool { return s.holdUsed }

// GhostVisible はゴースト表示が有効かどうかを返します。
func (s *Stage) GhostVisible() bool { return s.ghostVisible }
