package tetris

import (
	"container/heap"
	"sync"
	"time"
)

// Task は予約済みの処理です。Cancel すると以後呼び出されません。
type Task interface {
	Cancel()
}

// Clock は遅延実行の予約先です。
// 予約した関数はすべて同じゴルーチンから順番に呼び出される必要があります。
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Task
}

// ---------------------------------------------------------------------------
// ManualClock
// ---------------------------------------------------------------------------

// ManualClock はテストやリプレイ用の仮想時計です。
// Advance を呼んだときだけ時間が進み、期限の来た処理を予約時刻順に実行します。
type ManualClock struct {
	now   time.Duration
	seq   uint64
	tasks manualTaskHeap
}

// NewManualClock は時刻0の ManualClock を作成します。
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

type manualTask struct {
	at        time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() { t.cancelled = true }

type manualTaskHeap []*manualTask

func (h manualTaskHeap) Len() int { return len(h) }
func (h manualTaskHeap) Less(i, j int) bool {
	if h[i].at == h[j].at {
		return h[i].seq < h[j].seq
	}
	return h[i].at < h[j].at
}
func (h manualTaskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *manualTaskHeap) Push(x any)   { *h = append(*h, x.(*manualTask)) }
func (h *manualTaskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// AfterFunc は現在の仮想時刻から d 後に fn を予約します。
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Task {
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &manualTask{at: c.now + d, seq: c.seq, fn: fn}
	heap.Push(&c.tasks, t)
	return t
}

// Now は経過した仮想時間を返します。
func (c *ManualClock) Now() time.Duration {
	return c.now
}

// Advance は仮想時刻を d だけ進め、その間に期限が来た処理を順番に実行します。
// 実行中に予約された処理も、期限内であれば同じ呼び出しの中で実行されます。
func (c *ManualClock) Advance(d time.Duration) {
	target := c.now + d
	for c.tasks.Len() > 0 {
		next := c.tasks[0]
		if next.at > target {
			break
		}
		heap.Pop(&c.tasks)
		if next.cancelled {
			continue
		}
		c.now = next.at
		next.fn()
	}
	c.now = target
}

// Pending はキャンセルされていない予約の数を返します。
func (c *ManualClock) Pending() int {
	n := 0
	for _, t := range c.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// LoopClock
// ---------------------------------------------------------------------------

// LoopClock は実時間で動く Clock です。
// 期限が来た処理は直接実行せず、イベントループのチャネルへ送ります。
// ループ側で Events() から受け取って実行することで、状態の変更を1つのゴルーチンに閉じ込めます。
type LoopClock struct {
	events chan func()
	done   chan struct{}
	once   sync.Once
}

// NewLoopClock は buffer 件までイベントを溜められる LoopClock を作成します。
func NewLoopClock(buffer int) *LoopClock {
	return &LoopClock{
		events: make(chan func(), buffer),
		done:   make(chan struct{}),
	}
}

type loopTask struct {
	timer     *time.Timer
	cancelled bool // ループのゴルーチンからのみ読み書きします
}

func (t *loopTask) Cancel() {
	t.cancelled = true
	t.timer.Stop()
}

// AfterFunc は d 後に fn をイベントループへ送るよう予約します。
func (c *LoopClock) AfterFunc(d time.Duration, fn func()) Task {
	t := &loopTask{}
	t.timer = time.AfterFunc(d, func() {
		c.Post(func() {
			if t.cancelled {
				return
			}
			fn()
		})
	})
	return t
}

// Post は fn をイベントループへ送ります。Close 後は何もしません。
func (c *LoopClock) Post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// Events はイベントループが受け取るチャネルを返します。
func (c *LoopClock) Events() <-chan func() {
	return c.events
}

// Done は Close されたときに閉じられるチャネルを返します。
func (c *LoopClock) Done() <-chan struct{} {
	return c.done
}

// Close は以後のイベント送信を止めます。複数回呼んでも安全です。
func (c *LoopClock) Close() {
	c.once.Do(func() { close(c.done) })
}

// ---------------------------------------------------------------------------
// Ticker / Delay
// ---------------------------------------------------------------------------

// Ticker は一定間隔で処理を繰り返し呼び出すタイマーです。
// Start すると毎回まるごと1間隔待ってから最初の呼び出しが行われます。
type Ticker struct {
	clock    Clock
	interval time.Duration
	fn       func()
	task     Task
	running  bool
}

// NewTicker は interval ごとに fn を呼び出す停止状態の Ticker を作成します。
func NewTicker(clock Clock, interval time.Duration, fn func()) *Ticker {
	return &Ticker{clock: clock, interval: interval, fn: fn}
}

// Start は Ticker を開始します。動作中の場合は最初から数え直します。
func (t *Ticker) Start() {
	t.Stop()
	t.running = true
	t.schedule()
}

// Stop は Ticker を停止します。
func (t *Ticker) Stop() {
	if t.task != nil {
		t.task.Cancel()
		t.task = nil
	}
	t.running = false
}

// Running は Ticker が動作中かどうかを返します。
func (t *Ticker) Running() bool {
	return t.running
}

// Interval は現在の呼び出し間隔を返します。
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// SetInterval は呼び出し間隔を変更します。次の予約から反映されます。
func (t *Ticker) SetInterval(d time.Duration) {
	t.interval = d
}

func (t *Ticker) schedule() {
	var task Task
	task = t.clock.AfterFunc(t.interval, func() {
		if t.task != task {
			return
		}
		t.task = nil
		t.fn()
		// fn の中で Stop や Start が呼ばれた場合はそちらを優先する
		if t.running && t.task == nil {
			t.schedule()
		}
	})
	t.task = task
}

// Delay は一度だけ処理を呼び出すキャンセル可能なタイマーです。
// 新しく Set すると、実行待ちの処理は必ず先にキャンセルされます。
type Delay struct {
	clock Clock
	task  Task
	d     time.Duration
	fn    func()
}

// NewDelay は停止状態の Delay を作成します。
func NewDelay(clock Clock) *Delay {
	return &Delay{clock: clock}
}

// Set は d 後に fn を一度だけ呼び出すよう予約します。
func (t *Delay) Set(d time.Duration, fn func()) {
	t.Stop()
	t.d = d
	t.fn = fn
	t.arm()
}

// Restart は最後に Set した処理を、まるごと同じ待ち時間で予約し直します。
func (t *Delay) Restart() {
	if t.fn == nil {
		return
	}
	t.Stop()
	t.arm()
}

// Stop は実行待ちの処理をキャンセルします。
func (t *Delay) Stop() {
	if t.task != nil {
		t.task.Cancel()
		t.task = nil
	}
}

// Pending は実行待ちの処理があるかどうかを返します。
func (t *Delay) Pending() bool {
	return t.task != nil
}

func (t *Delay) arm() {
	var task Task
	fn := t.fn
	task = t.clock.AfterFunc(t.d, func() {
		if t.task != task {
			return
		}
		t.task = nil
		fn()
	})
	t.task = task
}
