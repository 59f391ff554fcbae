package tetris

import (
	"log"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
)

const (
	QueueSize    = 10 // 先読みで保持するテトリミノの数
	VisibleCount = 4  // ネクスト枠に表示する数
)

// PieceQueue は次に出現するテトリミノの先読みリストです。
// 先頭の VisibleCount 個はネクスト枠 (PieceHolder) に割り当てられます。
type PieceQueue struct {
	factory *PieceFactory
	loader  Loader
	list    []*tetris.Piece
	holders [VisibleCount]*PieceHolder

	generation int
	ready      bool
	waiters    []func()
}

// NewPieceQueue は空の PieceQueue を作成します。使う前に Init を呼んでください。
func NewPieceQueue(factory *PieceFactory, loader Loader) *PieceQueue {
	if loader == nil {
		loader = ImmediateLoader{}
	}
	q := &PieceQueue{factory: factory, loader: loader}
	for i := range q.holders {
		q.holders[i] = NewPieceHolder(loader)
	}
	return q
}

// Init はリストを QueueSize 個のランダムなテトリミノで作り直します。
// すべての準備が完了するとネクスト枠を更新し、done と OnReady の待機者を呼び出します。
// 以前の Init の完了通知はすべて無視されます。
func (q *PieceQueue) Init(done func()) {
	q.generation++
	gen := q.generation
	q.ready = false
	q.waiters = nil
	q.list = make([]*tetris.Piece, 0, QueueSize)
	for _, h := range q.holders {
		h.Remove()
	}

	for i := 0; i < QueueSize; i++ {
		q.list = append(q.list, q.factory.CreateRandom())
	}

	remaining := len(q.list)
	for _, p := range q.list {
		q.loader.Load(p, func() {
			if gen != q.generation {
				return
			}
			remaining--
			if remaining > 0 {
				return
			}
			q.ready = true
			log.Printf("[PieceQueue] Queue ready: %s", q.describe())
			if done != nil {
				done()
			}
			q.flush()
		})
	}
}

// Ready は先頭のテトリミノを取り出せる状態かどうかを返します。
func (q *PieceQueue) Ready() bool {
	return q.ready && len(q.list) > 0 && q.list[0].Loaded
}

// OnReady は取り出せる状態になったときに fn を一度だけ呼び出します。
// 既に取り出せる状態ならすぐに呼び出します。
func (q *PieceQueue) OnReady(fn func()) {
	if q.Ready() {
		fn()
		return
	}
	q.waiters = append(q.waiters, fn)
}

// Next は先頭のネクスト枠からテトリミノを取り出し、出現位置に置いて返します。
// 取り出した分はランダムに1つ補充され、ネクスト枠は1つずつ繰り上がります。
// 準備が整っていない場合は nil を返します。
func (q *PieceQueue) Next() *tetris.Piece {
	if !q.Ready() {
		return nil
	}

	p := q.holders[0].Remove()
	if p == nil {
		p = q.list[0]
	}
	q.list = q.list[1:]

	gen := q.generation
	np := q.factory.CreateRandom()
	q.list = append(q.list, np)
	q.loader.Load(np, func() {
		if gen == q.generation {
			q.flush()
		}
	})
	q.render()

	p.SetStage()
	return p
}

// Peek はネクスト枠に表示中のテトリミノを先頭から順に返します。
func (q *PieceQueue) Peek() []*tetris.Piece {
	pieces := make([]*tetris.Piece, 0, VisibleCount)
	for _, h := range q.holders {
		if p := h.Peek(); p != nil {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// Len は先読みリストの長さを返します。
func (q *PieceQueue) Len() int {
	return len(q.list)
}

func (q *PieceQueue) render() {
	for i, h := range q.holders {
		if i < len(q.list) && q.list[i].Loaded {
			h.Set(q.list[i])
		} else {
			h.Remove()
		}
	}
}

func (q *PieceQueue) flush() {
	q.render()
	if !q.Ready() || len(q.waiters) == 0 {
		return
	}
	waiters := q.waiters
	q.waiters = nil
	for _, fn := range waiters {
		fn()
	}
}

func (q *PieceQueue) describe() string {
	s := ""
	for _, p := range q.list {
		s += p.Type.String()
	}
	return s
}
