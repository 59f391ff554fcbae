package tetris

import (
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
)

// PieceHolder はテトリミノを1つだけ保持できる枠です。
// ホールド枠と、ネクスト表示の各枠の両方に使います。
type PieceHolder struct {
	loader  Loader
	piece   *tetris.Piece
	pending *tetris.Piece // 準備完了待ちのテトリミノ
}

// NewPieceHolder は空の PieceHolder を作成します。
func NewPieceHolder(loader Loader) *PieceHolder {
	if loader == nil {
		loader = ImmediateLoader{}
	}
	return &PieceHolder{loader: loader}
}

// Add はテトリミノを回転0に戻して枠に入れます。
// テトリミノの準備が済んでいなければ、準備完了まで枠への割り当てを遅らせます。
//
// Parameters:
//   p    : 入れるテトリミノ
//   done : 枠に入ったときに呼び出される関数 (nil可)
func (h *PieceHolder) Add(p *tetris.Piece, done func()) {
	p.ResetRotation()
	if p.Loaded {
		h.assign(p)
		if done != nil {
			done()
		}
		return
	}

	h.pending = p
	h.loader.Load(p, func() {
		if h.pending != p {
			return // 待っている間に取り出しまたはリセットされた
		}
		h.pending = nil
		h.assign(p)
		if done != nil {
			done()
		}
	})
}

func (h *PieceHolder) assign(p *tetris.Piece) {
	off := p.Definition().HoldOffset
	p.MoveTo(off.X, off.Y)
	h.piece = p
}

// Set は準備済みのテトリミノをそのまま枠に入れます。位置と回転は変更しません。
func (h *PieceHolder) Set(p *tetris.Piece) {
	h.pending = nil
	h.piece = p
}

// Remove は枠のテトリミノを取り出し、枠を空にします。
func (h *PieceHolder) Remove() *tetris.Piece {
	p := h.piece
	h.piece = nil
	h.pending = nil
	return p
}

// Peek は枠のテトリミノを取り出さずに返します。
func (h *PieceHolder) Peek() *tetris.Piece {
	return h.piece
}

// IsEmpty は枠が空かどうかを返します。準備完了待ちのテトリミノがあれば空ではありません。
func (h *PieceHolder) IsEmpty() bool {
	return h.piece == nil && h.pending == nil
}
