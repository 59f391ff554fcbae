package tetris

import (
	"fmt"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
)

// PieceFactory はテトリミノの生成を担当します。
type PieceFactory struct {
	picker Picker
}

// NewPieceFactory は picker で種類を抽選する PieceFactory を作成します。
func NewPieceFactory(picker Picker) *PieceFactory {
	return &PieceFactory{picker: picker}
}

// Create は指定された種類のテトリミノを回転0で作成します。
//
// Parameters:
//   t : テトリミノの種類
// Returns:
//   *tetris.Piece: 新しいテトリミノ
//   error: 未定義の種類の場合は tetris.ErrInvalidType
func (f *PieceFactory) Create(t tetris.PieceType) (*tetris.Piece, error) {
	def, err := tetris.Definition(t)
	if err != nil {
		return nil, fmt.Errorf("テトリミノの生成に失敗しました: %w", err)
	}
	return tetris.NewPiece(def), nil
}

// CreateRandom は乱数で種類を1つ選んでテトリミノを作成します。
// 乱数源が範囲外の値を返した場合は定義表との不整合なので panic します。
func (f *PieceFactory) CreateRandom() *tetris.Piece {
	return f.mustCreate(tetris.PieceType(f.picker.Next()))
}

// Clone は p と同じ種類の新しいテトリミノを作成します。位置と回転は引き継ぎません。
func (f *PieceFactory) Clone(p *tetris.Piece) *tetris.Piece {
	return f.mustCreate(p.Type)
}

// Ghost は p の着地予測用ゴーストを作成します。
// ゴーストは灰色で、ボードへの固定や入力の対象にはなりません。
func (f *PieceFactory) Ghost(p *tetris.Piece) *tetris.Piece {
	ghost := f.mustCreate(p.Type)
	ghost.Paint(tetris.ColorGray)
	ghost.Ghost = true
	ghost.Loaded = true
	return ghost
}

func (f *PieceFactory) mustCreate(t tetris.PieceType) *tetris.Piece {
	p, err := f.Create(t)
	if err != nil {
		panic(err)
	}
	return p
}
