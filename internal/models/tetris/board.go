package tetris

const (
	BoardWidth  = 10 // フィールドの幅 (列数)
	BoardHeight = 20 // フィールドの高さ (行数)

	// CellSize は1マスあたりのピクセル換算値です。
	CellSize = 20
)

// BlockColor はマスを占有しているブロックの色を表します。
// ゼロ値の ColorEmpty は空きマスです。
type BlockColor int

const (
	ColorEmpty  BlockColor = iota // 0: 空のマス
	ColorRed                      // 1: Z-ミノ
	ColorOrange                   // 2: L-ミノ
	ColorYellow                   // 3: O-ミノ
	ColorGreen                    // 4: S-ミノ
	ColorBlue                     // 5: I-ミノ
	ColorPurple                   // 6: T-ミノ
	ColorNavy                     // 7: J-ミノ
	ColorGray                     // 8: ゴースト
	ColorWhite                    // 9: 予備
)

// String は色名を返します。描画やログで使います。
func (c BlockColor) String() string {
	switch c {
	case ColorEmpty:
		return "empty"
	case ColorRed:
		return "red"
	case ColorOrange:
		return "orange"
	case ColorYellow:
		return "yellow"
	case ColorGreen:
		return "green"
	case ColorBlue:
		return "blue"
	case ColorPurple:
		return "purple"
	case ColorNavy:
		return "navy"
	case ColorGray:
		return "gray"
	case ColorWhite:
		return "white"
	}
	return "unknown"
}

// Field はテトリミノの移動・回転の可否を判定するための占有情報です。
// テトリミノはボードへの参照を持たず、操作のたびに Field を受け取ります。
type Field interface {
	// IsFree は (x, y) のマスにブロックを置けるかどうかを返します。
	IsFree(x, y int) bool
}

// Board は固定済みブロックの占有状態を表す 20x10 の配列です。
// Board[y][x] でアクセスします。yは行、xは列です。
type Board [BoardHeight][BoardWidth]BlockColor

// NewBoard は新しい空のボードを返します。
// 配列のゼロ値が ColorEmpty なので特別な初期化は不要です。
func NewBoard() Board {
	var board Board
	return board
}

// IsFree は指定したマスが空いているかを判定します。
// 左右の壁の外と床より下は常に塞がっていて、0行目より上は常に空いています。
//
// Parameters:
//   x : 列 (0-9)
//   y : 行 (0-19、負の値はフィールド上部の見えない領域)
// Returns:
//   bool: ブロックを置ける場合はtrue
func (b *Board) IsFree(x, y int) bool {
	if x < 0 || x >= BoardWidth || y >= BoardHeight {
		return false
	}
	if y < 0 {
		return true
	}
	return b[y][x] == ColorEmpty
}

// At は指定したマスの色を返します。範囲外は ColorEmpty です。
func (b *Board) At(x, y int) BlockColor {
	if x < 0 || x >= BoardWidth || y < 0 || y >= BoardHeight {
		return ColorEmpty
	}
	return b[y][x]
}

// Set は指定したマスに色を書き込みます。範囲外の場合は何もせずfalseを返します。
func (b *Board) Set(x, y int, c BlockColor) bool {
	if x < 0 || x >= BoardWidth || y < 0 || y >= BoardHeight {
		return false
	}
	b[y][x] = c
	return true
}

// Lock は落下を終えたテトリミノの4ブロックをボードに登録します。
// 1つでも範囲外または既に埋まっているマスがあれば、ボードを変更せずにfalseを返します。
//
// Parameters:
//   p : 固定するテトリミノ
// Returns:
//   bool: 4ブロックすべてを登録できた場合はtrue
func (b *Board) Lock(p *Piece) bool {
	cells := p.Cells()
	for i, c := range cells {
		if c.X < 0 || c.X >= BoardWidth || c.Y < 0 || c.Y >= BoardHeight {
			return false
		}
		if b[c.Y][c.X] != ColorEmpty {
			return false
		}
		for _, prev := range cells[:i] {
			if prev == c {
				return false
			}
		}
	}
	for _, c := range cells {
		b[c.Y][c.X] = p.Color()
	}
	return true
}

// Overlaps はテトリミノのいずれかのブロックが塞がったマスに重なっているかを返します。
func (b *Board) Overlaps(p *Piece) bool {
	for _, c := range p.Cells() {
		if !b.IsFree(c.X, c.Y) {
			return true
		}
	}
	return false
}

// FullRows は10列すべてが埋まっている行を上から順に返します。
func (b *Board) FullRows() []int {
	var rows []int
	for y := 0; y < BoardHeight; y++ {
		full := true
		for x := 0; x < BoardWidth; x++ {
			if b[y][x] == ColorEmpty {
				full = false
				break
			}
		}
		if full {
			rows = append(rows, y)
		}
	}
	return rows
}

// RemoveRows は指定した行のブロックを消去します。上の行の落下は Compact で行います。
func (b *Board) RemoveRows(rows []int) {
	for _, y := range rows {
		if y < 0 || y >= BoardHeight {
			continue
		}
		b[y] = [BoardWidth]BlockColor{}
	}
}

// Compact は消去済みの行より上にあるブロックを、その下で消えた行数だけ落とします。
//
// Parameters:
//   cleared : RemoveRows で消去した行の一覧
func (b *Board) Compact(cleared []int) {
	if len(cleared) == 0 {
		return
	}
	gone := [BoardHeight]bool{}
	for _, y := range cleared {
		if y >= 0 && y < BoardHeight {
			gone[y] = true
		}
	}

	compacted := NewBoard()
	destY := BoardHeight - 1
	for y := BoardHeight - 1; y >= 0; y-- {
		if gone[y] {
			continue
		}
		compacted[destY] = b[y]
		destY--
	}
	*b = compacted
}

// Clear はボード上のすべてのブロックを消去します。
func (b *Board) Clear() {
	*b = NewBoard()
}

// Count は埋まっているマスの数を返します。
func (b *Board) Count() int {
	n := 0
	for y := 0; y < BoardHeight; y++ {
		for x := 0; x < BoardWidth; x++ {
			if b[y][x] != ColorEmpty {
				n++
			}
		}
	}
	return n
}
