package tetris

// maxLift は回転に失敗したときに上方向へずらして再試行する最大段数です。
const maxLift = 3

// Piece は操作中、ホールド中、または待機中のテトリミノです。
// 座標はマス目単位で、ボードへの参照は持ちません。移動や回転の判定には
// 呼び出し側が Field を渡します。
type Piece struct {
	Type     PieceType `json:"type"`     // テトリミノの種類
	X        int       `json:"x"`        // 基準点の列
	Y        int       `json:"y"`        // 基準点の行 (負の値はフィールド上部)
	Rotation int       `json:"rotation"` // 回転状態 (0-3)
	Ghost    bool      `json:"ghost"`    // 着地予測用のゴーストかどうか
	Loaded   bool      `json:"-"`        // 表示準備が完了したかどうか

	color   BlockColor
	blocks  Shape // 現在の4ブロックの配置
	resting bool  // 接地時の回転表を選択中かどうか (I-ミノのみ)
}

// NewPiece は定義データから回転0のテトリミノを待機位置に作成します。
func NewPiece(def *PieceDefinition) *Piece {
	return &Piece{
		Type:   def.Type,
		X:      def.QueuePosition.X,
		Y:      def.QueuePosition.Y,
		color:  def.Color,
		blocks: def.Rotations[0],
	}
}

// Definition はこのテトリミノの定義データを返します。
func (p *Piece) Definition() *PieceDefinition {
	return &definitions[p.Type]
}

// Color はブロックの色を返します。
func (p *Piece) Color() BlockColor {
	return p.color
}

// Paint は4ブロックの色を置き換えます。ゴーストの作成に使います。
func (p *Piece) Paint(c BlockColor) {
	p.color = c
}

// Blocks は基準点からの相対オフセットを返します。
func (p *Piece) Blocks() Shape {
	return p.blocks
}

// Cells は4ブロックのフィールド上の絶対座標を返します。
func (p *Piece) Cells() [4]Point {
	var cells [4]Point
	for i, b := range p.blocks {
		cells[i] = Point{X: p.X + b.X, Y: p.Y + b.Y}
	}
	return cells
}

// PixelX は基準点のx座標をピクセル換算で返します。
func (p *Piece) PixelX() int { return p.X * CellSize }

// PixelY は基準点のy座標をピクセル換算で返します。
func (p *Piece) PixelY() int { return p.Y * CellSize }

// MoveTo は判定なしで基準点を移動します。
func (p *Piece) MoveTo(x, y int) {
	p.X = x
	p.Y = y
}

// SetStage はテトリミノをフィールドの出現位置に置きます。
func (p *Piece) SetStage() {
	def := p.Definition()
	p.MoveTo(def.SpawnX, def.spawnRow())
}

// ResetRotation は回転状態を0に戻し、ブロック配置を作り直します。
func (p *Piece) ResetRotation() {
	p.Rotation = 0
	p.resting = false
	p.blocks = p.Definition().Rotations[0]
}

// CopyPlacement は src と同じ位置・回転・ブロック配置にします。
// ゴーストを操作中のテトリミノに合わせるときに使います。
func (p *Piece) CopyPlacement(src *Piece) {
	p.X = src.X
	p.Y = src.Y
	p.Rotation = src.Rotation
	p.resting = src.resting
	p.blocks = src.blocks
}

// fits は現在のブロック配置を (dx, dy) ずらした位置に置けるかを判定します。
func (p *Piece) fits(f Field, dx, dy int) bool {
	for _, b := range p.blocks {
		if !f.IsFree(p.X+b.X+dx, p.Y+b.Y+dy) {
			return false
		}
	}
	return true
}

// Fits は現在の位置にそのまま置けるかを返します。
func (p *Piece) Fits(f Field) bool {
	return p.fits(f, 0, 0)
}

func (p *Piece) move(f Field, dx, dy int) bool {
	if !p.fits(f, dx, dy) {
		return false
	}
	p.X += dx
	p.Y += dy
	return true
}

// MoveLeft は1マス左へ移動します。
//
// Parameters:
//   f : 占有判定に使うフィールド
// Returns:
//   bool: 移動できた場合はtrue。移動できない場合は何も変更しません。
func (p *Piece) MoveLeft(f Field) bool { return p.move(f, -1, 0) }

// MoveRight は1マス右へ移動します。
func (p *Piece) MoveRight(f Field) bool { return p.move(f, 1, 0) }

// MoveDown は1マス下へ移動します。
func (p *Piece) MoveDown(f Field) bool { return p.move(f, 0, 1) }

// MoveUp は1マス上へ移動します。床の制限はありません。
func (p *Piece) MoveUp(f Field) bool { return p.move(f, 0, -1) }

// CanMoveDown は1マス下へ移動できるかどうかだけを返します。
func (p *Piece) CanMoveDown(f Field) bool { return p.fits(f, 0, 1) }

// HardDrop は下へ移動できなくなるまで落とし、落下した段数を返します。
func (p *Piece) HardDrop(f Field) int {
	steps := 0
	for p.MoveDown(f) {
		steps++
	}
	return steps
}

// RotateClockwise は時計回りに回転します。
// 壁蹴りと上方向への持ち上げを決められた順で試し、どれも置けなければ元の状態のままfalseを返します。
func (p *Piece) RotateClockwise(f Field) bool {
	return p.rotate(f, true)
}

// RotateCounterClockwise は反時計回りに回転します。
func (p *Piece) RotateCounterClockwise(f Field) bool {
	return p.rotate(f, false)
}

func (p *Piece) rotate(f Field, forward bool) bool {
	if p.kick(f, forward) {
		p.applyRotation(forward)
		return true
	}

	lifted := 0
	for lifted < maxLift {
		if !p.MoveUp(f) {
			break
		}
		lifted++
		if p.kick(f, forward) {
			p.applyRotation(forward)
			return true
		}
	}
	for ; lifted > 0; lifted-- {
		p.MoveDown(f)
	}
	return false
}

// kick は回転後の配置を置ける位置を水平方向に探します。
// 見つかった場合はその位置に移動した状態でtrueを返します。
func (p *Piece) kick(f Field, forward bool) bool {
	p.selectTable(f)
	next := nextRotation(p.Rotation, forward)

	if p.fitsRotation(f, next) {
		return true
	}

	if p.MoveLeft(f) {
		if p.fitsRotation(f, next) {
			return true
		}
		p.MoveRight(f)
	}

	if p.MoveRight(f) {
		if p.fitsRotation(f, next) {
			return true
		}
		// I-ミノの縦向きだけはもう1マス右まで試す
		if p.Type == TypeI && (p.Rotation == 1 || p.Rotation == 3) && p.MoveRight(f) {
			if p.fitsRotation(f, next) {
				return true
			}
			p.MoveLeft(f)
			p.MoveLeft(f)
		} else {
			p.MoveLeft(f)
		}
	}

	p.X++
	if p.fitsRotation(f, next) {
		return true
	}
	p.MoveLeft(f)

	p.X--
	if p.fitsRotation(f, next) {
		return true
	}
	p.MoveRight(f)
	return false
}

// selectTable は接地しているかどうかで回転表を切り替えます。
func (p *Piece) selectTable(f Field) {
	if p.Definition().FloorKick {
		p.resting = !p.fits(f, 0, 1)
	}
}

func (p *Piece) table() *[RotationCount]Shape {
	def := p.Definition()
	if def.FloorKick && p.resting {
		return &def.RestingRotations
	}
	return &def.Rotations
}

func (p *Piece) fitsRotation(f Field, rotation int) bool {
	for _, b := range p.table()[rotation] {
		if !f.IsFree(p.X+b.X, p.Y+b.Y) {
			return false
		}
	}
	return true
}

func (p *Piece) applyRotation(forward bool) {
	p.Rotation = nextRotation(p.Rotation, forward)
	p.blocks = p.table()[p.Rotation]
}

func nextRotation(r int, forward bool) int {
	if forward {
		return (r + 1) % RotationCount
	}
	return (r + RotationCount - 1) % RotationCount
}
