package tetris

import (
	"errors"
	"fmt"
)

// ErrInvalidType は定義表に存在しないテトリミノの種類が指定されたときに返されます。
var ErrInvalidType = errors.New("invalid tetrimino type")

// PieceType はテトリミノの種類を表します。
// 値の並びはランダム抽選の結果とそのまま対応します。
type PieceType int

const (
	TypeI PieceType = iota // 0: I-ミノ (青)
	TypeO                  // 1: O-ミノ (黄)
	TypeJ                  // 2: J-ミノ (紺)
	TypeL                  // 3: L-ミノ (オレンジ)
	TypeS                  // 4: S-ミノ (緑)
	TypeZ                  // 5: Z-ミノ (赤)
	TypeT                  // 6: T-ミノ (紫)
)

// PieceTypeCount はテトリミノの種類数です。
const PieceTypeCount = 7

// RotationCount は1つのテトリミノが持つ回転状態の数です。
const RotationCount = 4

// Point はマス目単位の座標、またはテトリミノ基準点からの相対オフセットです。
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Shape は1つの回転状態における4ブロック分の相対オフセットです。
type Shape [4]Point

// PieceDefinition はテトリミノ1種類分の不変な定義データです。
type PieceDefinition struct {
	Type  PieceType
	Color BlockColor

	// Rotations は通常時の回転表です。
	Rotations [RotationCount]Shape

	// RestingRotations は床に接地しているときに使う回転表です。
	// FloorKick が false の型では使われません。
	RestingRotations [RotationCount]Shape
	FloorKick        bool

	// SpawnX と SpawnWidth はフィールド中央寄せのための出現パラメータです。
	SpawnX     int
	SpawnWidth int

	// HoldOffset はホールド表示枠の中での表示位置です。
	HoldOffset Point

	// QueuePosition は生成直後 (フィールド外) の待機位置です。
	QueuePosition Point
}

// spawnRow はテトリミノがフィールドに置かれるときの行を返します。
// 幅2マスのO-ミノだけは0行目、それ以外は1行上から出現します。
func (d *PieceDefinition) spawnRow() int {
	if d.SpawnWidth == 2 {
		return 0
	}
	return -1
}

func repeatPair(a, b Shape) [RotationCount]Shape {
	return [RotationCount]Shape{a, b, a, b}
}

// definitions は7種類のテトリミノ定義表です。PieceType の値でインデックスします。
var definitions = [PieceTypeCount]PieceDefinition{
	TypeI: {
		Type:  TypeI,
		Color: ColorBlue,
		Rotations: repeatPair(
			Shape{{0, 1}, {1, 1}, {2, 1}, {3, 1}},
			Shape{{2, 0}, {2, 1}, {2, 2}, {2, 3}},
		),
		RestingRotations: repeatPair(
			Shape{{0, 1}, {1, 1}, {2, 1}, {3, 1}},
			Shape{{2, -2}, {2, -1}, {2, 0}, {2, 1}},
		),
		FloorKick:     true,
		SpawnX:        3,
		SpawnWidth:    4,
		HoldOffset:    Point{0, 0},
		QueuePosition: Point{3, -4},
	},
	TypeO: {
		Type:  TypeO,
		Color: ColorYellow,
		Rotations: [RotationCount]Shape{
			{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
			{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
			{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
			{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		},
		SpawnX:        4,
		SpawnWidth:    2,
		HoldOffset:    Point{1, 0},
		QueuePosition: Point{4, -3},
	},
	TypeJ: {
		Type:  TypeJ,
		Color: ColorNavy,
		Rotations: [RotationCount]Shape{
			{{0, 1}, {1, 1}, {2, 1}, {2, 2}},
			{{1, 0}, {1, 1}, {1, 2}, {0, 2}},
			{{0, 1}, {0, 2}, {1, 2}, {2, 2}},
			{{1, 0}, {2, 0}, {1, 1}, {1, 2}},
		},
		SpawnX:        3,
		SpawnWidth:    3,
		HoldOffset:    Point{0, -1},
		QueuePosition: Point{3, -4},
	},
	TypeL: {
		Type:  TypeL,
		Color: ColorOrange,
		Rotations: [RotationCount]Shape{
			{{0, 1}, {1, 1}, {2, 1}, {0, 2}},
			{{0, 0}, {1, 0}, {1, 1}, {1, 2}},
			{{0, 2}, {1, 2}, {2, 2}, {2, 1}},
			{{1, 0}, {1, 1}, {1, 2}, {2, 2}},
		},
		SpawnX:        3,
		SpawnWidth:    3,
		HoldOffset:    Point{0, -1},
		QueuePosition: Point{3, -4},
	},
	TypeS: {
		Type:  TypeS,
		Color: ColorGreen,
		Rotations: repeatPair(
			Shape{{0, 2}, {1, 2}, {1, 1}, {2, 1}},
			Shape{{0, 0}, {0, 1}, {1, 1}, {1, 2}},
		),
		SpawnX:        3,
		SpawnWidth:    3,
		HoldOffset:    Point{0, -1},
		QueuePosition: Point{3, -4},
	},
	TypeZ: {
		Type:  TypeZ,
		Color: ColorRed,
		Rotations: repeatPair(
			Shape{{0, 1}, {1, 1}, {1, 2}, {2, 2}},
			Shape{{2, 0}, {2, 1}, {1, 1}, {1, 2}},
		),
		SpawnX:        3,
		SpawnWidth:    3,
		HoldOffset:    Point{0, -1},
		QueuePosition: Point{3, -4},
	},
	TypeT: {
		Type:  TypeT,
		Color: ColorPurple,
		Rotations: [RotationCount]Shape{
			{{0, 1}, {1, 1}, {2, 1}, {1, 2}},
			{{0, 1}, {1, 0}, {1, 1}, {1, 2}},
			{{1, 1}, {0, 2}, {1, 2}, {2, 2}},
			{{1, 0}, {1, 1}, {1, 2}, {2, 1}},
		},
		SpawnX:        3,
		SpawnWidth:    3,
		HoldOffset:    Point{0, -1},
		QueuePosition: Point{3, -4},
	},
}

// Valid は t が定義済みのテトリミノ種類かどうかを返します。
func (t PieceType) Valid() bool {
	return t >= 0 && int(t) < PieceTypeCount
}

// String はテトリミノの種類を1文字の名前で返します。
func (t PieceType) String() string {
	switch t {
	case TypeI:
		return "I"
	case TypeO:
		return "O"
	case TypeJ:
		return "J"
	case TypeL:
		return "L"
	case TypeS:
		return "S"
	case TypeZ:
		return "Z"
	case TypeT:
		return "T"
	}
	return fmt.Sprintf("PieceType(%d)", int(t))
}

// ParsePieceType は "I" や "T" のような名前から PieceType を返します。
func ParsePieceType(name string) (PieceType, error) {
	for t := PieceType(0); int(t) < PieceTypeCount; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidType, name)
}

// Definition は指定された種類の定義データを返します。
//
// Parameters:
//   t : テトリミノの種類
// Returns:
//   *PieceDefinition: 定義データ (読み取り専用)
//   error: 未定義の種類の場合は ErrInvalidType
func Definition(t PieceType) (*PieceDefinition, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, int(t))
	}
	return &definitions[t], nil
}
