package tetris

import (
	"math/rand"
	"time"
)

// Picker は 0 以上 n 未満の整数を1つずつ返す乱数源です。
type Picker interface {
	Next() int
}

// RandomPicker は範囲付きの擬似乱数で次のテトリミノの種類を選びます。
// 1回の抽選ごとに独立して選ぶため、同じ種類が続くこともあります。
type RandomPicker struct {
	count int
	rnd   *rand.Rand
}

// NewRandomPicker は 0 から count-1 までを返す RandomPicker を作成します。
//
// Parameters:
//   count : 抽選する値の個数 (テトリミノなら7)
//   seed  : 乱数シード。0の場合は現在時刻を使います。
// Returns:
//   *RandomPicker: 初期化された乱数源
func NewRandomPicker(count int, seed int64) *RandomPicker {
	if count <= 0 {
		count = 1
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomPicker{
		count: count,
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Next は次の値を返します。
func (r *RandomPicker) Next() int {
	return int(r.rnd.Float64() * float64(r.count))
}

// sequencePicker は決められた値を順番に返します。最後まで使い切ると先頭に戻ります。
type sequencePicker struct {
	values []int
	pos    int
}

// NewSequencePicker は values を順に返す Picker を作成します。
// リプレイや再現テストで出現順を固定したいときに使います。
func NewSequencePicker(values ...int) Picker {
	if len(values) == 0 {
		values = []int{0}
	}
	return &sequencePicker{values: values}
}

func (s *sequencePicker) Next() int {
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}
