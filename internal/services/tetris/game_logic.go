package tetris

import (
	"time"
)

// StageConfig はゲームの進行速度や得点など、ステージ全体に影響する設定値です。
type StageConfig struct {
	DropDelay    time.Duration // 自動落下の初期間隔
	LockDelay    time.Duration // 接地してから固定されるまでの猶予時間
	SpawnDelay   time.Duration // 出現からゴーストの初回落下までの待ち時間
	NextDelay    time.Duration // 固定やホールドの後、次のテトリミノが出現するまでの待ち時間
	ClearDelay   time.Duration // ラインを消してから上の段を落とすまでの待ち時間
	SpeedUpLines int           // 落下速度を上げるのに必要なライン数

	LineScores [4]int // 同時に消したライン数ごとの得点 (1-4ライン)
	LockBonus  int    // 1回の固定ごとの得点

	ScoreCap int // スコアの上限 (カウンターストップ)
	LineCap  int // ライン数の上限
	LevelCap int // レベルの上限

	Ghost     bool          // ゴーストを最初から表示するかどうか
	LoadDelay time.Duration // テトリミノの表示準備にかかる時間 (0ならすぐ完了)
}

// DefaultStageConfig は標準の設定値を返します。
func DefaultStageConfig() StageConfig {
	return StageConfig{
		DropDelay:    1000 * time.Millisecond,
		LockDelay:    300 * time.Millisecond,
		SpawnDelay:   2 * time.Millisecond,
		NextDelay:    300 * time.Millisecond,
		ClearDelay:   500 * time.Millisecond,
		SpeedUpLines: 10,
		LineScores:   [4]int{500, 1000, 2000, 4000},
		LockBonus:    10,
		ScoreCap:     999999,
		LineCap:      999,
		LevelCap:     99,
	}
}

// MinDropDelay は落下間隔の下限です。
const MinDropDelay = time.Millisecond

// NextDropDelay はスピードアップ後の落下間隔を返します。
// 100msより長いうちは100msずつ、それ以下では10msずつ短くなり、1msを下回りません。
//
// Parameters:
//   current : 現在の落下間隔
// Returns:
//   time.Duration: 新しい落下間隔
func NextDropDelay(current time.Duration) time.Duration {
	if current <= MinDropDelay {
		return MinDropDelay
	}
	next := current
	if current > 100*time.Millisecond {
		next -= 100 * time.Millisecond
	} else {
		next -= 10 * time.Millisecond
	}
	if next < MinDropDelay {
		next = MinDropDelay
	}
	return next
}

// LineClearScore は同時に消したライン数に対応する得点を返します。
// 0ラインや表の範囲外の値では0を返します。
func (c StageConfig) LineClearScore(lines int) int {
	if lines < 1 || lines > len(c.LineScores) {
		return 0
	}
	return c.LineScores[lines-1]
}
