package tetris

import (
	"time"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
)

// Loader はテトリミノの表示準備 (画像などの読み込み) を行い、完了を通知します。
// 描画層の読み込み処理をエンジンから切り離すための境界です。
type Loader interface {
	// Load は p の準備を始め、完了したら done を呼び出します。
	Load(p *tetris.Piece, done func())
}

// ImmediateLoader はその場で準備完了とみなす Loader です。
type ImmediateLoader struct{}

// Load は p を準備済みにしてすぐに done を呼び出します。
func (ImmediateLoader) Load(p *tetris.Piece, done func()) {
	p.Loaded = true
	if done != nil {
		done()
	}
}

// ClockLoader は一定時間後に準備完了を通知する Loader です。
// 読み込みに時間がかかる環境の再現に使います。
type ClockLoader struct {
	clock Clock
	delay time.Duration
}

// NewClockLoader は delay 後に完了を通知する ClockLoader を作成します。
func NewClockLoader(clock Clock, delay time.Duration) *ClockLoader {
	return &ClockLoader{clock: clock, delay: delay}
}

// Load は delay 後に p を準備済みにして done を呼び出します。
func (l *ClockLoader) Load(p *tetris.Piece, done func()) {
	if p.Loaded {
		if done != nil {
			done()
		}
		return
	}
	l.clock.AfterFunc(l.delay, func() {
		p.Loaded = true
		if done != nil {
			done()
		}
	})
}
