package tetris

import (
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
)

// State はステージの進行状態です。
type State int

const (
	StateIdle        State = iota // スタート待ち
	StateSpawning                 // 次のテトリミノを出現させている途中
	StateFalling                  // テトリミノが落下中
	StateLockPending              // 接地して固定の猶予時間中
	StateResolving                // 固定後のライン判定中
	StateClearing                 // 揃ったラインを消去中
	StateGameOver                 // ゲームオーバー
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateSpawning:    "spawning",
	StateFalling:     "falling",
	StateLockPending: "lock_pending",
	StateResolving:   "resolving",
	StateClearing:    "clearing",
	StateGameOver:    "game_over",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText は状態を名前でJSONに書き出すために使われます。
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText は名前から状態を読み込みます。
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Running はゲームが進行中 (スタート待ちでもゲームオーバーでもない) かどうかを返します。
func (s State) Running() bool {
	return s != StateIdle && s != StateGameOver
}

// Key はプレイヤーの操作の種類です。
type Key int

const (
	KeyLeft      Key = iota // 左移動
	KeyRight                // 右移動
	KeySoftDrop             // 1マス落下 (落ちられなければ即固定)
	KeyHardDrop             // ハードドロップ
	KeyRotateCW             // 時計回り回転
	KeyRotateCCW            // 反時計回り回転
	KeyHold                 // ホールド
)

var keyNames = map[string]Key{
	"move_left":    KeyLeft,
	"move_right":   KeyRight,
	"soft_drop":    KeySoftDrop,
	"hard_drop":    KeyHardDrop,
	"rotate_right": KeyRotateCW,
	"rotate_left":  KeyRotateCCW,
	"hold":         KeyHold,
}

// ParseKey はクライアントから送られる操作名を Key に変換します。
func ParseKey(name string) (Key, error) {
	k, ok := keyNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return k, nil
}

func (k Key) String() string {
	for name, v := range keyNames {
		if v == k {
			return name
		}
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

// PieceView はクライアント送信用のテトリミノの状態です。
type PieceView struct {
	Type     string          `json:"type"`
	X        int             `json:"x"`
	Y        int             `json:"y"`
	Rotation int             `json:"rotation"`
	Color    string          `json:"color"`
	Cells    [4]tetris.Point `json:"cells"`
}

func newPieceView(p *tetris.Piece) *PieceView {
	if p == nil {
		return nil
	}
	return &PieceView{
		Type:     p.Type.String(),
		X:        p.X,
		Y:        p.Y,
		Rotation: p.Rotation,
		Color:    p.Color().String(),
		Cells:    p.Cells(),
	}
}

// Snapshot はある時点のステージ全体の読み取り専用コピーです。
// WebSocket送信やターミナル描画に使います。
type Snapshot struct {
	State        State        `json:"state"`
	Paused       bool         `json:"paused"`
	Board        tetris.Board `json:"board"`
	Active       *PieceView   `json:"active,omitempty"`
	Ghost        *PieceView   `json:"ghost,omitempty"`
	Hold         *PieceView   `json:"hold,omitempty"`
	Next         []*PieceView `json:"next"`
	Stats        Stats        `json:"stats"`
	DropDelayMS  int64        `json:"drop_delay_ms"`
	GhostVisible bool         `json:"ghost_visible"`
	HoldUsed     bool         `json:"hold_used"`
}

// Snapshot は現在の状態のコピーを返します。
// ゴーストは表示が有効なときだけ含まれます。
func (s *Stage) Snapshot() Snapshot {
	snap := Snapshot{
		State:        s.state,
		Paused:       s.paused,
		Board:        s.board,
		Active:       newPieceView(s.active),
		Hold:         newPieceView(s.holder.Peek()),
		DropDelayMS:  int64(s.dropDelay / time.Millisecond),
		GhostVisible: s.ghostVisible,
		HoldUsed:     s.holdUsed,
		Next:         make([]*PieceView, 0, VisibleCount),
	}
	if s.ghostVisible {
		snap.Ghost = newPieceView(s.ghost)
	}
	for _, p := range s.queue.Peek() {
		snap.Next = append(snap.Next, newPieceView(p))
	}
	if sp, ok := s.sink.(StatsProvider); ok {
		snap.Stats = sp.Stats()
	}
	return snap
}
