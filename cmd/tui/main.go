package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/services/tetris"
)

// releaseAfter は左右キーを離したとみなすまでの時間です。
// ターミナルはキーを離したイベントを送らないため、押下から一定時間で離したことにします。
const releaseAfter = 150 * time.Millisecond

var (
	seed      int64
	ghost     bool
	dropDelay time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gitris-tui",
		Short: "Play GITRIS in the terminal",
		Long: `Play a falling-block game in the terminal.

Keys:
  Enter        start
  ← →          move
  ↓            soft drop
  ↑ / space    hard drop
  x / z        rotate right / left
  c            hold
  p            pause
  g            toggle ghost
  r            reset
  Esc / Ctrl-C quit`,
		RunE: run,
	}
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for the piece sequence (0 = current time)")
	rootCmd.Flags().BoolVar(&ghost, "ghost", false, "Show the ghost piece from the start")
	rootCmd.Flags().DurationVar(&dropDelay, "drop-delay", tetris.DefaultStageConfig().DropDelay, "Initial drop interval")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if dropDelay <= 0 {
		return fmt.Errorf("drop-delay must be positive: %v", dropDelay)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	cfg := tetris.DefaultStageConfig()
	cfg.DropDelay = dropDelay
	cfg.Ghost = ghost

	// 最新のスナップショットだけを描画する
	snapshots := make(chan tetris.Snapshot, 1)
	runner := tetris.NewRunner(cfg, tetris.NewRandomPicker(7, seed), func(s tetris.Snapshot) {
		select {
		case <-snapshots:
		default:
		}
		snapshots <- s
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	input := newKeyInput(runner)
	var last tetris.Snapshot
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !input.handle(ev) {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
				draw(screen, last)
			}
		case s := <-snapshots:
			last = s
			draw(screen, last)
		case <-runner.Done():
			return nil
		}
	}
}

// keyInput はターミナルのキーイベントをステージの操作に変換します。
type keyInput struct {
	runner   *tetris.Runner
	releases map[tetris.Key]*time.Timer
}

func newKeyInput(runner *tetris.Runner) *keyInput {
	return &keyInput{runner: runner, releases: make(map[tetris.Key]*time.Timer)}
}

// handle は1つのキーイベントを処理します。終了キーの場合はfalseを返します。
func (k *keyInput) handle(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyEnter:
		k.runner.Do(func(s *tetris.Stage) { s.Start() })
	case tcell.KeyLeft:
		k.hold(tetris.KeyLeft)
	case tcell.KeyRight:
		k.hold(tetris.KeyRight)
	case tcell.KeyDown:
		k.press(tetris.KeySoftDrop)
	case tcell.KeyUp:
		k.press(tetris.KeyHardDrop)
	case tcell.KeyRune:
		switch ev.Rune() {
		case ' ':
			k.press(tetris.KeyHardDrop)
		case 'x', 'X':
			k.press(tetris.KeyRotateCW)
		case 'z', 'Z':
			k.press(tetris.KeyRotateCCW)
		case 'c', 'C':
			k.press(tetris.KeyHold)
		case 'p', 'P':
			k.runner.Do(func(s *tetris.Stage) { s.Pause() })
		case 'g', 'G':
			k.runner.Do(func(s *tetris.Stage) { s.ToggleGhost() })
		case 'r', 'R':
			k.runner.Do(func(s *tetris.Stage) { s.Reset() })
		}
	}
	return true
}

func (k *keyInput) press(key tetris.Key) {
	k.runner.Do(func(s *tetris.Stage) { s.Press(key) })
}

// hold はキーを押し、releaseAfter 後に離します。続けて押された場合は離すのを延期します。
func (k *keyInput) hold(key tetris.Key) {
	k.press(key)
	if t, ok := k.releases[key]; ok {
		t.Reset(releaseAfter)
		return
	}
	k.releases[key] = time.AfterFunc(releaseAfter, func() {
		k.runner.Do(func(s *tetris.Stage) { s.Release(key) })
	})
}
