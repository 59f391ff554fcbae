package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models/tetris"
	stage "github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/services/tetris"
)

const (
	boardLeft = 2  // フィールドの左端の列 (枠を含まない)
	boardTop  = 1  // フィールドの上端の行
	sideLeft  = 26 // 右側の情報欄の列
)

var blockColors = map[string]tcell.Color{
	tetris.ColorRed.String():    tcell.ColorRed,
	tetris.ColorOrange.String(): tcell.ColorOrange,
	tetris.ColorYellow.String(): tcell.ColorYellow,
	tetris.ColorGreen.String():  tcell.ColorGreen,
	tetris.ColorBlue.String():   tcell.ColorBlue,
	tetris.ColorPurple.String(): tcell.ColorPurple,
	tetris.ColorNavy.String():   tcell.ColorNavy,
	tetris.ColorGray.String():   tcell.ColorGray,
	tetris.ColorWhite.String():  tcell.ColorWhite,
}

func styleFor(color string) tcell.Style {
	c, ok := blockColors[color]
	if !ok {
		c = tcell.ColorWhite
	}
	return tcell.StyleDefault.Foreground(c)
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

// drawCell はフィールドの1マスを2文字幅で描画します。
func drawCell(s tcell.Screen, x, y int, style tcell.Style, glyph [2]rune) {
	px := boardLeft + x*2
	py := boardTop + y
	s.SetContent(px, py, glyph[0], nil, style)
	s.SetContent(px+1, py, glyph[1], nil, style)
}

var (
	solidGlyph = [2]rune{'█', '█'}
	ghostGlyph = [2]rune{'░', '░'}
	emptyGlyph = [2]rune{' ', '.'}
)

func drawPiece(s tcell.Screen, p *stage.PieceView, glyph [2]rune) {
	if p == nil {
		return
	}
	style := styleFor(p.Color)
	for _, c := range p.Cells {
		// フィールドより上のブロックは描かない
		if c.Y < 0 || c.Y >= tetris.BoardHeight {
			continue
		}
		drawCell(s, c.X, c.Y, style, glyph)
	}
}

// drawPreview は p の形を (x, y) を左上として情報欄に描画します。
func drawPreview(s tcell.Screen, x, y int, p *stage.PieceView) {
	if p == nil {
		return
	}
	minX, minY := p.Cells[0].X, p.Cells[0].Y
	for _, c := range p.Cells {
		minX = min(minX, c.X)
		minY = min(minY, c.Y)
	}
	style := styleFor(p.Color)
	for _, c := range p.Cells {
		px := x + (c.X-minX)*2
		py := y + (c.Y - minY)
		s.SetContent(px, py, '█', nil, style)
		s.SetContent(px+1, py, '█', nil, style)
	}
}

func draw(s tcell.Screen, snap stage.Snapshot) {
	s.Clear()
	frame := tcell.StyleDefault.Foreground(tcell.ColorGray)

	for y := 0; y < tetris.BoardHeight; y++ {
		s.SetContent(boardLeft-1, boardTop+y, '│', nil, frame)
		s.SetContent(boardLeft+tetris.BoardWidth*2, boardTop+y, '│', nil, frame)
		for x := 0; x < tetris.BoardWidth; x++ {
			color := snap.Board.At(x, y)
			if color == tetris.ColorEmpty {
				drawCell(s, x, y, frame, emptyGlyph)
			} else {
				drawCell(s, x, y, styleFor(color.String()), solidGlyph)
			}
		}
	}
	for x := -1; x <= tetris.BoardWidth*2; x++ {
		s.SetContent(boardLeft+x, boardTop+tetris.BoardHeight, '─', nil, frame)
	}

	drawPiece(s, snap.Ghost, ghostGlyph)
	drawPiece(s, snap.Active, solidGlyph)

	label := tcell.StyleDefault.Bold(true)
	drawText(s, sideLeft, 1, label, "HOLD")
	drawPreview(s, sideLeft, 2, snap.Hold)

	drawText(s, sideLeft, 6, label, "NEXT")
	for i, p := range snap.Next {
		drawPreview(s, sideLeft, 7+i*3, p)
	}

	info := tcell.StyleDefault
	drawText(s, sideLeft+12, 1, info, fmt.Sprintf("SCORE %6d", snap.Stats.Score))
	drawText(s, sideLeft+12, 2, info, fmt.Sprintf("LINES %6d", snap.Stats.Lines))
	drawText(s, sideLeft+12, 3, info, fmt.Sprintf("LEVEL %6d", snap.Stats.Level))
	drawText(s, sideLeft+12, 4, info, fmt.Sprintf("SPEED %4dms", snap.DropDelayMS))

	status := ""
	switch {
	case snap.State == stage.StateIdle:
		status = "Press Enter to start"
	case snap.State == stage.StateGameOver:
		status = "GAME OVER  (r: reset)"
	case snap.Paused:
		status = "PAUSED"
	}
	if status != "" {
		drawText(s, boardLeft, boardTop+tetris.BoardHeight+1, label, status)
	}

	s.Show()
}
