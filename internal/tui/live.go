// Package tui provides terminal views: a live rollout renderer and a
// stored-run browser.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/san-kum/rensim/internal/sim"
)

const (
	width       = 70
	height      = 20
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer draws the rollout's output channels as rolling traces
// while the simulation runs. It implements sim.Observer.
type LiveRenderer struct {
	out       sim.OutputMapper
	frameRate int
	lastFrame time.Time
	canvas    [][]rune
	history   [][]float64
}

func NewLiveRenderer(out sim.OutputMapper, frameRate int) *LiveRenderer {
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
	}
	return &LiveRenderer{
		out:       out,
		frameRate: frameRate,
		canvas:    canvas,
	}
}

func (r *LiveRenderer) OnStep(x sim.State, u sim.Control, t float64) {
	y := r.out.Output(x, u)
	r.history = append(r.history, y)
	if len(r.history) > width {
		r.history = r.history[1:]
	}

	elapsed := time.Since(r.lastFrame)
	if elapsed < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()

	r.clear()
	r.drawTraces()
	r.render(y, t)
}

func (r *LiveRenderer) clear() {
	for y := range r.canvas {
		for x := range r.canvas[y] {
			r.canvas[y][x] = ' '
		}
	}
}

func (r *LiveRenderer) set(x, y int, c rune) {
	if x >= 0 && x < width && y >= 0 && y < height {
		r.canvas[y][x] = c
	}
}

var traceGlyphs = []rune{'o', '*', '+', 'x', '#', '@'}

func (r *LiveRenderer) drawTraces() {
	if len(r.history) == 0 {
		return
	}

	maxVal := 1e-9
	for _, row := range r.history {
		for _, v := range row {
			if math.Abs(v) > maxVal {
				maxVal = math.Abs(v)
			}
		}
	}

	mid := height / 2
	for i := 0; i < width; i++ {
		r.set(i, mid, '-')
	}

	for k, row := range r.history {
		cx := width - len(r.history) + k
		for ch, v := range row {
			cy := mid - int(v/maxVal*float64(height/2-1))
			r.set(cx, cy, traceGlyphs[ch%len(traceGlyphs)])
		}
	}
}

func (r *LiveRenderer) render(y []float64, t float64) {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(fmt.Sprintf("  rollout  t=%.3f\n", t))
	b.WriteString("  " + strings.Repeat("-", width) + "\n")

	for _, row := range r.canvas {
		b.WriteString("  ")
		b.WriteString(string(row))
		b.WriteString("\n")
	}

	b.WriteString("  " + strings.Repeat("-", width) + "\n")

	line := "  "
	for i, v := range y {
		if i >= 4 {
			break
		}
		line += fmt.Sprintf("y%d=%.3f ", i, v)
	}
	b.WriteString(line + "\n")

	fmt.Print(b.String())
}

func (r *LiveRenderer) Start() { fmt.Print(hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Print(showCursor) }
