package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"gopulse/pkg/compiler"
	"gopulse/pkg/config"
	"gopulse/pkg/plot"
	"gopulse/pkg/pulse"
)

const (
	screenWidth  = 1024
	screenHeight = 480
	statusHeight = 20
)

var (
	background = color.RGBA{0x10, 0x14, 0x18, 0xff}
	laneColor  = color.RGBA{0x20, 0x26, 0x2c, 0xff}
	barColor   = color.RGBA{0x4c, 0xc2, 0x7a, 0xff}
	axisColor  = color.RGBA{0x80, 0x88, 0x90, 0xff}
	errColor   = color.RGBA{0xe0, 0x50, 0x40, 0xff}

	labelFace = text.NewGoXFace(basicfont.Face7x13)
)

type Game struct {
	prog    *pulse.Program
	instrs  []compiler.Instruction
	diagram plot.Diagram
	status  string
	failed  bool
	steps   int
}

func newGame(prog *pulse.Program) *Game {
	g := &Game{prog: prog}
	g.recompile("loaded")
	return g
}

// apply runs the mutator bound to key and recompiles. It reports whether the
// viewer should quit.
func (g *Game) apply(key ebiten.Key) bool {
	var err error
	var what string
	switch key {
	case ebiten.KeyS:
		what, err = "shift", g.prog.Shift()
	case ebiten.KeyI:
		what, err = "increment", g.prog.Increment()
	case ebiten.KeyP:
		what, err = "phase", g.prog.AdvancePhase()
	case ebiten.KeyR:
		what, err = "reset", g.prog.Reset()
		g.steps = -1
	case ebiten.KeyQ, ebiten.KeyEscape:
		return true
	default:
		return false
	}
	if err != nil {
		g.status, g.failed = fmt.Sprintf("%s: %v", what, err), true
		return false
	}
	g.steps++
	g.recompile(what)
	return false
}

func (g *Game) recompile(what string) {
	instrs, err := compiler.Compile(g.prog)
	if err != nil {
		g.status, g.failed = fmt.Sprintf("%s: %v", what, err), true
		return
	}
	g.instrs = instrs
	g.diagram = plot.Layout(instrs, g.prog.Profile(), screenWidth, screenHeight-statusHeight)
	g.status = fmt.Sprintf("%s | step %d | %d instructions | rate %s | %s",
		what, g.steps, len(instrs), g.prog.RepetitionRate(), g.phases())
	g.failed = false
}

func (g *Game) phases() string {
	var parts []string
	for _, p := range g.prog.Pulses() {
		if ph := p.Phase(); ph != "" {
			parts = append(parts, p.Name+"="+ph)
		}
	}
	if len(parts) == 0 {
		return "no phase cycle"
	}
	return strings.Join(parts, " ")
}

func (g *Game) Update() error {
	for _, k := range []ebiten.Key{ebiten.KeyS, ebiten.KeyI, ebiten.KeyP, ebiten.KeyR, ebiten.KeyQ, ebiten.KeyEscape} {
		if inpututil.IsKeyJustPressed(k) && g.apply(k) {
			return ebiten.Termination
		}
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	d := g.diagram

	for _, lane := range d.Lanes {
		screen.SubImage(lane.Box.Inset(1)).(*ebiten.Image).Fill(laneColor)
		for _, bar := range lane.Bars {
			screen.SubImage(bar).(*ebiten.Image).Fill(barColor)
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(4, float64(lane.Box.Min.Y+lane.Box.Dy()/2-7))
		op.ColorScale.ScaleWithColor(axisColor)
		text.Draw(screen, lane.Label, labelFace, op)
	}

	for _, tk := range d.Axis {
		screen.SubImage(rect(tk.X, d.Plot.Max.Y, 1, 4)).(*ebiten.Image).Fill(axisColor)
		op := &text.DrawOptions{}
		op.GeoM.Translate(float64(tk.X+2), float64(d.Plot.Max.Y+4))
		op.ColorScale.ScaleWithColor(axisColor)
		text.Draw(screen, tk.Label, labelFace, op)
	}

	if g.failed {
		screen.SubImage(rect(0, screenHeight-statusHeight, screenWidth, statusHeight)).(*ebiten.Image).Fill(errColor)
	}
	ebitenutil.DebugPrintAt(screen, g.status+"   [S]hift [I]ncrement [P]hase [R]eset [Q]uit", 4, screenHeight-statusHeight+2)
}

func rect(x, y, w, h int) image.Rectangle { return image.Rect(x, y, x+w, y+h) }

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: pulseview experiment.yaml")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatal("missing experiment file")
	}

	exp, err := config.Load(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load experiment: %v", err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("pulseview: " + exp.Profile.Name())

	if err := ebiten.RunGame(newGame(exp.Program)); err != nil {
		log.Fatal(err)
	}
}
