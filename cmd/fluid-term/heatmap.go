package main

import (
	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/sph"
)

// Terminal cells are roughly twice as tall as they are wide.
const cellAspect = 2

var ramp = []rune(" .:-=+*#%@")

type heatCell struct {
	count   int
	density float32
}

// Heatmap bins projected particles into terminal cells. Glyphs follow the
// particle count of a cell, colors its mean density.
type Heatmap struct {
	cols, rows int
	cells      []heatCell
	peak       int
}

// Resize discards the bins when the terminal size changed.
func (h *Heatmap) Resize(cols, rows int) {
	if cols == h.cols && rows == h.rows {
		return
	}
	h.cols, h.rows = cols, rows
	h.cells = make([]heatCell, cols*rows)
}

// Reset clears every bin.
func (h *Heatmap) Reset() {
	clear(h.cells)
	h.peak = 0
}

// Add projects one particle through viewProj and bins it. It reports whether
// the particle landed on screen.
func (h *Heatmap) Add(viewProj mgl32.Mat4, pos mgl32.Vec3, rho float32) bool {
	clip := viewProj.Mul4x1(pos.Vec4(1))
	if clip[3] <= 0 {
		return false
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	if ndc[0] < -1 || ndc[0] >= 1 || ndc[1] <= -1 || ndc[1] > 1 {
		return false
	}
	x := int((ndc[0] + 1) / 2 * float32(h.cols))
	y := int((1 - ndc[1]) / 2 * float32(h.rows))
	if x < 0 || x >= h.cols || y < 0 || y >= h.rows {
		return false
	}
	c := &h.cells[y*h.cols+x]
	c.count++
	c.density += rho
	h.peak = max(h.peak, c.count)
	return true
}

// Glyph returns the rune and style of one cell. rest is the rest density the
// color scale is centered on.
func (h *Heatmap) Glyph(x, y int, rest float32) (rune, tcell.Style) {
	c := h.cells[y*h.cols+x]
	if c.count == 0 || h.peak == 0 {
		return ' ', tcell.StyleDefault
	}
	level := 1 + (c.count-1)*(len(ramp)-2)/max(h.peak-1, 1)
	mean := c.density / float32(c.count)

	t := float32(0)
	if rest > 0 {
		t = mgl32.Clamp(mean/(2*rest), 0, 1)
	}
	color := tcell.NewRGBColor(int32(40+215*t), int32(90+120*t), int32(255-200*t))
	return ramp[level], tcell.StyleDefault.Foreground(color)
}

// Draw writes every cell to screen.
func (h *Heatmap) Draw(screen tcell.Screen, rest float32) {
	for y := 0; y < h.rows; y++ {
		for x := 0; x < h.cols; x++ {
			r, style := h.Glyph(x, y, rest)
			screen.SetContent(x, y, r, nil, style)
		}
	}
}

// terminalCamera looks down -z from eye with a view sized for cols by rows
// cells.
func terminalCamera(eye mgl32.Vec3, fov float32, cols, rows int) sph.Camera {
	aspect := float32(1)
	if rows > 0 {
		aspect = float32(cols) / float32(rows*cellAspect)
	}
	return sph.Camera{
		View:       mgl32.LookAtV(eye, eye.Add(mgl32.Vec3{0, 0, -1}), mgl32.Vec3{0, 1, 0}),
		Projection: mgl32.Perspective(mgl32.DegToRad(fov), aspect, 0.1, 1000),
		Width:      float32(cols),
		Height:     float32(rows),
	}
}
