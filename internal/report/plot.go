package report

import (
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	defaultChartHeight = 8
	chartMaxDegrees    = 180.0
	chartAxisWidth     = 4
	chartAxisSeparator = " │ "
	colorTrace         = "\x1b[36m"
	colorGuide         = "\x1b[33m"
)

// canvas is a grid of braille cells, two dots wide and four dots tall each.
type canvas struct {
	cells [][]uint8
	owner [][]int
}

func newCanvas(width, height int) *canvas {
	c := &canvas{cells: make([][]uint8, height), owner: make([][]int, height)}
	for y := range c.cells {
		c.cells[y] = make([]uint8, width)
		c.owner[y] = make([]int, width)
		for x := range c.owner[y] {
			c.owner[y][x] = -1
		}
	}
	return c
}

func (c *canvas) dotWidth() int  { return len(c.cells[0]) * 2 }
func (c *canvas) dotHeight() int { return len(c.cells) * 4 }

// set lights one dot; the first layer to touch a cell decides its colour.
func (c *canvas) set(x, y, layer int) {
	if x < 0 || y < 0 || x >= c.dotWidth() || y >= c.dotHeight() {
		return
	}
	cx, cy := x/2, y/4
	c.cells[cy][cx] |= brailleBit(x%2, y%4)
	if c.owner[cy][cx] < 0 {
		c.owner[cy][cx] = layer
	}
}

// line draws between two dots with Bresenham's algorithm.
func (c *canvas) line(x0, y0, x1, y1, layer int) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.set(x0, y0, layer)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// guide draws a dashed horizontal line at row y.
func (c *canvas) guide(y, layer int) {
	for x := 0; x < c.dotWidth(); x++ {
		if x%6 < 3 {
			c.set(x, y, layer)
		}
	}
}

func brailleBit(x, y int) uint8 {
	if y == 3 {
		if x == 0 {
			return 0x40
		}
		return 0x80
	}
	return uint8(1) << uint(y+3*x)
}

// degreeRow maps an angle to a dot row, 180° at the top.
func degreeRow(deg float64, dotHeight int) int {
	pos := deg / chartMaxDegrees
	row := int(math.Round((1 - pos) * float64(dotHeight-1)))
	if row < 0 {
		return 0
	}
	if row >= dotHeight {
		return dotHeight - 1
	}
	return row
}

// RenderAngleChart plots the knee trace on a fixed 0-180° scale with dashed
// guides at the depth and extension thresholds.
func RenderAngleChart(w io.Writer, trace []float64, depth, extension float64, width, height int, useColor bool) error {
	if len(trace) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultChartHeight
	}
	if width <= 0 {
		width = TerminalWidth()
	}
	width -= chartAxisWidth + len([]rune(chartAxisSeparator))
	if width < traceMinWidth {
		width = traceMinWidth
	}

	c := newCanvas(width, height)
	values := resample(trace, c.dotWidth())
	prevX, prevY := -1, -1
	for i, v := range values {
		x := i
		if len(values) < c.dotWidth() {
			x = i * (c.dotWidth() - 1) / maxInt(1, len(values)-1)
		}
		y := degreeRow(v, c.dotHeight())
		if prevX >= 0 {
			c.line(prevX, prevY, x, y, 0)
		} else {
			c.set(x, y, 0)
		}
		prevX, prevY = x, y
	}
	c.guide(degreeRow(depth, c.dotHeight()), 1)
	c.guide(degreeRow(extension, c.dotHeight()), 1)

	if _, err := fmt.Fprintf(w, "Knee angle (depth %.0f°, extension %.0f°)\n", depth, extension); err != nil {
		return err
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(padCell(axisLabel(y, height), chartAxisWidth, true) + chartAxisSeparator)
		for x := 0; x < width; x++ {
			ch := rune(0x2800 + int(c.cells[y][x]))
			if !useColor || c.owner[y][x] < 0 {
				row.WriteRune(ch)
				continue
			}
			color := colorTrace
			if c.owner[y][x] == 1 {
				color = colorGuide
			}
			row.WriteString(color)
			row.WriteRune(ch)
			row.WriteString(colorReset)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func axisLabel(row, height int) string {
	switch row {
	case 0:
		return "180°"
	case height / 2:
		return "90°"
	case height - 1:
		return "0°"
	default:
		return ""
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
