package render

import (
	"io"
	"math"
	"strings"

	"github.com/l1jgo/frameloop/internal/core/ecs"
)

// Canvas is a character grid covering the X/Y plane of a world extent.
// Y grows upwards. Text that falls outside the grid is clipped.
type Canvas struct {
	width, height int
	ext           ecs.Extent
	cells         [][]rune
	draws         int
}

func NewCanvas(width, height int, ext ecs.Extent) *Canvas {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	c := &Canvas{width: width, height: height, ext: ext}
	c.cells = make([][]rune, height)
	for i := range c.cells {
		c.cells[i] = make([]rune, width)
	}
	c.Reset()
	return c
}

func (c *Canvas) Width() int  { return c.width }
func (c *Canvas) Height() int { return c.height }

// Draws returns the number of DrawText calls since the last Reset.
func (c *Canvas) Draws() int { return c.draws }

func (c *Canvas) Reset() {
	for _, row := range c.cells {
		for i := range row {
			row[i] = ' '
		}
	}
	c.draws = 0
}

// Cell maps world coordinates to a grid position. ok is false when the
// point lies outside the extent.
func (c *Canvas) Cell(x, y float64) (col, row int, ok bool) {
	spanX := c.ext.MaxX - c.ext.MinX
	spanY := c.ext.MaxY - c.ext.MinY
	if spanX <= 0 || spanY <= 0 {
		return 0, 0, false
	}
	if x < c.ext.MinX || x > c.ext.MaxX || y < c.ext.MinY || y > c.ext.MaxY {
		return 0, 0, false
	}
	col = int(math.Round((x - c.ext.MinX) / spanX * float64(c.width-1)))
	row = c.height - 1 - int(math.Round((y-c.ext.MinY)/spanY*float64(c.height-1)))
	return col, row, true
}

// DrawText implements ecs.RenderContext.
func (c *Canvas) DrawText(x, y float64, text string) {
	c.draws++
	col, row, ok := c.Cell(x, y)
	if !ok {
		return
	}
	line := c.cells[row]
	for _, r := range text {
		if col >= c.width {
			break
		}
		line[col] = r
		col++
	}
}

// String renders the grid inside a border.
func (c *Canvas) String() string {
	var b strings.Builder
	border := "+" + strings.Repeat("-", c.width) + "+\n"
	b.Grow((c.width + 3) * (c.height + 2))
	b.WriteString(border)
	for _, row := range c.cells {
		b.WriteByte('|')
		b.WriteString(string(row))
		b.WriteString("|\n")
	}
	b.WriteString(border)
	return b.String()
}

func (c *Canvas) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, c.String())
	return int64(n), err
}

var _ ecs.RenderContext = (*Canvas)(nil)
