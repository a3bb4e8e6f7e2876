package interactive

import (
	"fmt"
	"io"
	"strings"
)

const (
	// BlockLines is the height of the rendered block.
	BlockLines = 6
	minCols    = 3

	clearLine = "\033[2K"
	fillOn    = "\033[47m"
	fillOff   = "\033[49m"
)

// bar keeps the border and blank runs for one terminal width so redraws
// only slice them.
type bar struct {
	cols   int
	border string
	blank  string
}

func newBar(cols int) *bar {
	cols = max(cols, minCols)
	inner := cols - 2
	return &bar{
		cols:   cols,
		border: strings.Repeat("─", inner),
		blank:  strings.Repeat(" ", inner),
	}
}

// fill is the number of highlighted cells for cur out of maximum.
func (b *bar) fill(cur, maximum int64) int {
	inner := float64(b.cols - 2)
	n := int(float64(cur)*inner/float64(maximum) + 0.5)
	return min(max(n, 0), b.cols-2)
}

// render moves the cursor back over the previous block and overwrites it.
func (b *bar) render(w io.Writer, maximum, initial, cur int64) {
	mid := b.fill(cur, maximum)
	fmt.Fprintf(w, "\033[%dD\033[%dA", b.cols, BlockLines)
	fmt.Fprintf(w, "%s┌%s┐\n", clearLine, b.border)
	fmt.Fprintf(w, "%s│%s%s%s%s│\n", clearLine, fillOn, b.blank[:mid], fillOff, b.blank[mid:])
	fmt.Fprintf(w, "%s└%s┘\n", clearLine, b.border)
	fmt.Fprintf(w, "%sMaximum brightness: %d\n", clearLine, maximum)
	fmt.Fprintf(w, "%sInitial brightness: %d\n", clearLine, initial)
	fmt.Fprintf(w, "%sCurrent brightness: %d\n", clearLine, cur)
}
