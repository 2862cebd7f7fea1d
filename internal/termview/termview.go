// Package termview prints a framebuffer to an ANSI terminal using upper half-block
// characters, two screen rows per text row, with 24-bit colours.
package termview

import (
	"bufio"
	"fmt"
	"io"

	"golang.org/x/term"
)

const (
	halfBlock   = "▀"
	defaultCols = 80
)

// Columns returns the width of the terminal on fd, or 80 when fd is not a terminal.
func Columns(fd int) int {
	if !term.IsTerminal(fd) {
		return defaultCols
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultCols
	}
	return w
}

// Render draws the RGBA framebuffer fb of width x height pixels scaled down by whole
// steps until it fits in cols columns.
func Render(out io.Writer, fb []byte, width, height, cols int) error {
	if len(fb) < width*height*4 {
		return fmt.Errorf("framebuffer holds %d bytes, need %d", len(fb), width*height*4)
	}
	step := 1
	for cols > 0 && width/step > cols {
		step++
	}

	w := bufio.NewWriter(out)
	pixel := func(x, y int) (r, g, b byte) {
		i := (y*width + x) * 4
		return fb[i], fb[i+1], fb[i+2]
	}
	for y := 0; y < height; y += 2 * step {
		for x := 0; x < width; x += step {
			tr, tg, tb := pixel(x, y)
			br, bg, bb := tr, tg, tb
			if y+step < height {
				br, bg, bb = pixel(x, y+step)
			}
			fmt.Fprintf(w, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm%s", tr, tg, tb, br, bg, bb, halfBlock)
		}
		fmt.Fprint(w, "\x1b[0m\n")
	}
	return w.Flush()
}
