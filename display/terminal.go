package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal shows the screen as a boxed grid of text cells.
type Terminal struct {
	out      io.Writer
	cells    [Rows][Columns]rune
	col, row int
	style    lipgloss.Style
	contrast byte
}

func NewTerminal(out io.Writer) *Terminal {
	t := &Terminal{
		out: out,
		style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		contrast: 255,
	}
	t.Clear()
	return t
}

func (t *Terminal) Clear() {
	for r := range t.cells {
		for c := range t.cells[r] {
			t.cells[r][c] = ' '
		}
	}
	t.col, t.row = 0, 0
}

func (t *Terminal) SetCursor(col, row int) {
	t.col, t.row = col, row
}

func (t *Terminal) Print(s string) {
	for _, r := range s {
		t.put(t.col, t.row, r)
		t.col++
	}
}

func (t *Terminal) Println(s string) {
	t.Print(s)
	t.col = 0
	t.row++
}

func (t *Terminal) DrawIcon(col, row int, icon Icon) {
	t.put(col, row, icon.Glyph)
}

func (t *Terminal) put(col, row int, r rune) {
	if row < 0 || row >= Rows || col < 0 || col >= Columns {
		return
	}
	t.cells[row][col] = r
}

// Lines returns the cell grid with trailing blanks trimmed.
func (t *Terminal) Lines() []string {
	lines := make([]string, Rows)
	for r := range t.cells {
		lines[r] = strings.TrimRight(string(t.cells[r][:]), " ")
	}
	return lines
}

// SetContrast dims the screen text, low levels render it faint.
func (t *Terminal) SetContrast(level byte) error {
	t.contrast = level
	return nil
}

func (t *Terminal) Present() error {
	grid := make([]string, Rows)
	for r := range t.cells {
		grid[r] = string(t.cells[r][:])
	}
	style := t.style.Faint(t.contrast < 128)
	screen := style.Render(strings.Join(grid, "\n"))
	// The keyboard puts the terminal in raw mode, so every line needs its
	// carriage return.
	_, err := fmt.Fprint(t.out, "\x1b[H\x1b[2J"+strings.ReplaceAll(screen, "\n", "\r\n")+"\r\n")
	return err
}
