package display

import (
	"fmt"
	"image"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const fontSize = 8

// Canvas rasterizes the screen in memory. The other displays present what it
// has drawn.
type Canvas struct {
	dc       *gg.Context
	col, row int
}

// NewCanvas draws text with the TrueType font at fontFile, or Go Mono when
// fontFile is empty.
func NewCanvas(fontFile string) (*Canvas, error) {
	face, err := loadFace(fontFile)
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(Width, Height)
	dc.SetFontFace(face)
	c := &Canvas{dc: dc}
	c.Clear()
	return c, nil
}

func loadFace(fontFile string) (font.Face, error) {
	data := gomono.TTF
	if fontFile != "" {
		b, err := os.ReadFile(fontFile)
		if err != nil {
			return nil, fmt.Errorf("could not load the font: %w", err)
		}
		data = b
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse the font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: fontSize, Hinting: font.HintingFull}), nil
}

func (c *Canvas) Clear() {
	c.dc.SetRGB(0, 0, 0)
	c.dc.Clear()
	c.col, c.row = 0, 0
}

func (c *Canvas) SetCursor(col, row int) {
	c.col, c.row = col, row
}

func (c *Canvas) Print(s string) {
	c.dc.SetRGB(1, 1, 1)
	for _, r := range s {
		if c.col >= Columns {
			break
		}
		c.dc.DrawStringAnchored(string(r), float64(c.col*CellW), float64(c.row*CellH), 0, 1)
		c.col++
	}
}

func (c *Canvas) Println(s string) {
	c.Print(s)
	c.col = 0
	c.row++
}

func (c *Canvas) DrawIcon(col, row int, icon Icon) {
	c.dc.SetRGB(1, 1, 1)
	x0, y0 := col*CellW, row*CellH
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if icon.Set(x, y) {
				c.dc.SetPixel(x0+x, y0+y)
			}
		}
	}
}

// Present is a no-op, the canvas is only ever read through Image.
func (c *Canvas) Present() error {
	return nil
}

func (c *Canvas) Image() image.Image {
	return c.dc.Image()
}
