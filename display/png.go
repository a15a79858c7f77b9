package display

import (
	"bytes"
	"image/png"

	"github.com/nfnt/resize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// PNG writes every presented frame to a PNG file, scaled up so it can be
// looked at on a desktop.
type PNG struct {
	*Canvas
	fs    afero.Fs
	path  string
	scale uint
}

func NewPNG(c *Canvas, fs afero.Fs, path string, scale uint) *PNG {
	if scale == 0 {
		scale = 1
	}
	return &PNG{Canvas: c, fs: fs, path: path, scale: scale}
}

func (p *PNG) Present() error {
	img := resize.Resize(Width*p.scale, Height*p.scale, p.Image(), resize.NearestNeighbor)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := afero.WriteFile(p.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	log.Debugf("Frame written to %v", p.path)
	return p.fs.Rename(tmp, p.path)
}
