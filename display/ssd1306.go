//go:build pi

package display

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/devices/ssd1306"
	"periph.io/x/periph/host"
)

// SSD1306 pushes the canvas to a 128x64 OLED on the I2C bus.
type SSD1306 struct {
	*Canvas
	bus i2c.BusCloser
	dev *ssd1306.Dev
}

func OpenSSD1306(busName string, c *Canvas) (*SSD1306, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("unable to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c bus %q: %w", busName, err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{W: Width, H: Height})
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("ssd1306: %w", err)
	}
	log.Infof("Display %v ready", dev)
	return &SSD1306{Canvas: c, bus: bus, dev: dev}, nil
}

func (s *SSD1306) Present() error {
	return s.dev.Draw(s.dev.Bounds(), s.Image(), image.Point{})
}

func (s *SSD1306) SetContrast(level byte) error {
	return s.dev.SetContrast(level)
}

func (s *SSD1306) Close() error {
	s.dev.Halt()
	return s.bus.Close()
}
