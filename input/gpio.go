//go:build pi

package input

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// GPIO samples buttons wired between a pin and ground.
type GPIO struct {
	pins [NumButtons]gpio.PinIO
}

// OpenGPIO sets up the pins named in up, down, select, back order with their
// pull-ups enabled.
func OpenGPIO(names [NumButtons]string) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("unable to initialize periph: %w", err)
	}
	g := &GPIO{}
	for i, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("no pin named %v for %v", name, Button(i))
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("pin %v: %w", name, err)
		}
		log.Debugf("Button %v on %v", Button(i), p.Name())
		g.pins[i] = p
	}
	return g, nil
}

func (g *GPIO) Sample() [NumButtons]Level {
	var levels [NumButtons]Level
	for i, p := range g.pins {
		levels[i] = Level(p.Read())
	}
	return levels
}

func (g *GPIO) Close() error {
	return nil
}
