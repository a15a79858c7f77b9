package menu

import (
	"fmt"

	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/workflow"
	log "github.com/sirupsen/logrus"
)

type item struct {
	name  string
	icon  display.Icon
	state State
}

var mainItems = []item{
	{"Read Card", display.IconRead, Read},
	{"Write Card", display.IconWrite, Write},
	{"Emulate", display.IconEmulate, Emulate},
	{"Brute Force", display.IconBrute, BruteForce},
	{"Card Manager", display.IconManager, Manager},
	{"Settings", display.IconSettings, Settings},
}

type mainScreen struct {
	env *workflow.Env
}

func (m *mainScreen) Start(c Context) Context {
	c.CardCount = m.env.Store.Count()
	c.Present = nil
	return c
}

// Step polls for a card while idle so the menu can show what is in the field.
func (m *mainScreen) Step(c Context, ev input.Events) Context {
	if ev.Pressed(input.Select) {
		c.State = mainItems[c.Selection].state
		return c
	}
	t := m.env.Poll()
	if t != nil && (c.Present == nil || t.UID.Hex() != c.Present.UID.Hex()) {
		log.Infof("Card detected: %v", t.UID)
	}
	c.Present = t
	return c
}

func (m *mainScreen) Render(c Context, d display.Display) {
	d.SetCursor(0, 0)
	if c.Present != nil {
		d.Print(c.Present.UID.Hex())
	} else {
		d.Print("NFC Multitool")
	}
	d.SetCursor(display.Columns-4, 0)
	d.Print(fmt.Sprintf("%3d", c.CardCount))
	d.DrawIcon(display.Columns-1, 0, display.IconCard)
	for i, it := range mainItems {
		row := i + 1
		if i == c.Selection {
			d.SetCursor(0, row)
			d.Print(">")
		}
		d.DrawIcon(1, row, it.icon)
		d.SetCursor(3, row)
		d.Print(it.name)
	}
	if c.Present != nil {
		d.SetCursor(0, display.Rows-1)
		d.Print("CARD DETECTED")
	}
}

func (m *mainScreen) Cancel() {}
