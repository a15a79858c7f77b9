package menu

import (
	"time"

	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/workflow"
	log "github.com/sirupsen/logrus"
)

// managerScreen lists the stored dumps. Select deletes the highlighted one.
type managerScreen struct {
	env          *workflow.Env
	files        workflow.FileList
	deleted      string
	deletedUntil time.Time
}

func (m *managerScreen) Start(c Context) Context {
	m.files = workflow.LoadFileList(m.env.Store, m.env.MaxFiles)
	m.deleted = ""
	c.CardCount = len(m.files.Names)
	return c
}

func (m *managerScreen) Step(c Context, ev input.Events) Context {
	if m.deleted != "" {
		if !m.env.Now().Before(m.deletedUntil) {
			c.State = Main
		}
		return c
	}
	m.files.Index = c.Selection
	if !ev.Pressed(input.Select) {
		return c
	}
	name, ok := m.files.Selected()
	if !ok {
		return c
	}
	if err := m.env.Store.Delete(name); err != nil {
		log.Warnf("Could not delete %v: %v", name, err)
		return c
	}
	log.Infof("Deleted %v", name)
	m.deleted = name
	m.deletedUntil = m.env.Now().Add(m.env.Timing.ResultDelay)
	c.CardCount--
	return c
}

func (m *managerScreen) Render(c Context, d display.Display) {
	if m.deleted != "" {
		d.DrawIcon(0, 0, display.IconOK)
		d.SetCursor(2, 0)
		d.Println("Deleted!")
		d.SetCursor(0, 2)
		d.Println(m.deleted)
		return
	}
	m.files.Index = c.Selection
	m.files.Render(d, "Card Manager")
}

func (m *managerScreen) Cancel() {}
