package menu

import (
	"fmt"
	"time"

	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/workflow"
	log "github.com/sirupsen/logrus"
)

// Version is shown on the about screen.
var Version = "dev"

var settingsItems = []string{"Brightness", "Debug", "Format SD", "About"}

const (
	itemBrightness = iota
	itemDebug
	itemFormat
	itemAbout
)

var contrastLevels = []byte{64, 128, 192, 255}

type settingsScreen struct {
	env     *workflow.Env
	display display.Display
	about   bool
	// message reports the outcome of the last action, e.g. a format.
	message      string
	messageUntil time.Time
}

func (s *settingsScreen) Start(c Context) Context {
	s.about = false
	return c
}

func (s *settingsScreen) Step(c Context, ev input.Events) Context {
	if !ev.Pressed(input.Select) {
		return c
	}
	if s.about {
		s.about = false
		return c
	}
	switch c.Selection {
	case itemBrightness:
		c.Contrast = nextContrast(c.Contrast)
		if d, ok := s.display.(display.Contraster); ok {
			if err := d.SetContrast(c.Contrast); err != nil {
				log.Warnf("Could not set contrast: %v", err)
			}
		}
		log.Debugf("Contrast set to %d", c.Contrast)
	case itemDebug:
		c.Debug = !c.Debug
		if c.Debug {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.InfoLevel)
		}
		log.Infof("Debug logging %v", onOff(c.Debug))
	case itemFormat:
		c.State = SettingsConfirm
	case itemAbout:
		s.about = true
	}
	return c
}

// report shows msg on the settings screen for a while.
func (s *settingsScreen) report(msg string, now time.Time, d time.Duration) {
	s.message = msg
	s.messageUntil = now.Add(d)
}

func nextContrast(current byte) byte {
	for _, l := range contrastLevels {
		if l > current {
			return l
		}
	}
	return contrastLevels[0]
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func (s *settingsScreen) Render(c Context, d display.Display) {
	d.DrawIcon(0, 0, display.IconSettings)
	d.SetCursor(2, 0)
	if s.about {
		d.Println("About")
		d.SetCursor(0, 2)
		d.Println("NFC Multitool " + Version)
		d.Println("Read/Write/Emulate")
		d.Println("Brute force keys")
		d.Println(fmt.Sprintf("%d candidate keys", len(nfc.CandidateKeys)))
		d.SetCursor(0, display.Rows-1)
		d.Print("SELECT to return")
		return
	}
	d.Println("Settings")
	values := []string{
		fmt.Sprintf("%d", c.Contrast),
		onOff(c.Debug),
		"",
		"",
	}
	for i, name := range settingsItems {
		marker := "  "
		if i == c.Selection {
			marker = "> "
		}
		d.SetCursor(0, i+1)
		d.Print(marker + name)
		if values[i] != "" {
			d.SetCursor(display.Columns-len(values[i]), i+1)
			d.Print(values[i])
		}
	}
	if s.message != "" && s.env.Now().Before(s.messageUntil) {
		d.SetCursor(0, display.Rows-1)
		d.Print(s.message)
	}
}

func (s *settingsScreen) Cancel() {}

// confirmScreen asks for a second Select before formatting. Without one
// within the timeout it goes back to the settings.
type confirmScreen struct {
	env      *workflow.Env
	settings *settingsScreen
	timeout  time.Duration
	until    time.Time
}

func (f *confirmScreen) Start(c Context) Context {
	f.until = f.env.Now().Add(f.timeout)
	return c
}

func (f *confirmScreen) Step(c Context, ev input.Events) Context {
	now := f.env.Now()
	if ev.Pressed(input.Select) {
		n, err := f.env.Store.Format()
		msg := fmt.Sprintf("Removed %d files", n)
		if err != nil {
			log.Warnf("Format failed: %v", err)
			msg = "Format failed"
		}
		c.CardCount = f.env.Store.Count()
		f.settings.report(msg, now, f.env.Timing.ResultDelay)
		c.State = Settings
		return c
	}
	if !now.Before(f.until) {
		log.Debugln("Format not confirmed")
		c.State = Settings
	}
	return c
}

func (f *confirmScreen) Render(_ Context, d display.Display) {
	d.DrawIcon(0, 0, display.IconFail)
	d.SetCursor(2, 0)
	d.Println("Format SD?")
	d.SetCursor(0, 2)
	d.Println("All saved cards and")
	d.Println("reports are deleted.")
	d.SetCursor(0, 5)
	d.Println("SELECT to confirm")
	if left := f.until.Sub(f.env.Now()); left > 0 {
		d.Println(fmt.Sprintf("%ds left", int(left.Round(time.Second)/time.Second)))
	}
}

func (f *confirmScreen) Cancel() {}
