package menu

import (
	"fmt"
	"strings"
	"time"

	"github.com/callebjorkell/nfc-multitool/brute"
	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/workflow"
	log "github.com/sirupsen/logrus"
)

// bruteScreen waits for a card, then runs the key search one attempt per
// tick and shows the outcome until Select.
type bruteScreen struct {
	env    *workflow.Env
	opts   Options
	engine *brute.Engine
	// rejected is set when the card in the field is not a Classic card.
	rejected *nfc.Target
}

func (b *bruteScreen) Start(c Context) Context {
	b.engine = nil
	b.rejected = nil
	return c
}

func (b *bruteScreen) Step(c Context, ev input.Events) Context {
	if b.engine == nil {
		b.begin()
		return c
	}
	if b.engine.Step(false) != brute.Running && ev.Pressed(input.Select) {
		c.State = Main
	}
	return c
}

func (b *bruteScreen) begin() {
	t := b.env.Poll()
	if t == nil {
		return
	}
	if !t.Classic() {
		log.Infof("Card %v is not a Mifare Classic card", t.UID)
		b.rejected = t
		return
	}
	b.rejected = nil
	g := nfc.ProbeGeometry(b.env.Dev, *t, []nfc.Key{nfc.DefaultKey})
	log.Infof("Starting brute force on %v (%v, %d sectors)", t.UID, g.Name, g.Sectors)

	session := brute.NewSession(t.UID, g, b.env.Now())
	e := brute.NewEngine(b.env.Dev, session, nfc.CandidateKeys, b.env.Now)
	e.ProgressEvery = b.opts.ProgressEvery
	e.Reporter = b.env.Store
	if b.env.Index != nil {
		e.Cache = b.env.Index
		if b.opts.ReuseKeys {
			known, err := b.env.Index.KnownKeys(t.UID)
			if err != nil {
				log.Warnf("Could not read cached keys for %v: %v", t.UID, err)
			}
			for sector, key := range known {
				e.Hint(sector, key)
			}
		}
	}
	b.engine = e
}

// Cancel stops a running search, which still saves what was found.
func (b *bruteScreen) Cancel() {
	if b.engine != nil && b.engine.Status() == brute.Running {
		b.engine.Step(true)
	}
}

func (b *bruteScreen) Render(_ Context, d display.Display) {
	d.DrawIcon(0, 0, display.IconBrute)
	d.SetCursor(2, 0)
	d.Println("Brute Force")

	switch {
	case b.engine == nil && b.rejected != nil:
		d.SetCursor(0, 2)
		d.Println("Not a Classic card")
		d.Println(b.rejected.UID.Hex())
	case b.engine == nil:
		d.SetCursor(0, 2)
		d.Println("Hold a Mifare")
		d.Println("Classic card near")
	case b.engine.Status() == brute.Running:
		p := b.engine.Progress()
		d.Println("UID: " + b.engine.Session().TargetUID.Hex())
		d.Println(fmt.Sprintf("Sector: %d/%d", p.Sector, p.Sectors))
		d.Println(fmt.Sprintf("Key: %d/%d", p.KeyIndex+1, p.Keys))
		d.Println(fmt.Sprintf("Found: %d", p.Found))
		d.Println(fmt.Sprintf("Tries: %d", p.Attempts))
		d.Println(bar(p.Sector, p.Sectors, display.Columns-2))
	default:
		s := b.engine.Summary()
		title := "Done!"
		if s.Canceled {
			title = "Canceled"
		}
		d.Println(title)
		d.Println(fmt.Sprintf("Found: %d/%d", s.Found, s.Sectors))
		d.Println(fmt.Sprintf("Tries: %d", s.Attempts))
		d.Println(fmt.Sprintf("Time: %v", s.Elapsed.Round(100*time.Millisecond)))
		d.Println(s.ReportFile)
		d.SetCursor(0, display.Rows-1)
		d.Print("SELECT to return")
	}
}

func bar(done, total, width int) string {
	if total == 0 {
		return ""
	}
	filled := done * width / total
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
