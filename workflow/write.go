package workflow

import (
	"errors"

	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/store"
	log "github.com/sirupsen/logrus"
)

type WriteState int

const (
	WriteSelect WriteState = iota
	WriteWaiting
	WriteResult
)

// Write puts a stored dump back onto a card.
type Write struct {
	env    *Env
	state  WriteState
	picker picker
	record *store.CardRecord
	result result
}

func NewWrite(env *Env) *Write {
	return &Write{env: env}
}

func (w *Write) State() WriteState {
	return w.state
}

func (w *Write) Start() {
	w.state = WriteSelect
	w.picker.reset(w.env)
	w.record = nil
	w.result = result{}
}

func (w *Write) Step(ev input.Events) bool {
	switch w.state {
	case WriteSelect:
		if rec := w.picker.step(w.env, ev); rec != nil {
			w.record = rec
			w.state = WriteWaiting
		}
	case WriteWaiting:
		t := w.env.Poll()
		if t == nil {
			return false
		}
		w.write(*t)
	case WriteResult:
		return !w.env.Now().Before(w.result.until)
	}
	return false
}

// Cancel has nothing to undo, a write either runs within one tick or not
// at all.
func (w *Write) Cancel() {}

func (w *Write) write(t nfc.Target) {
	w.state = WriteResult
	w.result = result{until: w.env.Now().Add(w.env.Timing.ResultDelay)}

	if w.record.Type != nfc.Classic {
		log.Infof("Writing %v cards is not supported", w.record.Type)
		w.result.lines = []string{"Unsupported", "", w.record.Type.String()}
		return
	}
	p := nfc.ClassicProfile(w.env.Dev, t)
	err := p.Write(w.env.Dev, t, w.record.Payload)
	if err != nil {
		log.Warnf("Write to %v failed: %v", t.UID, err)
		reason := "Write error"
		if errors.Is(err, nfc.ErrAuth) {
			reason = "Auth error"
		}
		w.result.lines = []string{"Write failed", "", reason}
		return
	}
	log.Infof("Wrote %d bytes to %v", len(w.record.Payload), t.UID)
	w.result.ok = true
	w.result.lines = []string{"Write OK", "", "UID: " + t.UID.String(), sizeLine(len(w.record.Payload))}
}

func (w *Write) Render(d display.Display) {
	switch w.state {
	case WriteSelect:
		w.picker.render(w.env, d, "Write card")
	case WriteWaiting:
		d.DrawIcon(0, 0, display.IconWrite)
		d.SetCursor(2, 0)
		d.Println("Write card")
		d.SetCursor(0, 2)
		d.Println("Source: " + w.record.UID.Hex())
		d.SetCursor(0, 4)
		d.Println("Hold the target")
		d.Println("card near...")
	case WriteResult:
		w.result.render(d)
	}
}
