package workflow

import (
	"time"

	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/store"
	log "github.com/sirupsen/logrus"
)

type EmulateState int

const (
	EmulateSelect EmulateState = iota
	EmulateListening
	EmulateResult
)

// Emulate answers as a stored card until an external reader shows up or
// EmulateTimeout passes.
type Emulate struct {
	env      *Env
	state    EmulateState
	picker   picker
	record   *store.CardRecord
	entered  bool
	deadline time.Time
	result   result
}

func NewEmulate(env *Env) *Emulate {
	return &Emulate{env: env}
}

func (e *Emulate) State() EmulateState {
	return e.state
}

func (e *Emulate) Start() {
	e.state = EmulateSelect
	e.picker.reset(e.env)
	e.record = nil
	e.entered = false
	e.result = result{}
}

func (e *Emulate) Step(ev input.Events) bool {
	switch e.state {
	case EmulateSelect:
		if rec := e.picker.step(e.env, ev); rec != nil {
			e.record = rec
			e.state = EmulateListening
		}
	case EmulateListening:
		e.listen()
	case EmulateResult:
		return !e.env.Now().Before(e.result.until)
	}
	return false
}

func (e *Emulate) listen() {
	now := e.env.Now()
	if !e.entered {
		e.entered = true
		e.deadline = now.Add(e.env.Timing.EmulateTimeout)
		if err := e.env.Dev.EnterTargetMode(targetFor(*e.record)); err != nil {
			log.Warnf("Could not enter target mode: %v", err)
			e.finish(false, "Emulation failed")
			return
		}
		log.Infof("Emulating %v", e.record.UID)
		return
	}
	detected, err := e.env.Dev.DetectExternalReader()
	if err != nil {
		log.Debugf("Reader detection: %v", err)
	}
	switch {
	case detected:
		log.Infof("External reader detected while emulating %v", e.record.UID)
		e.finish(true, "Reader detected!")
	case !now.Before(e.deadline):
		e.finish(false, "Timeout")
	}
}

// Cancel leaves target mode when Back is pressed while listening.
func (e *Emulate) Cancel() {
	if e.state == EmulateListening {
		e.release()
	}
}

func (e *Emulate) release() {
	if !e.entered {
		return
	}
	e.entered = false
	if err := e.env.Dev.ReleaseTargetMode(); err != nil {
		log.Warnf("Could not leave target mode: %v", err)
	}
}

func (e *Emulate) finish(ok bool, msg string) {
	e.release()
	e.state = EmulateResult
	e.result = result{
		ok:    ok,
		lines: []string{msg, "", "UID: " + e.record.UID.String()},
		until: e.env.Now().Add(e.env.Timing.ResultDelay),
	}
}

// targetFor builds the identity the reader answers with.
func targetFor(rec store.CardRecord) nfc.Target {
	t := nfc.Target{UID: rec.UID, ATQA: 0x0004, SAK: 0x08}
	if rec.Type == nfc.Ultralight || rec.Type == nfc.NTAG {
		t.ATQA, t.SAK = 0x0044, 0x00
	}
	return t
}

func (e *Emulate) Render(d display.Display) {
	switch e.state {
	case EmulateSelect:
		e.picker.render(e.env, d, "Emulate")
	case EmulateListening:
		d.DrawIcon(0, 0, display.IconEmulate)
		d.SetCursor(2, 0)
		d.Println("Emulating")
		d.SetCursor(0, 2)
		d.Println("UID: " + e.record.UID.String())
		d.Println(e.record.Type.String())
		d.SetCursor(0, 5)
		d.Println("Waiting for reader")
		if left := e.deadline.Sub(e.env.Now()); left > 0 {
			d.Println(left.Round(time.Second).String() + " left")
		}
	case EmulateResult:
		e.result.render(d)
	}
}
