package workflow

import (
	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/store"
)

type ReadState int

const (
	ReadWaiting ReadState = iota
	ReadResult
)

// Read waits for a card, captures it and shows what was read.
type Read struct {
	env    *Env
	state  ReadState
	result result

	Record *store.CardRecord
	File   string
}

func NewRead(env *Env) *Read {
	return &Read{env: env}
}

func (r *Read) State() ReadState {
	return r.state
}

func (r *Read) Start() {
	r.state = ReadWaiting
	r.result = result{}
	r.Record = nil
	r.File = ""
}

// Step returns true once the outcome has been on screen long enough.
func (r *Read) Step(input.Events) bool {
	switch r.state {
	case ReadWaiting:
		t := r.env.Poll()
		if t == nil {
			return false
		}
		r.capture(*t)
	case ReadResult:
		return !r.env.Now().Before(r.result.until)
	}
	return false
}

func (r *Read) Cancel() {}

func (r *Read) capture(t nfc.Target) {
	r.state = ReadResult
	r.result = result{until: r.env.Now().Add(r.env.Timing.ResultDelay)}

	rec, p, name, err := r.env.Capture(t)
	if err != nil {
		r.result.lines = []string{"Read failed", "", "UID: " + t.UID.String()}
		return
	}
	r.Record = &rec
	r.File = name
	saved := "Card saved!"
	if name == "" {
		saved = "Not saved"
	}
	r.result.ok = true
	r.result.lines = []string{
		saved,
		"Type: " + p.Name(),
		"UID: " + rec.UID.String(),
		"Issuer: " + nfc.Issuer(rec.UID),
		sizeLine(len(rec.Payload)),
		name,
	}
}

func (r *Read) Render(d display.Display) {
	if r.state == ReadResult {
		r.result.render(d)
		return
	}
	d.DrawIcon(0, 0, display.IconRead)
	d.SetCursor(2, 0)
	d.Println("Read card")
	d.SetCursor(0, 3)
	d.Println("Hold a card near")
	d.Println("the reader...")
}
