package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/store"
	log "github.com/sirupsen/logrus"
)

// Timing bounds every wait a session can get into.
type Timing struct {
	// Poll is how long a single poll for a card may block.
	Poll time.Duration
	// ResultDelay is how long an outcome stays on screen.
	ResultDelay    time.Duration
	EmulateTimeout time.Duration
}

var DefaultTiming = Timing{
	Poll:           30 * time.Millisecond,
	ResultDelay:    3 * time.Second,
	EmulateTimeout: 30 * time.Second,
}

// Env is what the sessions work with. Index may be nil.
type Env struct {
	Dev      nfc.Device
	Store    *store.Store
	Index    *store.Index
	Clock    func() time.Time
	Timing   Timing
	MaxFiles int
}

func (e *Env) Now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

// Poll asks the reader for a card once. Errors other than no card are only
// logged, the next tick simply polls again.
func (e *Env) Poll() *nfc.Target {
	t, err := e.Dev.PollForTarget(e.Timing.Poll)
	if err != nil {
		if !errors.Is(err, nfc.NoCardErr) {
			log.Debugf("Poll failed: %v", err)
		}
		return nil
	}
	return t
}

// Capture reads the target with the first profile that works, stores the dump
// and records it in the index. The returned file name is empty when the dump
// could not be stored.
func (e *Env) Capture(t nfc.Target) (store.CardRecord, nfc.Profile, string, error) {
	p, data, err := nfc.ReadCascade(e.Dev, t)
	if err != nil {
		return store.CardRecord{}, nil, "", err
	}
	if len(data) > nfc.MaxPayload {
		data = data[:nfc.MaxPayload]
	}
	rec := store.CardRecord{UID: t.UID, Type: p.Type(), Payload: data}
	log.Infof("Read %v %v, %d bytes", p.Name(), t.UID, len(data))

	name, err := e.Store.Save(rec)
	if err != nil {
		log.Warnf("Could not save card %v: %v", t.UID, err)
		return rec, p, "", nil
	}
	if e.Index != nil {
		if err := e.Index.RecordCapture(rec, name, e.Now()); err != nil {
			log.Warnf("Could not index capture of %v: %v", t.UID, err)
		}
	}
	return rec, p, name, nil
}

// result is an outcome shown for ResultDelay before the session ends.
type result struct {
	ok    bool
	lines []string
	until time.Time
}

func (r result) render(d display.Display) {
	icon := display.IconFail
	if r.ok {
		icon = display.IconOK
	}
	d.DrawIcon(0, 0, icon)
	d.SetCursor(2, 0)
	for i, l := range r.lines {
		if i > 0 {
			d.SetCursor(0, i+1)
		}
		d.Println(l)
	}
}

// FileList is the stored dumps offered for selection.
type FileList struct {
	Names []string
	Index int
}

func LoadFileList(st *store.Store, max int) FileList {
	names, err := st.List(store.Extension, max)
	if err != nil {
		log.Debugf("No files to list: %v", err)
	}
	return FileList{Names: names}
}

func (l *FileList) Empty() bool {
	return len(l.Names) == 0
}

// Move applies Up and Down, wrapping at both ends.
func (l *FileList) Move(ev input.Events) {
	n := len(l.Names)
	if n == 0 {
		return
	}
	if ev.Pressed(input.Up) {
		l.Index = (l.Index + n - 1) % n
	}
	if ev.Pressed(input.Down) {
		l.Index = (l.Index + 1) % n
	}
}

func (l *FileList) Selected() (string, bool) {
	if l.Empty() {
		return "", false
	}
	return l.Names[l.Index], true
}

// Render draws the title and as many names as fit, keeping the selected
// one visible.
func (l *FileList) Render(d display.Display, title string) {
	d.DrawIcon(0, 0, display.IconCard)
	d.SetCursor(2, 0)
	d.Println(title)
	if l.Empty() {
		d.SetCursor(0, 2)
		d.Println("No cards saved")
		return
	}
	visible := display.Rows - 1
	first := 0
	if l.Index >= visible {
		first = l.Index - visible + 1
	}
	for i := first; i < len(l.Names) && i < first+visible; i++ {
		marker := "  "
		if i == l.Index {
			marker = "> "
		}
		d.SetCursor(0, 1+i-first)
		d.Print(marker + l.Names[i])
	}
}

func sizeLine(n int) string {
	return fmt.Sprintf("Size: %d bytes", n)
}

// picker is the file selection both Write and Emulate start with. A dump that
// fails to load is reported for ResultDelay and the selection stays open.
type picker struct {
	FileList
	failedUntil time.Time
}

func (p *picker) reset(env *Env) {
	p.FileList = LoadFileList(env.Store, env.MaxFiles)
	p.failedUntil = time.Time{}
}

// step returns the loaded record once a dump was picked.
func (p *picker) step(env *Env, ev input.Events) *store.CardRecord {
	if env.Now().Before(p.failedUntil) {
		return nil
	}
	p.Move(ev)
	if !ev.Pressed(input.Select) {
		return nil
	}
	name, ok := p.Selected()
	if !ok {
		return nil
	}
	rec, err := env.Store.Load(name)
	if err != nil {
		log.Warnf("Could not load %v: %v", name, err)
		p.failedUntil = env.Now().Add(env.Timing.ResultDelay)
		return nil
	}
	log.Debugf("Loaded %v: %v %v, %d bytes", name, rec.Type, rec.UID, len(rec.Payload))
	return &rec
}

func (p *picker) render(env *Env, d display.Display, title string) {
	if env.Now().Before(p.failedUntil) {
		result{lines: []string{"Load failed"}}.render(d)
		return
	}
	p.Render(d, title)
}
