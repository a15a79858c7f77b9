package brute

import (
	"errors"
	"time"

	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/store"
	log "github.com/sirupsen/logrus"
)

// DefaultProgressEvery is how many attempts pass between progress updates.
const DefaultProgressEvery = 10

type Status int

const (
	Running Status = iota
	Finished
	Canceled
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Reporter persists the outcome of a run.
type Reporter interface {
	SaveReport(r store.Report) (string, error)
}

// KeyCache remembers recovered keys across runs.
type KeyCache interface {
	RememberKeys(uid nfc.UID, keys map[int]nfc.Key) error
}

// Engine tries the candidate keys against every sector of one card, a single
// authentication per Step.
type Engine struct {
	dev     nfc.Device
	keys    []nfc.Key
	session *Session
	now     func() time.Time

	ProgressEvery int
	OnProgress    func(Progress)
	Reporter      Reporter
	Cache         KeyCache

	hints     map[int]nfc.Key
	hintTried bool

	status  Status
	summary Summary
}

func NewEngine(dev nfc.Device, s *Session, keys []nfc.Key, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		dev:           dev,
		keys:          keys,
		session:       s,
		now:           now,
		ProgressEvery: DefaultProgressEvery,
		hints:         make(map[int]nfc.Key),
	}
}

func (e *Engine) Session() *Session {
	return e.session
}

func (e *Engine) Status() Status {
	return e.status
}

// Summary is only filled in once the engine has stopped.
func (e *Engine) Summary() Summary {
	return e.summary
}

// Hint queues a key known from an earlier run. It is tried before the
// candidates when the search reaches the sector, and costs an attempt like
// any other key. It has no effect once the search has moved past the sector.
func (e *Engine) Hint(sector int, key nfc.Key) {
	s := e.session
	if sector < s.CurrentSector || sector >= s.SectorCount {
		return
	}
	e.hints[sector] = key
}

// Step does at most one authentication. Once the last sector is done, or
// cancel is set, the run stops and whatever was found is persisted. Steps
// after that return the same status without touching the card.
func (e *Engine) Step(cancel bool) Status {
	if e.status != Running {
		return e.status
	}
	s := e.session
	if cancel {
		return e.stop(Canceled)
	}
	if s.done() {
		return e.stop(Finished)
	}

	key, hinted := e.hints[s.CurrentSector]
	hinted = hinted && !e.hintTried
	if !hinted {
		if s.CurrentKeyIndex >= len(e.keys) {
			log.Debugf("Sector %d exhausted", s.CurrentSector)
			e.nextSector()
			return Running
		}
		key = e.keys[s.CurrentKeyIndex]
	}
	block := s.Geometry.FirstBlock(s.CurrentSector)
	err := e.dev.Authenticate(s.TargetUID, block, nfc.KeyA, key)
	s.TotalAttempts++

	switch {
	case err == nil:
		log.Infof("Sector %d key found: %v", s.CurrentSector, key)
		s.FoundKey[s.CurrentSector] = key
		s.KeyFound[s.CurrentSector] = true
		s.SuccessfulSectors++
		e.nextSector()
	case hinted:
		log.Debugf("Sector %d cached key %v is stale", s.CurrentSector, key)
		e.hintTried = true
	default:
		if !errors.Is(err, nfc.ErrAuth) {
			log.Debugf("Sector %d key %d: %v", s.CurrentSector, s.CurrentKeyIndex, err)
		}
		s.CurrentKeyIndex++
		if s.CurrentKeyIndex >= len(e.keys) {
			log.Debugf("Sector %d exhausted", s.CurrentSector)
			e.nextSector()
		}
	}

	if e.ProgressEvery > 0 && s.TotalAttempts%e.ProgressEvery == 0 {
		e.progress()
	}
	return Running
}

func (e *Engine) nextSector() {
	s := e.session
	s.CurrentSector++
	s.CurrentKeyIndex = 0
	e.hintTried = false
}

func (e *Engine) Progress() Progress {
	s := e.session
	return Progress{
		Sector:   s.CurrentSector,
		Sectors:  s.SectorCount,
		KeyIndex: s.CurrentKeyIndex,
		Keys:     len(e.keys),
		Found:    s.SuccessfulSectors,
		Attempts: s.TotalAttempts,
	}
}

func (e *Engine) progress() {
	p := e.Progress()
	log.Debugf("Sector %d/%d key %d/%d found %d attempts %d",
		p.Sector, p.Sectors, p.KeyIndex+1, p.Keys, p.Found, p.Attempts)
	if e.OnProgress != nil {
		e.OnProgress(p)
	}
}

func (e *Engine) stop(status Status) Status {
	s := e.session
	e.status = status
	finished := e.now()
	e.summary = Summary{
		UID:      s.TargetUID,
		Sectors:  s.SectorCount,
		Found:    s.SuccessfulSectors,
		Attempts: s.TotalAttempts,
		Elapsed:  finished.Sub(s.StartTime),
		Canceled: status == Canceled,
		Keys:     s.Keys(),
	}
	log.Infof("Brute force %v: %d/%d sectors in %d attempts (%v)",
		status, s.SuccessfulSectors, s.SectorCount, s.TotalAttempts, e.summary.Elapsed.Round(time.Millisecond))

	if e.Reporter != nil {
		name, err := e.Reporter.SaveReport(store.Report{
			UID:      s.TargetUID,
			Keys:     e.summary.Keys,
			Finished: finished,
		})
		if err != nil {
			log.Warnf("Could not save brute force results: %v", err)
		}
		e.summary.ReportFile = name
	}
	if e.Cache != nil {
		if err := e.Cache.RememberKeys(s.TargetUID, e.summary.Keys); err != nil {
			log.Warnf("Could not cache keys for %v: %v", s.TargetUID, err)
		}
	}
	return status
}
