package input

import (
	"time"
)

type Button int

const (
	Up Button = iota
	Down
	Select
	Back
)

// NumButtons is the number of physical buttons on the device.
const NumButtons = 4

func (b Button) String() string {
	switch b {
	case Up:
		return "up"
	case Down:
		return "down"
	case Select:
		return "select"
	case Back:
		return "back"
	}
	return "unknown"
}

// Level is the electrical level of a button line. The buttons pull their
// line low while pressed.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Sampler reads the current level of every button.
type Sampler interface {
	Sample() [NumButtons]Level
}

// DefaultWindow is the debounce window used unless configured otherwise.
const DefaultWindow = 50 * time.Millisecond

// Debouncer turns sampled levels into press events. A press is registered
// on a High to Low transition, but only when more than the window has passed
// since the last press registered on any button. Inside the window the
// previous levels are kept, so a bouncing contact settles into one press.
type Debouncer struct {
	window    time.Duration
	now       func() time.Time
	last      [NumButtons]Level
	lastPress time.Time
	pending   [NumButtons]bool
}

func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	d := &Debouncer{window: window, now: now}
	for i := range d.last {
		d.last[i] = High
	}
	return d
}

// Update feeds one sample of all button levels.
func (d *Debouncer) Update(levels [NumButtons]Level) {
	now := d.now()
	if !d.lastPress.IsZero() && now.Sub(d.lastPress) <= d.window {
		return
	}
	for i, l := range levels {
		if d.last[i] == High && l == Low {
			d.pending[i] = true
			d.lastPress = now
		}
		d.last[i] = l
	}
}

// Consume reports whether b was pressed since it was last consumed.
func (d *Debouncer) Consume(b Button) bool {
	p := d.pending[b]
	d.pending[b] = false
	return p
}

// Events holds the presses registered during one poll.
type Events [NumButtons]bool

func (e Events) Pressed(b Button) bool {
	return e[b]
}

func (e Events) Any() bool {
	for _, p := range e {
		if p {
			return true
		}
	}
	return false
}

// Source samples the buttons once per poll and hands out every registered
// press exactly once.
type Source struct {
	sampler   Sampler
	debouncer *Debouncer
}

func NewSource(s Sampler, d *Debouncer) *Source {
	return &Source{sampler: s, debouncer: d}
}

func (s *Source) Poll() Events {
	s.debouncer.Update(s.sampler.Sample())
	var e Events
	for b := Button(0); b < NumButtons; b++ {
		e[b] = s.debouncer.Consume(b)
	}
	return e
}
