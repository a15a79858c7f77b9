package input

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Keyboard stands in for the buttons when the tool runs on a desktop. Every
// key press shows up as a button held low for exactly one sample.
//
//	w k up-arrow       Up
//	s j down-arrow     Down
//	enter space d      Select
//	q a backspace esc  Back
type Keyboard struct {
	mu     sync.Mutex
	queued [NumButtons]int
	low    [NumButtons]bool

	restore func()
	done    chan struct{}
}

// NewKeyboard starts reading keys from in. When in is a terminal it is put in
// raw mode until Close.
func NewKeyboard(in *os.File) (*Keyboard, error) {
	k := &Keyboard{done: make(chan struct{}), restore: func() {}}
	if isatty.IsTerminal(in.Fd()) {
		state, err := term.MakeRaw(int(in.Fd()))
		if err != nil {
			return nil, err
		}
		k.restore = func() {
			term.Restore(int(in.Fd()), state)
		}
	} else {
		log.Debugln("Input is not a terminal, reading keys line by line")
	}
	go k.read(bufio.NewReader(in))
	return k, nil
}

// Done is closed on ctrl-c or end of input.
func (k *Keyboard) Done() <-chan struct{} {
	return k.done
}

func (k *Keyboard) Close() error {
	k.restore()
	return nil
}

func (k *Keyboard) Sample() [NumButtons]Level {
	k.mu.Lock()
	defer k.mu.Unlock()
	var levels [NumButtons]Level
	for b := range levels {
		switch {
		case k.low[b]:
			k.low[b] = false
			levels[b] = High
		case k.queued[b] > 0:
			k.queued[b]--
			k.low[b] = true
			levels[b] = Low
		default:
			levels[b] = High
		}
	}
	return levels
}

func (k *Keyboard) press(b Button) {
	k.mu.Lock()
	k.queued[b]++
	k.mu.Unlock()
}

func (k *Keyboard) read(r *bufio.Reader) {
	defer close(k.done)
	for {
		b, ok, err := decodeKey(r)
		if errors.Is(err, errInterrupt) {
			log.Debugln("Interrupted from keyboard")
			return
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warnf("Keyboard read failed: %v", err)
			}
			return
		}
		if ok {
			log.Debugf("Key %v", b)
			k.press(b)
		}
	}
}

var errInterrupt = errors.New("interrupt")

// decodeKey reads one key from r and maps it to a button. Keys without a
// button return ok false.
func decodeKey(r *bufio.Reader) (Button, bool, error) {
	c, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}
	switch c {
	case 0x03, 0x04:
		return 0, false, errInterrupt
	case 'w', 'k':
		return Up, true, nil
	case 's', 'j':
		return Down, true, nil
	case '\r', '\n', ' ', 'd':
		return Select, true, nil
	case 'q', 'a', 0x7f, 0x08:
		return Back, true, nil
	case 0x1b:
		if r.Buffered() < 2 {
			return Back, true, nil
		}
		seq, _ := r.Peek(2)
		if seq[0] != '[' {
			return Back, true, nil
		}
		kind := seq[1]
		r.Discard(2)
		switch kind {
		case 'A':
			return Up, true, nil
		case 'B':
			return Down, true, nil
		case 'C':
			return Select, true, nil
		case 'D':
			return Back, true, nil
		}
	}
	return 0, false, nil
}
