package menu

import (
	"context"
	"time"

	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/workflow"
	log "github.com/sirupsen/logrus"
)

type State int

const (
	Main State = iota
	Read
	Write
	Emulate
	BruteForce
	Manager
	Settings
	SettingsConfirm
)

func (s State) String() string {
	switch s {
	case Main:
		return "main"
	case Read:
		return "read"
	case Write:
		return "write"
	case Emulate:
		return "emulate"
	case BruteForce:
		return "brute force"
	case Manager:
		return "manager"
	case Settings:
		return "settings"
	case SettingsConfirm:
		return "settings confirm"
	}
	return "unknown"
}

// Context is everything the screens share. It is owned by the Controller and
// handed to the active screen on every tick.
type Context struct {
	State     State
	Selection int
	CardCount int
	// Present is the card seen by the idle poll on the main screen.
	Present *nfc.Target
	// Contrast and Debug are the current settings.
	Contrast byte
	Debug    bool
}

// screen is one state of the menu. Start runs once on entry. Step gets one
// tick worth of work and returns the context with State changed to move on.
// Cancel is called when Back leaves the screen.
type screen interface {
	Start(c Context) Context
	Step(c Context, ev input.Events) Context
	Render(c Context, d display.Display)
	Cancel()
}

type Options struct {
	ConfirmTimeout time.Duration
	ProgressEvery  int
	ReuseKeys      bool
	Contrast       byte
}

var DefaultOptions = Options{
	ConfirmTimeout: 5 * time.Second,
	ProgressEvery:  10,
	ReuseKeys:      true,
	Contrast:       255,
}

type Controller struct {
	env     *workflow.Env
	display display.Display
	ctx     Context
	screens map[State]screen
}

func New(env *workflow.Env, d display.Display, opts Options) *Controller {
	c := &Controller{
		env:     env,
		display: d,
		ctx:     Context{Contrast: opts.Contrast, Debug: log.IsLevelEnabled(log.DebugLevel)},
	}
	c.screens = map[State]screen{
		Main:       &mainScreen{env: env},
		Read:       &workflowScreen{flow: workflow.NewRead(env)},
		Write:      &workflowScreen{flow: workflow.NewWrite(env)},
		Emulate:    &workflowScreen{flow: workflow.NewEmulate(env)},
		BruteForce: &bruteScreen{env: env, opts: opts},
		Manager:    &managerScreen{env: env},
	}
	settings := &settingsScreen{env: env, display: d}
	c.screens[Settings] = settings
	c.screens[SettingsConfirm] = &confirmScreen{env: env, settings: settings, timeout: opts.ConfirmTimeout}
	c.enter(Main)
	return c
}

func (c *Controller) Context() Context {
	return c.ctx
}

// ItemCount is how many entries the selection moves over in a state.
func ItemCount(s State, cards int) int {
	switch s {
	case Main:
		return len(mainItems)
	case Manager:
		if cards > 0 {
			return cards
		}
		return 1
	case Settings:
		return len(settingsItems)
	}
	return 1
}

func (c *Controller) enter(s State) {
	log.Debugf("Entering %v", s)
	c.ctx.State = s
	c.ctx.Selection = 0
	c.ctx = c.screens[s].Start(c.ctx)
}

// Tick handles one round of input, gives the active screen one step and
// redraws.
func (c *Controller) Tick(ev input.Events) {
	if ev.Pressed(input.Back) && c.ctx.State != Main {
		log.Debugf("Back from %v", c.ctx.State)
		c.screens[c.ctx.State].Cancel()
		c.enter(Main)
		ev = input.Events{}
	}

	n := ItemCount(c.ctx.State, c.ctx.CardCount)
	if ev.Pressed(input.Up) {
		c.ctx.Selection = (c.ctx.Selection + n - 1) % n
	}
	if ev.Pressed(input.Down) {
		c.ctx.Selection = (c.ctx.Selection + 1) % n
	}

	current := c.ctx.State
	next := c.screens[current].Step(c.ctx, ev)
	c.ctx = next
	if next.State != current {
		c.enter(next.State)
	}

	c.display.Clear()
	c.screens[c.ctx.State].Render(c.ctx, c.display)
	if err := c.display.Present(); err != nil {
		log.Warnf("Display update failed: %v", err)
	}
}

// Run ticks every period with the presses from src until ctx is done.
func (c *Controller) Run(ctx context.Context, src *input.Source, period time.Duration) error {
	t := time.NewTicker(period)
	defer t.Stop()
	c.Tick(input.Events{})
	for {
		select {
		case <-ctx.Done():
			c.screens[c.ctx.State].Cancel()
			return ctx.Err()
		case <-t.C:
			c.Tick(src.Poll())
		}
	}
}

// workflowScreen drives one of the card sessions and returns to the main
// menu when it is done.
type workflowScreen struct {
	flow interface {
		Start()
		Step(input.Events) bool
		Render(display.Display)
		Cancel()
	}
}

func (w *workflowScreen) Start(c Context) Context {
	w.flow.Start()
	return c
}

func (w *workflowScreen) Step(c Context, ev input.Events) Context {
	if w.flow.Step(ev) {
		c.State = Main
	}
	return c
}

func (w *workflowScreen) Render(_ Context, d display.Display) {
	w.flow.Render(d)
}

func (w *workflowScreen) Cancel() {
	w.flow.Cancel()
}
