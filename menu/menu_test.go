package menu

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/callebjorkell/nfc-multitool/brute"
	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/store"
	"github.com/callebjorkell/nfc-multitool/workflow"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uid = nfc.UID{0xDE, 0xAD, 0xBE, 0xEF}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func press(b input.Button) input.Events {
	var e input.Events
	e[b] = true
	return e
}

var none input.Events

type fixture struct {
	ctrl  *Controller
	term  *display.Terminal
	sim   *nfc.Simulator
	clock *clock
	fs    afero.Fs
	env   *workflow.Env
}

func newFixture(t *testing.T, card *nfc.SimCard) *fixture {
	fs := afero.NewMemMapFs()
	idx, err := store.OpenIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	c := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	sim := nfc.NewSimulator(card)
	env := &workflow.Env{
		Dev:      sim,
		Store:    store.New(fs, "/cards"),
		Index:    idx,
		Clock:    c.Now,
		Timing:   workflow.DefaultTiming,
		MaxFiles: 16,
	}
	term := display.NewTerminal(io.Discard)
	return &fixture{
		ctrl:  New(env, term, DefaultOptions),
		term:  term,
		sim:   sim,
		clock: c,
		fs:    fs,
		env:   env,
	}
}

func (f *fixture) tick(ev input.Events) {
	f.ctrl.Tick(ev)
}

func (f *fixture) state() State {
	return f.ctrl.Context().State
}

func (f *fixture) screen() string {
	return strings.Join(f.term.Lines(), "\n")
}

// open moves the main menu selection to the entry for s and selects it.
func (f *fixture) open(t *testing.T, s State) {
	require.Equal(t, Main, f.state())
	want := -1
	for i, it := range mainItems {
		if it.state == s {
			want = i
		}
	}
	require.NotEqual(t, -1, want, "no menu entry for %v", s)
	for f.ctrl.Context().Selection != want {
		f.tick(press(input.Down))
	}
	f.tick(press(input.Select))
	require.Equal(t, s, f.state())
}

func (f *fixture) save(t *testing.T, id nfc.UID) {
	_, err := f.env.Store.Save(store.CardRecord{UID: id, Type: nfc.Classic, Payload: []byte{1, 2, 3}})
	require.NoError(t, err)
}

func TestSelectionWraps(t *testing.T) {
	f := newFixture(t, nil)
	n := len(mainItems)

	f.tick(press(input.Up))
	assert.Equal(t, n-1, f.ctrl.Context().Selection)
	f.tick(press(input.Down))
	assert.Equal(t, 0, f.ctrl.Context().Selection)
	for i := 0; i < n; i++ {
		f.tick(press(input.Down))
	}
	assert.Equal(t, 0, f.ctrl.Context().Selection)
}

func TestItemCount(t *testing.T) {
	assert.Equal(t, 6, ItemCount(Main, 0))
	assert.Equal(t, 4, ItemCount(Settings, 0))
	assert.Equal(t, 1, ItemCount(Manager, 0))
	assert.Equal(t, 3, ItemCount(Manager, 3))
	assert.Equal(t, 1, ItemCount(Read, 10))
}

func TestSelectionWrapsForEveryListSize(t *testing.T) {
	for _, n := range []int{1, 4, 6} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			f := newFixture(t, nil)
			switch n {
			case 1:
				f.save(t, uid)
				f.open(t, Manager)
			case 4:
				f.open(t, Settings)
			}
			require.Equal(t, n, ItemCount(f.state(), f.ctrl.Context().CardCount))

			f.tick(press(input.Up))
			assert.Equal(t, n-1, f.ctrl.Context().Selection)
			f.tick(press(input.Down))
			assert.Equal(t, 0, f.ctrl.Context().Selection)
			for i := 1; i <= n; i++ {
				f.tick(press(input.Down))
				assert.Equal(t, i%n, f.ctrl.Context().Selection)
			}
		})
	}
}

func TestBackReturnsToMain(t *testing.T) {
	for _, s := range []State{Read, Write, Emulate, BruteForce, Manager, Settings} {
		t.Run(s.String(), func(t *testing.T) {
			f := newFixture(t, nfc.NewClassicCard(uid, nfc.Classic1K))
			f.open(t, s)
			f.tick(none)
			f.tick(press(input.Back))
			assert.Equal(t, Main, f.state())
			assert.Equal(t, 0, f.ctrl.Context().Selection)
		})
	}
}

func TestBackAbandonsCardSession(t *testing.T) {
	tests := []struct {
		state  State
		active func(f *fixture) bool
	}{
		{
			state: Write,
			active: func(f *fixture) bool {
				w := f.ctrl.screens[Write].(*workflowScreen).flow.(*workflow.Write)
				return w.State() == workflow.WriteWaiting
			},
		},
		{
			state: Emulate,
			active: func(f *fixture) bool {
				e := f.ctrl.screens[Emulate].(*workflowScreen).flow.(*workflow.Emulate)
				return e.State() == workflow.EmulateListening && f.sim.TargetMode()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			f := newFixture(t, nil)
			payload := make([]byte, 1024)
			for i := range payload {
				payload[i] = 0xEE
			}
			_, err := f.env.Store.Save(store.CardRecord{UID: uid, Type: nfc.Classic, Payload: payload})
			require.NoError(t, err)

			f.open(t, tt.state)
			f.tick(press(input.Select))
			f.tick(none)
			require.True(t, tt.active(f))

			f.tick(press(input.Back))
			assert.Equal(t, Main, f.state())
			assert.False(t, f.sim.TargetMode())

			f.sim.Card = nfc.NewClassicCard(nfc.UID{1, 2, 3, 4}, nfc.Classic1K)
			for i := 0; i < 5; i++ {
				f.tick(none)
			}
			assert.Equal(t, Main, f.state())
			assert.Empty(t, f.sim.Writes)
			assert.Contains(t, f.screen(), "CARD DETECTED")
		})
	}
}

func TestBackFromConfirm(t *testing.T) {
	f := newFixture(t, nil)
	f.open(t, Settings)
	f.tick(press(input.Down))
	f.tick(press(input.Down))
	f.tick(press(input.Select))
	require.Equal(t, SettingsConfirm, f.state())

	f.tick(press(input.Back))
	assert.Equal(t, Main, f.state())
}

func TestMainShowsDetectedCard(t *testing.T) {
	f := newFixture(t, nil)
	f.tick(none)
	assert.NotContains(t, f.screen(), "CARD DETECTED")
	assert.True(t, strings.HasPrefix(f.term.Lines()[0], "NFC Multitool"))

	f.sim.Card = nfc.NewClassicCard(uid, nfc.Classic1K)
	f.tick(none)
	require.NotNil(t, f.ctrl.Context().Present)
	assert.Equal(t, "CARD DETECTED", f.term.Lines()[display.Rows-1])
	assert.True(t, strings.HasPrefix(f.term.Lines()[0], "DEADBEEF"))

	f.sim.Card = nil
	f.tick(none)
	assert.Nil(t, f.ctrl.Context().Present)
}

func TestMainShowsCardCount(t *testing.T) {
	f := newFixture(t, nil)
	f.save(t, uid)
	f.save(t, nfc.UID{1, 2, 3, 4})
	f.open(t, Settings)
	f.tick(press(input.Back))
	assert.Equal(t, 2, f.ctrl.Context().CardCount)
	assert.Contains(t, f.term.Lines()[0], "2")
}

func TestReadReturnsToMain(t *testing.T) {
	f := newFixture(t, nfc.NewClassicCard(uid, nfc.Classic1K))
	f.open(t, Read)
	f.tick(none)
	assert.Contains(t, f.screen(), "Card saved!")

	f.clock.now = f.clock.now.Add(workflow.DefaultTiming.ResultDelay)
	f.tick(none)
	assert.Equal(t, Main, f.state())
	assert.Equal(t, 1, f.ctrl.Context().CardCount)
}

func (f *fixture) engine() *brute.Engine {
	return f.ctrl.screens[BruteForce].(*bruteScreen).engine
}

func TestBruteForceRun(t *testing.T) {
	card := nfc.NewClassicCard(uid, nfc.Classic1K)
	delete(card.Keys, 5)
	card.Keys[9] = nfc.CandidateKeys[2]
	f := newFixture(t, card)
	f.open(t, BruteForce)
	assert.Contains(t, f.screen(), "Hold a Mifare")

	f.tick(none)
	e := f.engine()
	require.NotNil(t, e)

	for i := 0; i < 500 && e.Status() == brute.Running; i++ {
		f.tick(none)
	}
	require.Equal(t, brute.Finished, e.Status())
	s := e.Summary()
	assert.Equal(t, 15, s.Found)
	assert.Equal(t, 14+13+3, s.Attempts)
	assert.Contains(t, f.screen(), "Done!")
	assert.Contains(t, f.screen(), "Found: 15/16")

	f.tick(none)
	assert.Equal(t, BruteForce, f.state())
	f.tick(press(input.Select))
	assert.Equal(t, Main, f.state())

	exists, err := afero.Exists(f.fs, "/cards/"+s.ReportFile)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBruteForceReusesKeys(t *testing.T) {
	k := len(nfc.CandidateKeys)
	card := nfc.NewClassicCard(uid, nfc.Classic1K)
	for sector := range card.Keys {
		card.Keys[sector] = nfc.CandidateKeys[5]
	}
	f := newFixture(t, card)
	attack := func() brute.Summary {
		f.open(t, BruteForce)
		f.tick(none)
		for i := 0; i < 300 && f.engine().Status() == brute.Running; i++ {
			f.tick(none)
		}
		require.Equal(t, brute.Finished, f.engine().Status())
		s := f.engine().Summary()
		f.tick(press(input.Select))
		return s
	}

	tests := []struct {
		name     string
		rekey    map[int]nfc.Key
		found    int
		attempts int
	}{
		{name: "first run", found: 16, attempts: 16 * 6},
		{name: "cached keys cost one attempt", found: 16, attempts: 16},
		{name: "rekeyed card is not reported", rekey: map[int]nfc.Key{}, found: 0, attempts: 16 * (k + 1)},
	}
	for _, tt := range tests {
		if tt.rekey != nil {
			f.sim.Card.Keys = tt.rekey
		}
		s := attack()
		assert.Equal(t, tt.found, s.Found, tt.name)
		assert.Equal(t, tt.attempts, s.Attempts, tt.name)
		assert.Len(t, s.Keys, tt.found, tt.name)
	}
}

func TestBruteForceCancelSavesReport(t *testing.T) {
	card := nfc.NewClassicCard(uid, nfc.Classic4K)
	card.Keys = map[int]nfc.Key{0: nfc.DefaultKey}
	f := newFixture(t, card)
	f.open(t, BruteForce)
	f.tick(none)
	e := f.engine()
	require.NotNil(t, e)
	for i := 0; i < 20; i++ {
		f.tick(none)
	}
	assert.Contains(t, f.screen(), "Sector: 2/40")

	f.tick(press(input.Back))
	assert.Equal(t, Main, f.state())
	require.Equal(t, brute.Canceled, e.Status())
	s := e.Summary()
	assert.True(t, s.Canceled)
	assert.Equal(t, 1, s.Found)
	assert.Equal(t, 20, s.Attempts)

	name := fmt.Sprintf("/cards/brute_%d.txt", f.clock.now.Unix())
	data, err := afero.ReadFile(f.fs, name)
	require.NoError(t, err)
	assert.Equal(t, "UID: DE:AD:BE:EF\nSector:Key\n0: FF:FF:FF:FF:FF:FF\n", string(data))
}

func TestBruteForceRejectsUltralight(t *testing.T) {
	f := newFixture(t, nfc.NewPageCard(uid, nfc.Ultralight, 16))
	f.open(t, BruteForce)
	f.tick(none)
	assert.Nil(t, f.engine())
	assert.Contains(t, f.screen(), "Not a Classic card")
	assert.Empty(t, f.sim.AuthLog)
}

func TestManagerDelete(t *testing.T) {
	f := newFixture(t, nil)
	f.save(t, uid)
	f.save(t, nfc.UID{1, 2, 3, 4})
	f.open(t, Manager)
	assert.Equal(t, 2, f.ctrl.Context().CardCount)

	names, err := f.env.Store.List(store.Extension, 16)
	require.NoError(t, err)
	f.tick(press(input.Down))
	f.tick(press(input.Select))
	assert.Contains(t, f.screen(), "Deleted!")
	assert.Contains(t, f.screen(), names[1])

	f.tick(none)
	assert.Equal(t, Manager, f.state())
	f.clock.now = f.clock.now.Add(workflow.DefaultTiming.ResultDelay)
	f.tick(none)
	assert.Equal(t, Main, f.state())
	assert.Equal(t, 1, f.ctrl.Context().CardCount)

	left, err := f.env.Store.List(store.Extension, 16)
	require.NoError(t, err)
	assert.Equal(t, []string{names[0]}, left)
}

func TestManagerEmpty(t *testing.T) {
	f := newFixture(t, nil)
	f.open(t, Manager)
	assert.Contains(t, f.screen(), "No cards saved")
	f.tick(press(input.Select))
	assert.Equal(t, Manager, f.state())
}

func TestBrightnessCycles(t *testing.T) {
	f := newFixture(t, nil)
	f.open(t, Settings)
	for _, want := range []byte{64, 128, 192, 255, 64} {
		f.tick(press(input.Select))
		assert.Equal(t, want, f.ctrl.Context().Contrast)
	}
	assert.Contains(t, f.term.Lines()[1], "64")
}

func TestDebugToggle(t *testing.T) {
	level := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(level) })
	log.SetLevel(log.InfoLevel)

	f := newFixture(t, nil)
	f.open(t, Settings)
	f.tick(press(input.Down))
	f.tick(press(input.Select))
	assert.True(t, f.ctrl.Context().Debug)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.Contains(t, f.term.Lines()[2], "ON")

	f.tick(press(input.Select))
	assert.False(t, f.ctrl.Context().Debug)
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestAbout(t *testing.T) {
	f := newFixture(t, nil)
	f.open(t, Settings)
	f.tick(press(input.Up))
	f.tick(press(input.Select))
	assert.Contains(t, f.screen(), "NFC Multitool")
	assert.Contains(t, f.screen(), "13 candidate keys")
	f.tick(press(input.Select))
	assert.Contains(t, f.screen(), "Brightness")
}

func (f *fixture) confirmFormat(t *testing.T) {
	f.open(t, Settings)
	f.tick(press(input.Down))
	f.tick(press(input.Down))
	f.tick(press(input.Select))
	require.Equal(t, SettingsConfirm, f.state())
	assert.Contains(t, f.screen(), "Format SD?")
}

func TestFormatConfirmed(t *testing.T) {
	f := newFixture(t, nil)
	f.save(t, uid)
	f.save(t, nfc.UID{1, 2, 3, 4})
	f.confirmFormat(t)

	f.tick(press(input.Select))
	assert.Equal(t, Settings, f.state())
	assert.Equal(t, 0, f.ctrl.Context().CardCount)
	assert.Equal(t, 0, f.env.Store.Count())
	assert.Equal(t, "Removed 2 files", f.term.Lines()[display.Rows-1])
}

func TestFormatTimesOut(t *testing.T) {
	f := newFixture(t, nil)
	f.save(t, uid)
	f.confirmFormat(t)

	f.clock.now = f.clock.now.Add(DefaultOptions.ConfirmTimeout - time.Millisecond)
	f.tick(none)
	assert.Equal(t, SettingsConfirm, f.state())

	f.clock.now = f.clock.now.Add(time.Millisecond)
	f.tick(none)
	assert.Equal(t, Settings, f.state())
	assert.Equal(t, 1, f.env.Store.Count())

	f.tick(press(input.Select))
	assert.Equal(t, 64, int(f.ctrl.Context().Contrast))
}
