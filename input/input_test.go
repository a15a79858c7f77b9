package input

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func levels(pressed ...Button) [NumButtons]Level {
	l := [NumButtons]Level{High, High, High, High}
	for _, b := range pressed {
		l[b] = Low
	}
	return l
}

type step struct {
	after   time.Duration
	pressed []Button
}

func TestDebounce(t *testing.T) {
	tests := []struct {
		name  string
		steps []step
		want  int
	}{
		{
			name:  "single press",
			steps: []step{{0, nil}, {10 * time.Millisecond, []Button{Select}}},
			want:  1,
		},
		{
			name: "bounce inside window",
			steps: []step{
				{0, []Button{Select}},
				{5 * time.Millisecond, nil},
				{5 * time.Millisecond, []Button{Select}},
				{5 * time.Millisecond, nil},
				{5 * time.Millisecond, []Button{Select}},
			},
			want: 1,
		},
		{
			name: "held steady",
			steps: []step{
				{0, []Button{Select}},
				{100 * time.Millisecond, []Button{Select}},
				{100 * time.Millisecond, []Button{Select}},
				{100 * time.Millisecond, []Button{Select}},
			},
			want: 1,
		},
		{
			name: "two presses apart",
			steps: []step{
				{0, []Button{Select}},
				{60 * time.Millisecond, nil},
				{60 * time.Millisecond, []Button{Select}},
			},
			want: 2,
		},
		{
			name: "release at window edge",
			steps: []step{
				{0, []Button{Select}},
				{50 * time.Millisecond, nil},
				{1 * time.Millisecond, []Button{Select}},
			},
			want: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &clock{now: time.Unix(0, 0)}
			d := NewDebouncer(DefaultWindow, c.Now)
			got := 0
			for _, s := range tc.steps {
				c.advance(s.after)
				d.Update(levels(s.pressed...))
				if d.Consume(Select) {
					got++
				}
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWindowIsShared(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	d := NewDebouncer(DefaultWindow, c.Now)

	d.Update(levels(Up))
	c.advance(20 * time.Millisecond)
	d.Update(levels(Up, Down))
	assert.True(t, d.Consume(Up))
	assert.False(t, d.Consume(Down))

	c.advance(40 * time.Millisecond)
	d.Update(levels(Up, Down))
	assert.True(t, d.Consume(Down))
}

func TestConsumeClears(t *testing.T) {
	d := NewDebouncer(DefaultWindow, nil)
	d.Update(levels(Back))
	assert.True(t, d.Consume(Back))
	assert.False(t, d.Consume(Back))
}

type scripted struct {
	samples [][NumButtons]Level
}

func (s *scripted) Sample() [NumButtons]Level {
	if len(s.samples) == 0 {
		return levels()
	}
	l := s.samples[0]
	s.samples = s.samples[1:]
	return l
}

func TestSourcePoll(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	s := NewSource(&scripted{samples: [][NumButtons]Level{
		levels(),
		levels(Down),
		levels(Down),
		levels(),
		levels(Back),
	}}, NewDebouncer(DefaultWindow, c.Now))

	var got []Events
	for i := 0; i < 6; i++ {
		c.advance(100 * time.Millisecond)
		got = append(got, s.Poll())
	}
	assert.False(t, got[0].Any())
	assert.True(t, got[1].Pressed(Down))
	assert.False(t, got[2].Any())
	assert.False(t, got[3].Any())
	assert.True(t, got[4].Pressed(Back))
	assert.False(t, got[4].Pressed(Down))
	assert.False(t, got[5].Any())
}

func TestDecodeKey(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("wsdq\x1b[A\x1b[B\x1b[D\x7fx\r"))
	want := []Button{Up, Down, Select, Back, Up, Down, Back, Back}
	for _, w := range want {
		b, ok, err := decodeKey(r)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, w, b)
	}
	_, ok, err := decodeKey(r)
	require.NoError(t, err)
	assert.False(t, ok)
	b, ok, err := decodeKey(r)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Select, b)

	_, _, err = decodeKey(bufio.NewReader(strings.NewReader("\x03")))
	assert.ErrorIs(t, err, errInterrupt)
}

func TestKeyboardPulses(t *testing.T) {
	k := &Keyboard{done: make(chan struct{}), restore: func() {}}
	k.press(Select)
	k.press(Select)

	assert.Equal(t, levels(Select), k.Sample())
	assert.Equal(t, levels(), k.Sample())
	assert.Equal(t, levels(Select), k.Sample())
	assert.Equal(t, levels(), k.Sample())
}
