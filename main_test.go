package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/callebjorkell/nfc-multitool/config"
	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReader(t *testing.T) {
	orig := openDevice
	defer func() { openDevice = orig }()

	t.Run("missing reader is shown", func(t *testing.T) {
		openDevice = func(*config.Config) (nfc.Device, error) {
			return nil, errors.New("open /dev/ttyS0: no such file or directory")
		}
		var out bytes.Buffer
		d := display.NewTerminal(&out)

		dev, err := openReader(config.Default(), d)
		require.Error(t, err)
		assert.Nil(t, dev)

		screen := strings.Join(d.Lines(), "")
		assert.Contains(t, d.Lines(), "NFC reader not found")
		assert.Contains(t, screen, "open /dev/ttyS0: no such")
		assert.Contains(t, screen, "file or directory")
		assert.NotEmpty(t, out.String())
	})
	t.Run("reader found", func(t *testing.T) {
		openDevice = orig
		var out bytes.Buffer
		d := display.NewTerminal(&out)

		cfg := config.Default()
		cfg.NFC.Driver = "sim"
		dev, err := openReader(cfg, d)
		require.NoError(t, err)
		defer dev.Close()
		assert.Empty(t, out.String())
	})
}

func TestShowFailureWraps(t *testing.T) {
	d := display.NewTerminal(&bytes.Buffer{})
	msg := strings.Repeat("a", display.Columns) + " " + strings.Repeat("b", 5)
	showFailure(d, "Buttons not found", errors.New(msg))

	lines := d.Lines()
	assert.Equal(t, "Buttons not found", lines[1])
	assert.Equal(t, strings.Repeat("a", display.Columns), lines[3])
	assert.Equal(t, "bbbbb", lines[4])
}
