package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
nfc:
  driver: pn532
  serial_port: /dev/ttyUSB0
display:
  driver: png
  png_path: /tmp/screen.png
timing:
  emulate_timeout: 10s
  confirm_timeout: 2500ms
log:
  level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, "pn532", cfg.NFC.Driver)
	assert.Equal(t, "/dev/ttyUSB0", cfg.NFC.SerialPort)
	assert.Equal(t, 115200, cfg.NFC.Baud)
	assert.Equal(t, "png", cfg.Display.Driver)
	assert.Equal(t, 10*time.Second, cfg.Timing.EmulateTimeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timing.ConfirmTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.Tick)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "nfc:\n  drvier: sim\n", "drvier"},
		{"unknown driver", "nfc:\n  driver: acr38\n", "config.nfc.driver"},
		{"unknown display", "display:\n  driver: lcd\n", "config.display.driver"},
		{"bad pin", "input:\n  driver: gpio\n  pins:\n    back: 23\n", "config.input.pins.back"},
		{"zero tick", "timing:\n  tick: 0s\n", "config.timing.tick"},
		{"poll longer than tick", "timing:\n  poll: 200ms\n", "config.timing.poll"},
		{"no cards dir", "storage:\n  cards_dir: \"\"\n", "config.storage.cards_dir"},
		{"bad level", "log:\n  level: loud\n", "config.log.level"},
		{"bad duration", "timing:\n  tick: soon\n", "parse config yaml"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
