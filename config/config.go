package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	NFC     NFCConfig     `yaml:"nfc"`
	Display DisplayConfig `yaml:"display"`
	Input   InputConfig   `yaml:"input"`
	Storage StorageConfig `yaml:"storage"`
	Timing  TimingConfig  `yaml:"timing"`
	Brute   BruteConfig   `yaml:"brute"`
	Log     LogConfig     `yaml:"log"`
}

type NFCConfig struct {
	// Driver is one of pn532, rc522, pcsc or sim.
	Driver      string `yaml:"driver"`
	SerialPort  string `yaml:"serial_port"`
	Baud        int    `yaml:"baud"`
	ReaderIndex int    `yaml:"reader_index"`
	SPIBus      int    `yaml:"spi_bus"`
	SPIDevice   int    `yaml:"spi_device"`
	SPISpeed    int    `yaml:"spi_speed"`
	ResetPin    int    `yaml:"reset_pin"`
}

type DisplayConfig struct {
	// Driver is one of terminal, png or ssd1306.
	Driver   string `yaml:"driver"`
	Font     string `yaml:"font"`
	PNGPath  string `yaml:"png_path"`
	PNGScale uint   `yaml:"png_scale"`
	I2CBus   string `yaml:"i2c_bus"`
	Contrast byte   `yaml:"contrast"`
}

type InputConfig struct {
	// Driver is keyboard or gpio.
	Driver   string        `yaml:"driver"`
	Pins     Pins          `yaml:"pins"`
	Debounce time.Duration `yaml:"debounce"`
}

type Pins struct {
	Up     string `yaml:"up"`
	Down   string `yaml:"down"`
	Select string `yaml:"select"`
	Back   string `yaml:"back"`
}

type StorageConfig struct {
	// Root is where the storage medium is mounted. Everything else in this
	// section is relative to it.
	Root     string `yaml:"root"`
	CardsDir string `yaml:"cards_dir"`
	Index    string `yaml:"index"`
	MaxFiles int    `yaml:"max_files"`
}

type TimingConfig struct {
	Tick           time.Duration `yaml:"tick"`
	Poll           time.Duration `yaml:"poll"`
	ResultDelay    time.Duration `yaml:"result_delay"`
	EmulateTimeout time.Duration `yaml:"emulate_timeout"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

type BruteConfig struct {
	ProgressEvery int  `yaml:"progress_every"`
	ReuseKeys     bool `yaml:"reuse_keys"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

var (
	drivers        = []string{"pn532", "rc522", "pcsc", "sim"}
	displayDrivers = []string{"terminal", "png", "ssd1306"}
	inputDrivers   = []string{"keyboard", "gpio"}
)

func Default() *Config {
	return &Config{
		NFC: NFCConfig{
			Driver:     "sim",
			SerialPort: "/dev/ttyS0",
			Baud:       115200,
			SPISpeed:   1000000,
			ResetPin:   25,
		},
		Display: DisplayConfig{
			Driver:   "terminal",
			PNGPath:  "screen.png",
			PNGScale: 4,
			Contrast: 255,
		},
		Input: InputConfig{
			Driver: "keyboard",
			Pins: Pins{
				Up:     "GPIO17",
				Down:   "GPIO27",
				Select: "GPIO22",
				Back:   "GPIO23",
			},
			Debounce: 50 * time.Millisecond,
		},
		Storage: StorageConfig{
			Root:     ".",
			CardsDir: "cards",
			Index:    "nfc-multitool.db",
			MaxFiles: 16,
		},
		Timing: TimingConfig{
			Tick:           100 * time.Millisecond,
			Poll:           30 * time.Millisecond,
			ResultDelay:    3 * time.Second,
			EmulateTimeout: 30 * time.Second,
			ConfirmTimeout: 5 * time.Second,
		},
		Brute: BruteConfig{
			ProgressEvery: 10,
			ReuseKeys:     true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the configuration at path on top of the defaults. A missing
// file is not an error, the defaults are used as they are.
func Load(path string) (*Config, error) {
	cfg := Default()
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("No config at %v, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(content); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(content []byte) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := oneOf("config.nfc.driver", c.NFC.Driver, drivers); err != nil {
		return err
	}
	if c.NFC.Driver == "pn532" {
		if strings.TrimSpace(c.NFC.SerialPort) == "" {
			return fmt.Errorf("config.nfc.serial_port is required for pn532")
		}
		if c.NFC.Baud <= 0 {
			return fmt.Errorf("config.nfc.baud must be > 0")
		}
	}
	if c.NFC.ReaderIndex < 0 {
		return fmt.Errorf("config.nfc.reader_index must be >= 0")
	}

	if err := oneOf("config.display.driver", c.Display.Driver, displayDrivers); err != nil {
		return err
	}
	if c.Display.Driver == "png" && strings.TrimSpace(c.Display.PNGPath) == "" {
		return fmt.Errorf("config.display.png_path is required for png")
	}

	if err := oneOf("config.input.driver", c.Input.Driver, inputDrivers); err != nil {
		return err
	}
	if c.Input.Driver == "gpio" {
		for name, pin := range map[string]string{
			"up": c.Input.Pins.Up, "down": c.Input.Pins.Down,
			"select": c.Input.Pins.Select, "back": c.Input.Pins.Back,
		} {
			if !strings.HasPrefix(pin, "GPIO") {
				return fmt.Errorf("config.input.pins.%s must name a GPIO pin, got %q", name, pin)
			}
		}
	}
	if c.Input.Debounce <= 0 {
		return fmt.Errorf("config.input.debounce must be > 0")
	}

	if strings.TrimSpace(c.Storage.CardsDir) == "" {
		return fmt.Errorf("config.storage.cards_dir is required")
	}
	if c.Storage.MaxFiles <= 0 {
		return fmt.Errorf("config.storage.max_files must be > 0")
	}

	for name, d := range map[string]time.Duration{
		"tick": c.Timing.Tick, "poll": c.Timing.Poll, "result_delay": c.Timing.ResultDelay,
		"emulate_timeout": c.Timing.EmulateTimeout, "confirm_timeout": c.Timing.ConfirmTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("config.timing.%s must be > 0", name)
		}
	}
	if c.Timing.Poll >= c.Timing.Tick {
		return fmt.Errorf("config.timing.poll must be shorter than config.timing.tick")
	}

	if c.Brute.ProgressEvery <= 0 {
		return fmt.Errorf("config.brute.progress_every must be > 0")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config.log.level: %w", err)
	}
	return nil
}

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}
