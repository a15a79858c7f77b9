package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/callebjorkell/nfc-multitool/config"
	"github.com/callebjorkell/nfc-multitool/display"
	"github.com/callebjorkell/nfc-multitool/input"
	"github.com/callebjorkell/nfc-multitool/menu"
	"github.com/callebjorkell/nfc-multitool/nfc"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

func startMenu(ctx context.Context, cfg *config.Config) {
	d, err := openDisplay(cfg)
	if err != nil {
		log.Fatalf("Display unavailable: %v", err)
	}
	if c, ok := d.(io.Closer); ok {
		defer c.Close()
	}
	if c, ok := d.(display.Contraster); ok {
		if err := c.SetContrast(cfg.Display.Contrast); err != nil {
			log.Warnf("Could not set contrast: %v", err)
		}
	}

	dev, err := openReader(cfg, d)
	if err != nil {
		log.Fatalf("NFC reader unavailable: %v", err)
	}
	defer dev.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sampler, closeInput, err := openInput(cfg, cancel)
	if err != nil {
		showFailure(d, "Buttons not found", err)
		log.Fatalf("Buttons unavailable: %v", err)
	}
	defer closeInput()

	st, idx := openStorage(cfg)
	if idx != nil {
		defer idx.Close()
	}
	env := newEnv(cfg, dev, st, idx)

	ctrl := menu.New(env, d, menu.Options{
		ConfirmTimeout: cfg.Timing.ConfirmTimeout,
		ProgressEvery:  cfg.Brute.ProgressEvery,
		ReuseKeys:      cfg.Brute.ReuseKeys,
		Contrast:       cfg.Display.Contrast,
	})
	src := input.NewSource(sampler, input.NewDebouncer(cfg.Input.Debounce, nil))

	log.Infof("NFC multitool started (%v reader, %v display, %v input)",
		cfg.NFC.Driver, cfg.Display.Driver, cfg.Input.Driver)
	if err := ctrl.Run(ctx, src, cfg.Timing.Tick); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(err)
	}
	log.Infoln("Shutting down")
}

// openReader opens the NFC device and puts the reason on the screen when
// there is none, the log is not visible on the handheld.
func openReader(cfg *config.Config, d display.Display) (nfc.Device, error) {
	dev, err := openDevice(cfg)
	if err != nil {
		showFailure(d, "NFC reader not found", err)
		return nil, err
	}
	return dev, nil
}

func showFailure(d display.Display, title string, err error) {
	d.Clear()
	d.DrawIcon(0, 0, display.IconFail)
	d.SetCursor(0, 1)
	d.Println(title)
	d.SetCursor(0, 3)
	msg := err.Error()
	for row := 3; row < display.Rows && msg != ""; row++ {
		n := min(len(msg), display.Columns)
		d.Println(msg[:n])
		msg = strings.TrimLeft(msg[n:], " ")
	}
	if err := d.Present(); err != nil {
		log.Warnf("Could not show failure: %v", err)
	}
}

func openDisplay(cfg *config.Config) (display.Display, error) {
	c := cfg.Display
	if c.Driver == "terminal" {
		return display.NewTerminal(os.Stdout), nil
	}
	canvas, err := display.NewCanvas(c.Font)
	if err != nil {
		return nil, err
	}
	if c.Driver == "png" {
		return display.NewPNG(canvas, afero.NewOsFs(), c.PNGPath, c.PNGScale), nil
	}
	oled, err := display.OpenSSD1306(c.I2CBus, canvas)
	if err != nil {
		return nil, err
	}
	return oled, nil
}

// openInput gives the button sampler. The keyboard ends the run through
// cancel when it sees ctrl-c or the end of its input.
func openInput(cfg *config.Config, cancel context.CancelFunc) (input.Sampler, func(), error) {
	if cfg.Input.Driver == "gpio" {
		p := cfg.Input.Pins
		g, err := input.OpenGPIO([input.NumButtons]string{p.Up, p.Down, p.Select, p.Back})
		if err != nil {
			return nil, nil, err
		}
		return g, func() { g.Close() }, nil
	}
	k, err := input.NewKeyboard(os.Stdin)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		<-k.Done()
		cancel()
	}()
	return k, func() { k.Close() }, nil
}
