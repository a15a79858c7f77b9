package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/callebjorkell/nfc-multitool/config"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/store"
	"github.com/callebjorkell/nfc-multitool/workflow"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app        = kingpin.New("nfc-multitool", "Handheld NFC multitool: read, write and emulate cards, and recover Mifare Classic keys.")
	configPath = app.Flag("config", "Path to the YAML configuration.").Default("nfc-multitool.yaml").String()
	debug      = app.Flag("debug", "Enable debug logging.").Bool()

	start = app.Command("start", "Start the menu on the configured display and buttons.")

	read        = app.Command("read", "Wait for a card, dump it to storage and print what was read.")
	readTimeout = read.Flag("timeout", "How long to wait for a card.").Default("30s").Duration()

	bruteCmd     = app.Command("brute", "Try the candidate keys against every sector of a Mifare Classic card.")
	bruteTimeout = bruteCmd.Flag("timeout", "How long to wait for a card.").Default("30s").Duration()
	bruteFresh   = bruteCmd.Flag("fresh", "Ignore keys remembered from earlier runs.").Bool()

	list = app.Command("list", "List stored dumps and the capture history.")

	dump     = app.Command("dump", "Print a stored dump.")
	dumpFile = dump.Arg("file", "Name of the dump in the cards directory.").Required().String()

	remove     = app.Command("remove", "Remove a stored dump.")
	removeFile = remove.Arg("file", "Name of the dump in the cards directory.").Required().String()

	format = app.Command("format", "Remove every file from the cards directory.")
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case start.FullCommand():
		startMenu(ctx, cfg)
	case read.FullCommand():
		readCard(ctx, cfg)
	case bruteCmd.FullCommand():
		bruteCard(ctx, cfg)
	case list.FullCommand():
		listCards(cfg)
	case dump.FullCommand():
		dumpCard(cfg, *dumpFile)
	case remove.FullCommand():
		removeCard(cfg, *removeFile)
	case format.FullCommand():
		formatCards(cfg)
	default:
		kingpin.FatalUsage("Unrecognized command")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if *debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}

// openStorage gives the card store and the capture index under the storage
// root. The index is nil when it can't be opened, the store still works.
func openStorage(cfg *config.Config) (*store.Store, *store.Index) {
	fs := afero.NewBasePathFs(afero.NewOsFs(), cfg.Storage.Root)
	st := store.New(fs, cfg.Storage.CardsDir)

	idx, err := store.OpenIndex(filepath.Join(cfg.Storage.Root, cfg.Storage.Index))
	if err != nil {
		log.Warnf("Capture history unavailable: %v", err)
		return st, nil
	}
	return st, idx
}

// demoUID is the card the simulator holds in its field.
var demoUID = nfc.UID{0x04, 0xA1, 0xB2, 0xC3}

var openDevice = func(cfg *config.Config) (nfc.Device, error) {
	c := cfg.NFC
	switch c.Driver {
	case "pn532":
		return nfc.OpenPN532(c.SerialPort, c.Baud)
	case "rc522":
		return nfc.OpenRC522(c.SPIBus, c.SPIDevice, c.SPISpeed, c.ResetPin)
	case "pcsc":
		return nfc.OpenPCSC(c.ReaderIndex)
	}
	card := nfc.NewClassicCard(demoUID, nfc.Classic1K)
	card.Keys[3] = nfc.CandidateKeys[2]
	card.Keys[7] = nfc.CandidateKeys[6]
	delete(card.Keys, 12)
	sim := nfc.NewSimulator(card)
	sim.ReaderAfter = 20
	return sim, nil
}

func newEnv(cfg *config.Config, dev nfc.Device, st *store.Store, idx *store.Index) *workflow.Env {
	return &workflow.Env{
		Dev:   dev,
		Store: st,
		Index: idx,
		Timing: workflow.Timing{
			Poll:           cfg.Timing.Poll,
			ResultDelay:    cfg.Timing.ResultDelay,
			EmulateTimeout: cfg.Timing.EmulateTimeout,
		},
		MaxFiles: cfg.Storage.MaxFiles,
	}
}
