package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/callebjorkell/nfc-multitool/brute"
	"github.com/callebjorkell/nfc-multitool/config"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/cheggaaa/pb/v3"
	log "github.com/sirupsen/logrus"
)

const bruteTemplate = `{{string . "sector" | blue}} {{bar . }} {{counters . }} {{string . "found" | green}}`

func bruteCard(ctx context.Context, cfg *config.Config) {
	dev, err := openDevice(cfg)
	if err != nil {
		log.Fatalf("NFC reader unavailable: %v", err)
	}
	defer dev.Close()
	st, idx := openStorage(cfg)
	if idx != nil {
		defer idx.Close()
	}
	env := newEnv(cfg, dev, st, idx)

	t, err := waitForCard(ctx, env, cfg.Timing.Tick, *bruteTimeout)
	if err != nil {
		log.Fatal(err)
	}
	if !t.Classic() {
		log.Fatalf("Card %v is not a Mifare Classic card", t.UID)
	}
	g := nfc.ProbeGeometry(dev, *t, []nfc.Key{nfc.DefaultKey})
	fmt.Printf("Attacking %v (%v, %d sectors, %d keys)\n", t.UID, g.Name, g.Sectors, len(nfc.CandidateKeys))

	e := brute.NewEngine(dev, brute.NewSession(t.UID, g, env.Now()), nfc.CandidateKeys, env.Now)
	e.ProgressEvery = cfg.Brute.ProgressEvery
	e.Reporter = st
	if idx != nil {
		e.Cache = idx
		if cfg.Brute.ReuseKeys && !*bruteFresh {
			known, err := idx.KnownKeys(t.UID)
			if err != nil {
				log.Warnf("Could not read cached keys: %v", err)
			}
			for sector, key := range known {
				e.Hint(sector, key)
			}
		}
	}

	bar := pb.StartNew(g.Sectors)
	bar.SetTemplateString(bruteTemplate)
	e.OnProgress = func(p brute.Progress) {
		bar.SetCurrent(int64(p.Sector))
		bar.Set("sector", fmt.Sprintf("sector %d key %d/%d", p.Sector, p.KeyIndex+1, p.Keys))
		bar.Set("found", fmt.Sprintf("%d found", p.Found))
	}

	for e.Status() == brute.Running {
		select {
		case <-ctx.Done():
			e.Step(true)
		default:
			e.Step(false)
		}
	}
	bar.SetCurrent(int64(e.Progress().Sector))
	bar.Finish()
	printSummary(e.Summary())
}

func printSummary(s brute.Summary) {
	state := "finished"
	if s.Canceled {
		state = "canceled"
	}
	fmt.Printf("Brute force %v: %d/%d sectors in %d attempts (%v)\n", state, s.Found, s.Sectors, s.Attempts, s.Elapsed)
	sectors := make([]int, 0, len(s.Keys))
	for sector := range s.Keys {
		sectors = append(sectors, sector)
	}
	sort.Ints(sectors)
	for _, sector := range sectors {
		fmt.Printf("%3d: %v\n", sector, s.Keys[sector])
	}
	if s.ReportFile != "" {
		fmt.Printf("Report saved to %v\n", s.ReportFile)
	}
}
