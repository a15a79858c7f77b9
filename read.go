package main

import (
	"context"
	"fmt"
	"time"

	"github.com/callebjorkell/nfc-multitool/config"
	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/callebjorkell/nfc-multitool/workflow"
	log "github.com/sirupsen/logrus"
)

// waitForCard polls every tick until a card shows up, the timeout passes or
// ctx is done.
func waitForCard(ctx context.Context, env *workflow.Env, tick, timeout time.Duration) (*nfc.Target, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	fmt.Println("Hold a card near the reader...")
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		if target := env.Poll(); target != nil {
			return target, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no card: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func readCard(ctx context.Context, cfg *config.Config) {
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

	t, err := waitForCard(ctx, env, cfg.Timing.Tick, *readTimeout)
	if err != nil {
		log.Fatal(err)
	}
	rec, p, name, err := env.Capture(*t)
	if err != nil {
		log.Fatalf("Could not read %v: %v", t.UID, err)
	}

	fmt.Printf("UID:    %v\n", rec.UID)
	fmt.Printf("Type:   %v\n", p.Name())
	fmt.Printf("Issuer: %v\n", nfc.Issuer(rec.UID))
	fmt.Printf("Size:   %d bytes\n", len(rec.Payload))
	if name == "" {
		fmt.Println("Not saved")
		return
	}
	fmt.Printf("Saved:  %v\n", name)
}
