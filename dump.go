package main

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/callebjorkell/nfc-multitool/config"
	"github.com/callebjorkell/nfc-multitool/store"
	log "github.com/sirupsen/logrus"
)

func listCards(cfg *config.Config) {
	st, idx := openStorage(cfg)
	names, err := st.List(store.Extension, math.MaxInt)
	if err != nil {
		log.Fatal(err)
	}

	if len(names) > 0 {
		fmt.Println("            File │ UID                  │ Type          │  Size ")
		fmt.Println("─────────────────┼──────────────────────┼───────────────┼───────")
	} else {
		fmt.Println("No cards saved...")
	}
	for _, n := range names {
		rec, err := st.Load(n)
		if err != nil {
			fmt.Printf("%16v │ %v\n", n, err)
			continue
		}
		fmt.Printf("%16v │ %-20v │ %-13v │ %5d \n", n, rec.UID, rec.Type, len(rec.Payload))
	}

	if idx == nil {
		return
	}
	defer idx.Close()
	captures, err := idx.Captures()
	if err != nil {
		log.Warnf("Could not read capture history: %v", err)
		return
	}
	if len(captures) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Captured             │ UID            │ File")
	fmt.Println("─────────────────────┼────────────────┼─────────────────")
	for _, c := range captures {
		fmt.Printf("%v  │ %-14v │ %v\n", c.Captured.Format("2006-01-02 15:04:05"), c.UID, c.File)
	}
}

func dumpCard(cfg *config.Config, name string) {
	st, idx := openStorage(cfg)
	if idx != nil {
		defer idx.Close()
	}
	rec, err := st.Load(name)
	if err != nil {
		log.Fatalf("Could not load %v: %v", name, err)
	}
	fmt.Printf("UID:  %v\n", rec.UID)
	fmt.Printf("Type: %v\n", rec.Type)
	fmt.Printf("Size: %d bytes\n\n", len(rec.Payload))
	fmt.Print(hex.Dump(rec.Payload))
}
