package main

import (
	"fmt"

	"github.com/callebjorkell/nfc-multitool/config"
	log "github.com/sirupsen/logrus"
)

func removeCard(cfg *config.Config, name string) {
	st, idx := openStorage(cfg)
	if idx != nil {
		defer idx.Close()
	}
	if err := st.Delete(name); err != nil {
		log.Warnf("Could not remove card %v: %v", name, err)
	}
}

func formatCards(cfg *config.Config) {
	st, idx := openStorage(cfg)
	if idx != nil {
		defer idx.Close()
	}
	n, err := st.Format()
	if err != nil {
		log.Fatalf("Format failed after %d files: %v", n, err)
	}
	fmt.Printf("Removed %d files\n", n)
}
