package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/callebjorkell/nfc-multitool/nfc"
	"github.com/tidwall/buntdb"
)

// Index remembers what the tool has seen: every capture, and the keys
// recovered per card so a later attack on the same UID can skip them.
type Index struct {
	instance *buntdb.DB
}

type Capture struct {
	UID      string       `json:"uid"`
	Type     nfc.CardType `json:"type"`
	Size     int          `json:"size"`
	File     string       `json:"file"`
	Captured time.Time    `json:"captured"`
}

// OpenIndex opens the index database. ":memory:" keeps it in memory.
func OpenIndex(path string) (*Index, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.CreateIndex("captured", "capture:*", buntdb.IndexJSON("captured")); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{instance: db}, nil
}

func (i *Index) Close() error {
	return i.instance.Close()
}

func (i *Index) RecordCapture(c CardRecord, file string, at time.Time) error {
	return i.instance.Update(func(tx *buntdb.Tx) error {
		data, err := json.Marshal(Capture{
			UID:      c.UID.Hex(),
			Type:     c.Type,
			Size:     len(c.Payload),
			File:     file,
			Captured: at,
		})
		if err != nil {
			return err
		}
		_, _, err = tx.Set(captureKey(c.UID, at), string(data), nil)
		return err
	})
}

// Captures lists every recorded capture, oldest first.
func (i *Index) Captures() ([]Capture, error) {
	var out []Capture
	err := i.instance.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.Ascend("captured", func(key, value string) bool {
			var c Capture
			if decodeErr = json.Unmarshal([]byte(value), &c); decodeErr != nil {
				return false
			}
			out = append(out, c)
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	return out, err
}

// RememberKeys merges recovered keys into what is known for the card.
func (i *Index) RememberKeys(uid nfc.UID, keys map[int]nfc.Key) error {
	if len(keys) == 0 {
		return nil
	}
	return i.instance.Update(func(tx *buntdb.Tx) error {
		known, err := readKeys(tx, uid)
		if err != nil {
			return err
		}
		for s, k := range keys {
			known[strconv.Itoa(s)] = k.String()
		}
		data, err := json.Marshal(known)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(keysKey(uid), string(data), nil)
		return err
	})
}

func (i *Index) KnownKeys(uid nfc.UID) (map[int]nfc.Key, error) {
	out := map[int]nfc.Key{}
	err := i.instance.View(func(tx *buntdb.Tx) error {
		known, err := readKeys(tx, uid)
		if err != nil {
			return err
		}
		for s, k := range known {
			sector, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("sector %q: %w", s, err)
			}
			key, err := nfc.ParseKey(k)
			if err != nil {
				return fmt.Errorf("sector %d: %w", sector, err)
			}
			out[sector] = key
		}
		return nil
	})
	return out, err
}

func readKeys(tx *buntdb.Tx, uid nfc.UID) (map[string]string, error) {
	known := map[string]string{}
	s, err := tx.Get(keysKey(uid))
	if errors.Is(err, buntdb.ErrNotFound) {
		return known, nil
	}
	if err != nil {
		return nil, err
	}
	return known, json.Unmarshal([]byte(s), &known)
}

func captureKey(uid nfc.UID, at time.Time) string {
	return fmt.Sprintf("capture:%v:%d", uid.Hex(), at.UnixNano())
}

func keysKey(uid nfc.UID) string {
	return fmt.Sprintf("keys:%v", uid.Hex())
}
