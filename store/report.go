package store

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/callebjorkell/nfc-multitool/nfc"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Report is the outcome of a key recovery run.
type Report struct {
	UID nfc.UID
	// Keys maps sector index to the recovered key A.
	Keys     map[int]nfc.Key
	Finished time.Time
}

func (r Report) FileName() string {
	return r.fileName(1)
}

// fileName numbers the n-th report finished within the same second.
func (r Report) fileName(n int) string {
	if n < 2 {
		return fmt.Sprintf("brute_%d.txt", r.Finished.Unix())
	}
	return fmt.Sprintf("brute_%d_%d.txt", r.Finished.Unix(), n)
}

// WriteTo renders the report as
//
//	UID: 04:A1:B2:C3
//	Sector:Key
//	0: FF:FF:FF:FF:FF:FF
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "UID: %v\n", r.UID)
	buf.WriteString("Sector:Key\n")
	sectors := make([]int, 0, len(r.Keys))
	for s := range r.Keys {
		sectors = append(sectors, s)
	}
	sort.Ints(sectors)
	for _, s := range sectors {
		fmt.Fprintf(&buf, "%d: %v\n", s, r.Keys[s])
	}
	return buf.WriteTo(w)
}

func (s *Store) SaveReport(r Report) (string, error) {
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return "", err
	}
	name := r.FileName()
	for n := 2; ; n++ {
		exists, err := afero.Exists(s.fs, s.path(name))
		if err != nil {
			return "", err
		}
		if !exists {
			break
		}
		name = r.fileName(n)
	}
	if err := s.writeFile(name, buf.Bytes()); err != nil {
		return "", err
	}
	log.Infof("Brute force results saved to %v", s.path(name))
	return name, nil
}
