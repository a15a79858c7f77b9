package store

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var ErrUnavailable = errors.New("storage unavailable")

const tmpSuffix = ".tmp"

// Store keeps card dumps and attack reports in one directory of the storage
// medium. Access is synchronous and there is only ever one writer.
type Store struct {
	fs        afero.Fs
	dir       string
	available bool
}

// New prepares the cards directory. A medium that can't be used gives a
// Store that reports itself unavailable instead of an error, so the rest of
// the tool keeps working without persistence.
func New(fs afero.Fs, dir string) *Store {
	s := &Store{fs: fs, dir: dir}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		log.Warnf("Storage unavailable, cards will not be saved: %v", err)
		return s
	}
	s.available = true
	s.clean()
	return s
}

func (s *Store) Available() bool {
	return s.available
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return path.Join(s.dir, path.Base(name))
}

// Save writes the dump under its UID derived name and returns that name.
func (s *Store) Save(c CardRecord) (string, error) {
	data, err := Marshal(c)
	if err != nil {
		return "", err
	}
	name := FileName(c.UID)
	if err := s.writeFile(name, data); err != nil {
		return "", err
	}
	log.Infof("Card saved: %v", s.path(name))
	return name, nil
}

// writeFile goes through a temp file and a rename, so a failed or interrupted
// save never leaves a half written file under the final name.
func (s *Store) writeFile(name string, data []byte) error {
	if !s.available {
		return ErrUnavailable
	}
	final := s.path(name)
	tmp := final + tmpSuffix
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %v: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return fmt.Errorf("write %v: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("close %v: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, final); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("rename %v: %w", tmp, err)
	}
	return nil
}

func (s *Store) Load(name string) (CardRecord, error) {
	if !s.available {
		return CardRecord{}, ErrUnavailable
	}
	data, err := afero.ReadFile(s.fs, s.path(name))
	if err != nil {
		return CardRecord{}, err
	}
	return Unmarshal(bytes.NewReader(data))
}

// List returns up to max names with the given extension, in the order the
// medium hands them out.
func (s *Store) List(ext string, max int) ([]string, error) {
	if !s.available {
		return nil, ErrUnavailable
	}
	d, err := s.fs.Open(s.dir)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	infos, err := d.Readdir(-1)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, fi := range infos {
		if len(names) >= max {
			break
		}
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ext) {
			continue
		}
		names = append(names, fi.Name())
	}
	return names, nil
}

// Count is the number of stored card dumps, 0 when the medium is unavailable.
func (s *Store) Count() int {
	names, err := s.List(Extension, math.MaxInt)
	if err != nil {
		return 0
	}
	return len(names)
}

func (s *Store) Delete(name string) error {
	if !s.available {
		return ErrUnavailable
	}
	return s.fs.Remove(s.path(name))
}

// Format deletes every file in the cards directory.
func (s *Store) Format() (int, error) {
	names, err := s.List("", math.MaxInt)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range names {
		if err := s.fs.Remove(s.path(n)); err != nil {
			return removed, err
		}
		removed++
	}
	log.Infof("Removed %d files from %v", removed, s.dir)
	return removed, nil
}

// clean drops temp files left behind by a save that never finished.
func (s *Store) clean() {
	names, err := s.List(tmpSuffix, math.MaxInt)
	if err != nil {
		return
	}
	for _, n := range names {
		log.Debugf("Removing stale %v", n)
		s.fs.Remove(s.path(n))
	}
}
