package nfc

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// MaxPayload is the largest dump kept for a card.
const MaxPayload = 1024

const (
	ultralightPages = 16
	ntagPages       = 45 // NTAG213
)

// Profile is what the tool can do with one kind of card.
type Profile interface {
	Name() string
	Type() CardType
	// Probe reports whether the target looks like this kind of card. It may
	// talk to the card.
	Probe(dev Device, t Target) bool
	Read(dev Device, t Target) ([]byte, error)
	Write(dev Device, t Target, data []byte) error
	// Geometry is only meaningful for Classic profiles.
	Geometry() Geometry
}

type classicProfile struct {
	geometry Geometry
}

type pageProfile struct {
	name  string
	kind  CardType
	pages int
}

var (
	Classic1KProfile  Profile = classicProfile{geometry: Classic1K}
	Classic4KProfile  Profile = classicProfile{geometry: Classic4K}
	UltralightProfile Profile = pageProfile{name: "Ultralight", kind: Ultralight, pages: ultralightPages}
	NTAGProfile       Profile = pageProfile{name: "NTAG213", kind: NTAG, pages: ntagPages}
)

// ClassicProfile picks the Classic profile matching the probed geometry.
func ClassicProfile(dev Device, t Target) Profile {
	if ProbeGeometry(dev, t, []Key{DefaultKey}) == Classic4K {
		return Classic4KProfile
	}
	return Classic1KProfile
}

// ReadCascade reads the card with the first profile that yields any data,
// trying Classic, then Ultralight, then NTAG.
func ReadCascade(dev Device, t Target) (Profile, []byte, error) {
	candidates := []Profile{ClassicProfile(dev, t), UltralightProfile, NTAGProfile}
	for _, p := range candidates {
		if !p.Probe(dev, t) {
			continue
		}
		data, err := p.Read(dev, t)
		if err != nil {
			log.Debugf("%v read of %v failed: %v", p.Name(), t.UID, err)
		}
		if len(data) > 0 {
			return p, data, nil
		}
	}
	return nil, nil, fmt.Errorf("no profile could read card %v", t.UID)
}

// ProfileFor returns the profile used to write back a stored dump.
func ProfileFor(c CardType, g Geometry) (Profile, error) {
	switch c {
	case Classic:
		if g == Classic4K {
			return Classic4KProfile, nil
		}
		return Classic1KProfile, nil
	case Ultralight:
		return UltralightProfile, nil
	case NTAG:
		return NTAGProfile, nil
	}
	return nil, ErrUnsupported
}

func (p classicProfile) Name() string       { return "Classic " + p.geometry.Name }
func (p classicProfile) Type() CardType     { return Classic }
func (p classicProfile) Geometry() Geometry { return p.geometry }

func (p classicProfile) Probe(dev Device, t Target) bool {
	// Ultralight and NTAG answer with SAK 0x00, Classic cards never do.
	return t.SAK == 0 || t.SAK&0x08 != 0
}

// Read authenticates every block of the first 1024 bytes with the default
// key. Blocks that can't be read are left zeroed so every block keeps its
// position, and the dump ends after the last block that was read. Write
// leaves zeroed blocks alone.
func (p classicProfile) Read(dev Device, t Target) ([]byte, error) {
	blocks := min(p.geometry.TotalBlocks(), MaxPayload/BlockSize)
	data := make([]byte, blocks*BlockSize)
	end := 0
	var lastErr error
	for block := 0; block < blocks; block++ {
		if err := dev.Authenticate(t.UID, block, KeyA, DefaultKey); err != nil {
			lastErr = err
			continue
		}
		b, err := dev.ReadBlock(block)
		if err != nil {
			lastErr = err
			continue
		}
		copy(data[block*BlockSize:], b)
		end = (block + 1) * BlockSize
	}
	if end == 0 {
		return nil, lastErr
	}
	return data[:end], nil
}

// Write puts a dump back onto the card block by block. The manufacturer block,
// all sector trailers and all zeroed blocks are skipped, a zeroed block being
// what Read leaves where it could not read. The first failing block aborts.
func (p classicProfile) Write(dev Device, t Target, data []byte) error {
	for offset := BlockSize; offset+BlockSize <= len(data); offset += BlockSize {
		block := offset / BlockSize
		if block >= p.geometry.TotalBlocks() {
			break
		}
		if p.geometry.IsTrailer(block) {
			continue
		}
		if isZero(data[offset : offset+BlockSize]) {
			log.Debugf("Block %d not in the dump, left alone", block)
			continue
		}
		if err := dev.Authenticate(t.UID, block, KeyA, DefaultKey); err != nil {
			return fmt.Errorf("block %d: %w", block, err)
		}
		if err := dev.WriteBlock(block, data[offset:offset+BlockSize]); err != nil {
			return fmt.Errorf("block %d: %w", block, err)
		}
		log.Debugf("Wrote block %d", block)
	}
	return nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func (p pageProfile) Name() string       { return p.name }
func (p pageProfile) Type() CardType     { return p.kind }
func (p pageProfile) Geometry() Geometry { return Geometry{Name: p.name} }

func (p pageProfile) Probe(dev Device, t Target) bool {
	return t.SAK == 0
}

func (p pageProfile) Read(dev Device, t Target) ([]byte, error) {
	data := make([]byte, 0, p.pages*PageSize)
	for page := 0; page < p.pages; page++ {
		b, err := dev.ReadPage(page)
		if err != nil {
			if len(data) == 0 {
				return nil, err
			}
			break
		}
		data = append(data, b[:PageSize]...)
	}
	return data, nil
}

func (p pageProfile) Write(Device, Target, []byte) error {
	return errors.Join(ErrUnsupported, fmt.Errorf("writing %v cards", p.name))
}
