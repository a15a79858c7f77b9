package nfc

import (
	"fmt"
	"time"
)

// SimCard is a card held in front of a Simulator.
type SimCard struct {
	Target   Target
	Type     CardType
	Geometry Geometry
	// Keys holds key A per sector. Sectors without an entry reject every key.
	Keys   map[int]Key
	Blocks map[int][]byte
	// Pages backs Ultralight and NTAG cards.
	Pages [][]byte
}

// Simulator is an in-memory Device. It is what the `sim` driver runs on and
// what the tests drive the workflows with.
type Simulator struct {
	Card *SimCard
	// ReaderAfter makes DetectExternalReader succeed on that call, 0 never.
	ReaderAfter int
	// FailWrite makes writes to that block fail.
	FailWrite map[int]bool

	AuthLog    []AuthAttempt
	Writes     map[int][]byte
	Polls      int
	targetMode bool
	detects    int
	authed     int
}

type AuthAttempt struct {
	Block int
	Key   Key
	OK    bool
}

// NewClassicCard builds a simulated Classic card with the default key on every
// sector and a recognisable pattern in each data block.
func NewClassicCard(uid UID, g Geometry) *SimCard {
	sak := byte(0x08)
	if g == Classic4K {
		sak = 0x18
	}
	c := &SimCard{
		Target:   Target{UID: uid, ATQA: 0x0004, SAK: sak},
		Type:     Classic,
		Geometry: g,
		Keys:     map[int]Key{},
		Blocks:   map[int][]byte{},
	}
	for s := 0; s < g.Sectors; s++ {
		c.Keys[s] = DefaultKey
	}
	for b := 0; b < g.TotalBlocks(); b++ {
		block := make([]byte, BlockSize)
		for i := range block {
			block[i] = byte(b)
		}
		c.Blocks[b] = block
	}
	return c
}

func NewPageCard(uid UID, kind CardType, pages int) *SimCard {
	c := &SimCard{
		Target: Target{UID: uid, ATQA: 0x0044},
		Type:   kind,
	}
	for p := 0; p < pages; p++ {
		c.Pages = append(c.Pages, []byte{byte(p), byte(p), byte(p), byte(p)})
	}
	return c
}

func NewSimulator(card *SimCard) *Simulator {
	return &Simulator{
		Card:      card,
		Writes:    map[int][]byte{},
		FailWrite: map[int]bool{},
		authed:    -1,
	}
}

func (s *Simulator) Close() error {
	return nil
}

func (s *Simulator) PollForTarget(time.Duration) (*Target, error) {
	s.Polls++
	if s.Card == nil {
		return nil, NoCardErr
	}
	t := s.Card.Target
	return &t, nil
}

func (s *Simulator) Authenticate(uid UID, block int, keyType KeyType, key Key) error {
	if s.Card == nil {
		return NoCardErr
	}
	ok := false
	if s.Card.Type == Classic && block < s.Card.Geometry.TotalBlocks() {
		want, has := s.Card.Keys[s.Card.Geometry.SectorOf(block)]
		ok = has && want == key && keyType == KeyA
	}
	s.AuthLog = append(s.AuthLog, AuthAttempt{Block: block, Key: key, OK: ok})
	if !ok {
		s.authed = -1
		return ErrAuth
	}
	s.authed = s.Card.Geometry.SectorOf(block)
	return nil
}

func (s *Simulator) ReadBlock(block int) ([]byte, error) {
	if err := s.checkAuth(block); err != nil {
		return nil, err
	}
	out := make([]byte, BlockSize)
	copy(out, s.Card.Blocks[block])
	return out, nil
}

func (s *Simulator) WriteBlock(block int, data []byte) error {
	if err := s.checkAuth(block); err != nil {
		return err
	}
	if s.FailWrite[block] {
		return fmt.Errorf("write to block %d not acknowledged", block)
	}
	b := make([]byte, BlockSize)
	copy(b, data)
	s.Writes[block] = b
	s.Card.Blocks[block] = b
	return nil
}

func (s *Simulator) ReadPage(page int) ([]byte, error) {
	if s.Card == nil || s.Card.Type == Classic || page >= len(s.Card.Pages) {
		return nil, fmt.Errorf("page %d not readable", page)
	}
	out := make([]byte, PageSize)
	copy(out, s.Card.Pages[page])
	return out, nil
}

func (s *Simulator) EnterTargetMode(Target) error {
	s.targetMode = true
	s.detects = 0
	return nil
}

func (s *Simulator) DetectExternalReader() (bool, error) {
	if !s.targetMode {
		return false, fmt.Errorf("not in target mode")
	}
	s.detects++
	return s.ReaderAfter > 0 && s.detects >= s.ReaderAfter, nil
}

func (s *Simulator) ReleaseTargetMode() error {
	s.targetMode = false
	return nil
}

// TargetMode reports whether the simulator currently answers as a card.
func (s *Simulator) TargetMode() bool {
	return s.targetMode
}

// Attempts counts authentications tried against a sector.
func (s *Simulator) Attempts(sector int) int {
	n := 0
	for _, a := range s.AuthLog {
		if s.Card.Geometry.SectorOf(a.Block) == sector && a.Block < s.Card.Geometry.TotalBlocks() {
			n++
		}
	}
	return n
}

func (s *Simulator) checkAuth(block int) error {
	if s.Card == nil {
		return NoCardErr
	}
	if s.authed < 0 || s.Card.Geometry.SectorOf(block) != s.authed {
		return fmt.Errorf("block %d: %w", block, ErrAuth)
	}
	return nil
}
