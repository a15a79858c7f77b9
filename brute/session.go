package brute

import (
	"time"

	"github.com/callebjorkell/nfc-multitool/nfc"
)

// Session is the state of one key recovery run. The per sector slices are
// sized by the geometry probed when the session was created.
type Session struct {
	TargetUID         nfc.UID
	Geometry          nfc.Geometry
	SectorCount       int
	CurrentSector     int
	CurrentKeyIndex   int
	FoundKey          []nfc.Key
	KeyFound          []bool
	TotalAttempts     int
	SuccessfulSectors int
	StartTime         time.Time
}

func NewSession(uid nfc.UID, g nfc.Geometry, start time.Time) *Session {
	return &Session{
		TargetUID:   append(nfc.UID(nil), uid...),
		Geometry:    g,
		SectorCount: g.Sectors,
		FoundKey:    make([]nfc.Key, g.Sectors),
		KeyFound:    make([]bool, g.Sectors),
		StartTime:   start,
	}
}

// Keys returns the recovered keys by sector.
func (s *Session) Keys() map[int]nfc.Key {
	keys := map[int]nfc.Key{}
	for sector, found := range s.KeyFound {
		if found {
			keys[sector] = s.FoundKey[sector]
		}
	}
	return keys
}

func (s *Session) done() bool {
	return s.CurrentSector >= s.SectorCount
}

// Progress is a snapshot handed out while the search runs.
type Progress struct {
	Sector   int
	Sectors  int
	KeyIndex int
	Keys     int
	Found    int
	Attempts int
}

// Summary is the outcome of a finished or canceled run.
type Summary struct {
	UID        nfc.UID
	Sectors    int
	Found      int
	Attempts   int
	Elapsed    time.Duration
	Canceled   bool
	Keys       map[int]nfc.Key
	ReportFile string
}
