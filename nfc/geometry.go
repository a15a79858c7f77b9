package nfc

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// Geometry describes the sector layout of a Mifare Classic card. Sectors below
// 32 hold 4 blocks, the ones above (4K only) hold 16 blocks each and start
// after the 128 blocks of the small sectors.
type Geometry struct {
	Name    string
	Sectors int
}

var (
	Classic1K = Geometry{Name: "1K", Sectors: 16}
	Classic4K = Geometry{Name: "4K", Sectors: 40}
)

const (
	smallSectors      = 32
	smallSectorBlocks = 4
	largeSectorBlocks = 16
	largeSectorBase   = smallSectors * smallSectorBlocks
)

func (g Geometry) BlocksInSector(sector int) int {
	if sector < smallSectors {
		return smallSectorBlocks
	}
	return largeSectorBlocks
}

func (g Geometry) BlockNumber(sector, blockInSector int) int {
	if sector < smallSectors {
		return sector*smallSectorBlocks + blockInSector
	}
	return largeSectorBase + (sector-smallSectors)*largeSectorBlocks + blockInSector
}

// FirstBlock is the block authenticated to test a key for the whole sector.
func (g Geometry) FirstBlock(sector int) int {
	return g.BlockNumber(sector, 0)
}

func (g Geometry) SectorOf(block int) int {
	if block < largeSectorBase {
		return block / smallSectorBlocks
	}
	return smallSectors + (block-largeSectorBase)/largeSectorBlocks
}

func (g Geometry) TrailerBlock(sector int) int {
	return g.BlockNumber(sector, g.BlocksInSector(sector)-1)
}

func (g Geometry) IsTrailer(block int) bool {
	return g.TrailerBlock(g.SectorOf(block)) == block
}

func (g Geometry) TotalBlocks() int {
	return g.BlockNumber(g.Sectors, 0)
}

// ProbeGeometry tells a 1K card from a 4K one. A reported SAK decides on its
// own; otherwise a card that accepts an authentication in sector 32 is
// taken to be a 4K card.
func ProbeGeometry(dev Device, t Target, keys []Key) Geometry {
	if t.SAK != 0 {
		if t.SAK&0x18 == 0x18 {
			return Classic4K
		}
		return Classic1K
	}
	block := Classic4K.FirstBlock(smallSectors)
	for _, k := range keys {
		err := dev.Authenticate(t.UID, block, KeyA, k)
		if err == nil {
			log.Debugf("Card %v answered in sector %d, treating as 4K", t.UID, smallSectors)
			return Classic4K
		}
		if !errors.Is(err, ErrAuth) {
			break
		}
	}
	return Classic1K
}
