package nfc

type CardType byte

const (
	Unknown    CardType = 0
	Classic    CardType = 1
	Ultralight CardType = 2
	NTAG       CardType = 3
)

func (c CardType) String() string {
	switch c {
	case Classic:
		return "Mifare Classic"
	case Ultralight:
		return "Mifare UL"
	case NTAG:
		return "NTAG"
	default:
		return "Unknown"
	}
}

// CandidateKeys are the well known keys tried against every sector, in order.
var CandidateKeys = []Key{
	{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, // transport default
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}, // MAD key A
	{0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5},
	{0x4D, 0x3A, 0x99, 0xC3, 0x51, 0xDD}, // hotel systems
	{0x1A, 0x98, 0x2C, 0x7E, 0x45, 0x9A},
	{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7}, // NDEF
	{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
	{0x71, 0x4C, 0x5C, 0x88, 0x6E, 0x97},
	{0x58, 0x7E, 0xE5, 0xF9, 0x35, 0x0F},
	{0xA0, 0x47, 0x8C, 0xC3, 0x90, 0x91},
	{0x53, 0x3C, 0xB6, 0xC7, 0x23, 0xF6},
	{0x8F, 0xD0, 0xA4, 0xF2, 0x56, 0xE9},
}

// DefaultKey is what the reader and writer authenticate with.
var DefaultKey = CandidateKeys[0]

var issuers = map[byte]string{
	0x04: "NXP",
	0x05: "Infineon",
	0x07: "Texas Instruments",
}

// Issuer looks up the manufacturer from the first UID byte.
func Issuer(uid UID) string {
	if len(uid) == 0 {
		return "Unknown"
	}
	if name, ok := issuers[uid[0]]; ok {
		return name
	}
	return "Unknown"
}
