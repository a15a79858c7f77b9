package nfc

import (
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	NoCardErr      = errors.New("no card detected")
	ErrAuth        = errors.New("authentication failed")
	ErrUnsupported = errors.New("operation not supported by reader")
)

const (
	BlockSize = 16
	PageSize  = 4
	MaxUIDLen = 10
)

type KeyType byte

const (
	KeyA KeyType = 0x60
	KeyB KeyType = 0x61
)

// Key is a 6 byte Mifare Classic sector key.
type Key [6]byte

func (k Key) String() string {
	return colonHex(k[:])
}

func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil {
		return k, err
	}
	if len(b) != len(k) {
		return k, errors.New("key must be 6 bytes")
	}
	copy(k[:], b)
	return k, nil
}

// UID is the identifier a card answers with during anticollision, 4 to 10 bytes.
type UID []byte

// String gives the colon separated form used on screen and in reports.
func (u UID) String() string {
	return colonHex(u)
}

// Hex gives the upper case form without separators.
func (u UID) Hex() string {
	return strings.ToUpper(hex.EncodeToString(u))
}

func ParseUID(s string) (UID, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxUIDLen {
		return nil, errors.New("uid longer than 10 bytes")
	}
	return UID(b), nil
}

func colonHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{v}))
	}
	return strings.Join(parts, ":")
}

// Target is a card found in the field. SAK is zero when the reader does not report it.
type Target struct {
	UID  UID
	ATQA uint16
	SAK  byte
}

// Classic tells Classic cards from the Ultralight family by their SAK and,
// for readers that don't report one, their ATQA.
func (t Target) Classic() bool {
	if t.SAK != 0 {
		return t.SAK&0x08 != 0
	}
	return t.ATQA != 0x0044
}

// Device is the transceiver the tool drives. All calls are synchronous and
// none of them may be called from more than one place at a time.
type Device interface {
	io.Closer
	// PollForTarget returns NoCardErr if nothing answered within the timeout.
	PollForTarget(timeout time.Duration) (*Target, error)
	// Authenticate returns ErrAuth when the card rejects the key.
	Authenticate(uid UID, block int, keyType KeyType, key Key) error
	ReadBlock(block int) ([]byte, error)
	WriteBlock(block int, data []byte) error
	ReadPage(page int) ([]byte, error)
	// EnterTargetMode makes the reader answer as the given card.
	EnterTargetMode(t Target) error
	DetectExternalReader() (bool, error)
	// ReleaseTargetMode stops answering as a card. Outside target mode it
	// does nothing.
	ReleaseTargetMode() error
}
