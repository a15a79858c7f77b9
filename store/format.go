package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/callebjorkell/nfc-multitool/nfc"
)

// Extension marks card dumps in the cards directory.
const Extension = ".nfc"

var (
	ErrCorrupt  = errors.New("corrupt card dump")
	ErrTooLarge = errors.New("card record exceeds capacity")
)

// CardRecord is one captured card.
type CardRecord struct {
	UID     nfc.UID
	Type    nfc.CardType
	Payload []byte
}

func (c CardRecord) Validate() error {
	if len(c.UID) > nfc.MaxUIDLen {
		return fmt.Errorf("%w: uid of %d bytes", ErrTooLarge, len(c.UID))
	}
	if len(c.Payload) > nfc.MaxPayload {
		return fmt.Errorf("%w: payload of %d bytes", ErrTooLarge, len(c.Payload))
	}
	return nil
}

// FileName derives the dump name from the UID. Hex keeps two characters per
// byte, so UIDs of different content or length never share a name.
func FileName(uid nfc.UID) string {
	return uid.Hex() + Extension
}

// Marshal encodes a record as
//
//	uidLength(1) uid(uidLength) cardType(1) dataLength(2, LE) data(dataLength)
func Marshal(c CardRecord) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(c.UID)+len(c.Payload)))
	buf.WriteByte(byte(len(c.UID)))
	buf.Write(c.UID)
	buf.WriteByte(byte(c.Type))
	binary.Write(buf, binary.LittleEndian, uint16(len(c.Payload)))
	buf.Write(c.Payload)
	return buf.Bytes(), nil
}

// Unmarshal decodes a dump. Every length is checked against the capacity
// before the bytes it announces are read, and a dump that is short or
// carries anything after its data is rejected.
func Unmarshal(r io.Reader) (CardRecord, error) {
	var c CardRecord
	var hdr [1]byte

	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return c, fmt.Errorf("%w: uid length: %v", ErrCorrupt, err)
	}
	uidLen := int(hdr[0])
	if uidLen > nfc.MaxUIDLen {
		return c, fmt.Errorf("%w: uid length %d", ErrCorrupt, uidLen)
	}
	uid := make([]byte, uidLen)
	if _, err := io.ReadFull(r, uid); err != nil {
		return c, fmt.Errorf("%w: uid: %v", ErrCorrupt, err)
	}

	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return c, fmt.Errorf("%w: card type: %v", ErrCorrupt, err)
	}
	cardType := nfc.CardType(hdr[0])
	if cardType > nfc.NTAG {
		return c, fmt.Errorf("%w: card type %d", ErrCorrupt, cardType)
	}

	var dataLen uint16
	if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return c, fmt.Errorf("%w: data length: %v", ErrCorrupt, err)
	}
	if int(dataLen) > nfc.MaxPayload {
		return c, fmt.Errorf("%w: data length %d", ErrCorrupt, dataLen)
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return c, fmt.Errorf("%w: data: %v", ErrCorrupt, err)
	}

	if n, _ := r.Read(hdr[:]); n > 0 {
		return c, fmt.Errorf("%w: trailing bytes", ErrCorrupt)
	}

	c.UID = nfc.UID(uid)
	c.Type = cardType
	c.Payload = data
	return c, nil
}
