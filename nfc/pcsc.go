//go:build cgo

package nfc

import (
	"errors"
	"fmt"
	"time"

	"github.com/ebfe/scard"
	log "github.com/sirupsen/logrus"
)

// pcsc drives contactless PC/SC readers through the pseudo APDUs the ACR122U
// and its clones understand.
type pcsc struct {
	ctx    *scard.Context
	reader string
	card   *scard.Card
	uid    UID
}

// OpenPCSC uses the reader at index among the ones PC/SC reports.
func OpenPCSC(index int) (Device, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish PC/SC context: %w", err)
	}
	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("list readers: %w", err)
	}
	if index < 0 || index >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader index %d out of range, %d readers found", index, len(readers))
	}
	log.Infof("Using PC/SC reader %q", readers[index])
	return &pcsc{ctx: ctx, reader: readers[index]}, nil
}

func (p *pcsc) Close() error {
	p.disconnect()
	return p.ctx.Release()
}

func (p *pcsc) PollForTarget(timeout time.Duration) (*Target, error) {
	rs := []scard.ReaderState{{Reader: p.reader, CurrentState: scard.StateUnaware}}
	if err := p.ctx.GetStatusChange(rs, timeout); err != nil {
		if errors.Is(err, scard.ErrTimeout) {
			return nil, NoCardErr
		}
		return nil, err
	}
	if rs[0].EventState&scard.StatePresent == 0 {
		p.disconnect()
		return nil, NoCardErr
	}
	p.disconnect()
	card, err := p.ctx.Connect(p.reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return nil, NoCardErr
	}
	p.card = card

	uid, err := p.transmit([]byte{0xFF, 0xCA, 0x00, 0x00, 0x00})
	if err != nil {
		p.disconnect()
		return nil, err
	}
	if len(uid) > MaxUIDLen {
		p.disconnect()
		return nil, fmt.Errorf("uid of %d bytes", len(uid))
	}
	p.uid = UID(uid)
	return &Target{UID: p.uid, SAK: sakFromATR(rs[0].Atr)}, nil
}

// sakFromATR maps the PC/SC part 3 card name in the ATR back to a SAK.
func sakFromATR(atr []byte) byte {
	if len(atr) < 15 || atr[13] != 0x00 {
		return 0
	}
	switch atr[14] {
	case 0x01:
		return 0x08
	case 0x02:
		return 0x18
	}
	return 0
}

func (p *pcsc) Authenticate(uid UID, block int, keyType KeyType, key Key) error {
	if p.card == nil {
		return NoCardErr
	}
	load := append([]byte{0xFF, 0x82, 0x00, 0x00, 0x06}, key[:]...)
	if _, err := p.transmit(load); err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	auth := []byte{0xFF, 0x86, 0x00, 0x00, 0x05, 0x01, 0x00, byte(block), byte(keyType), 0x00}
	if _, err := p.transmit(auth); err != nil {
		log.Debugf("auth block %d: %v", block, err)
		return ErrAuth
	}
	return nil
}

func (p *pcsc) ReadBlock(block int) ([]byte, error) {
	data, err := p.transmit([]byte{0xFF, 0xB0, 0x00, byte(block), BlockSize})
	if err != nil {
		return nil, err
	}
	if len(data) < BlockSize {
		return nil, fmt.Errorf("block %d: short read", block)
	}
	return data[:BlockSize], nil
}

func (p *pcsc) WriteBlock(block int, data []byte) error {
	if len(data) != BlockSize {
		return fmt.Errorf("data must be %d bytes", BlockSize)
	}
	cmd := append([]byte{0xFF, 0xD6, 0x00, byte(block), BlockSize}, data...)
	_, err := p.transmit(cmd)
	return err
}

func (p *pcsc) ReadPage(page int) ([]byte, error) {
	data, err := p.transmit([]byte{0xFF, 0xB0, 0x00, byte(page), PageSize})
	if err != nil {
		return nil, err
	}
	if len(data) < PageSize {
		return nil, fmt.Errorf("page %d: short read", page)
	}
	return data[:PageSize], nil
}

func (p *pcsc) EnterTargetMode(Target) error {
	return ErrUnsupported
}

func (p *pcsc) DetectExternalReader() (bool, error) {
	return false, ErrUnsupported
}

func (p *pcsc) ReleaseTargetMode() error {
	return nil
}

func (p *pcsc) transmit(cmd []byte) ([]byte, error) {
	if p.card == nil {
		return nil, NoCardErr
	}
	rsp, err := p.card.Transmit(cmd)
	if err != nil {
		return nil, err
	}
	if len(rsp) < 2 {
		return nil, errors.New("invalid response length")
	}
	sw1, sw2 := rsp[len(rsp)-2], rsp[len(rsp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, fmt.Errorf("status %02X %02X", sw1, sw2)
	}
	return rsp[:len(rsp)-2], nil
}

func (p *pcsc) disconnect() {
	if p.card != nil {
		p.card.Disconnect(scard.LeaveCard)
		p.card = nil
	}
}
