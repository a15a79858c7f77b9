package nfc

// PN532 user manual: https://www.nxp.com/docs/en/user-guide/141520.pdf

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	pn532HostToPN  = 0xD4
	pn532PNToHost  = 0xD5
	cmdSAMConfig   = 0x14
	cmdInListPT    = 0x4A
	cmdInDataExch  = 0x40
	cmdInRelease   = 0x52
	cmdTgInitAsTgt = 0x8C
	cmdGetFirmware = 0x02

	mifareRead  = 0x30
	mifareWrite = 0xA0

	pn532AckTimeout = 50 * time.Millisecond
	pn532Timeout    = 1 * time.Second
)

var pn532Ack = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

type pn532 struct {
	port     serial.Port
	target   *Target
	reselect bool
	// listening is set between TgInitAsTarget and its response.
	listening bool
	rx        []byte
}

// OpenPN532 connects to a PN532 breakout in HSU mode.
func OpenPN532(portName string, baud int) (Device, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", portName, err)
	}
	p := &pn532{port: port}

	// long preamble wakes the chip up from power down
	wake := append([]byte{0x55, 0x55, 0x00, 0x00, 0x00}, make([]byte, 11)...)
	if _, err := port.Write(wake); err != nil {
		port.Close()
		return nil, err
	}

	fw, err := p.command(cmdGetFirmware, nil, pn532Timeout)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("pn532 not answering: %w", err)
	}
	if len(fw) >= 4 {
		log.Infof("Found PN5%02x, firmware %d.%d", fw[0], fw[1], fw[2])
	}

	// normal mode, no virtual card timeout, no IRQ
	if _, err := p.command(cmdSAMConfig, []byte{0x01, 0x14, 0x01}, pn532Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("SAM configuration: %w", err)
	}
	return p, nil
}

func (p *pn532) Close() error {
	return p.port.Close()
}

func (p *pn532) PollForTarget(timeout time.Duration) (*Target, error) {
	if err := p.ReleaseTargetMode(); err != nil {
		log.Debugf("Release target mode: %v", err)
	}
	// one target, 106 kbps type A
	res, err := p.command(cmdInListPT, []byte{0x01, 0x00}, timeout)
	if err != nil {
		return nil, NoCardErr
	}
	if len(res) < 1 || res[0] == 0 {
		return nil, NoCardErr
	}
	// NbTg, Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID
	if len(res) < 6 {
		return nil, fmt.Errorf("short target answer: % x", res)
	}
	idLen := int(res[5])
	if idLen > MaxUIDLen || len(res) < 6+idLen {
		return nil, fmt.Errorf("bad NFCID length %d", idLen)
	}
	t := &Target{
		ATQA: uint16(res[2])<<8 | uint16(res[3]),
		SAK:  res[4],
		UID:  UID(bytes.Clone(res[6 : 6+idLen])),
	}
	p.target = t
	p.reselect = false
	return t, nil
}

func (p *pn532) Authenticate(uid UID, block int, keyType KeyType, key Key) error {
	if p.reselect {
		// a failed authentication halts the card, wake it up again
		if _, err := p.PollForTarget(pn532Timeout); err != nil {
			return err
		}
	}
	if len(uid) < 4 {
		return fmt.Errorf("uid %v too short to authenticate", uid)
	}
	data := []byte{byte(keyType), byte(block)}
	data = append(data, key[:]...)
	data = append(data, uid[len(uid)-4:]...)
	if err := p.exchange(data, nil); err != nil {
		p.reselect = true
		if errors.Is(err, errTargetStatus) {
			return ErrAuth
		}
		return err
	}
	return nil
}

func (p *pn532) ReadBlock(block int) ([]byte, error) {
	var out []byte
	if err := p.exchange([]byte{mifareRead, byte(block)}, &out); err != nil {
		return nil, err
	}
	if len(out) < BlockSize {
		return nil, fmt.Errorf("block %d: short read", block)
	}
	return out[:BlockSize], nil
}

func (p *pn532) WriteBlock(block int, data []byte) error {
	if len(data) != BlockSize {
		return fmt.Errorf("data must be %d bytes", BlockSize)
	}
	return p.exchange(append([]byte{mifareWrite, byte(block)}, data...), nil)
}

func (p *pn532) ReadPage(page int) ([]byte, error) {
	var out []byte
	if err := p.exchange([]byte{mifareRead, byte(page)}, &out); err != nil {
		return nil, err
	}
	if len(out) < PageSize {
		return nil, fmt.Errorf("page %d: short read", page)
	}
	return out[:PageSize], nil
}

// EnterTargetMode sends TgInitAsTarget and returns as soon as the chip has
// acknowledged it. The answer only comes once a reader has activated us and
// is picked up by DetectExternalReader.
func (p *pn532) EnterTargetMode(t Target) error {
	if _, err := p.command(cmdInRelease, []byte{0x00}, pn532Timeout); err != nil {
		log.Debugf("InRelease: %v", err)
	}
	nfcid := []byte{0x00, 0x00, 0x00}
	if len(t.UID) >= 4 {
		copy(nfcid, t.UID[1:4])
	}
	params := []byte{0x05, 0x04, 0x00} // PICC only, passive only, SENS_RES
	params = append(params, nfcid...)
	params = append(params, 0x20)                // SEL_RES, ISO 14443-4 compliant
	params = append(params, make([]byte, 18)...) // FeliCa params
	params = append(params, make([]byte, 10)...) // NFCID3t
	params = append(params, 0x00, 0x00)          // no general bytes, no historical bytes

	if err := p.send(cmdTgInitAsTgt, params); err != nil {
		return err
	}
	if err := p.readAck(pn532AckTimeout * 4); err != nil {
		return err
	}
	p.listening = true
	p.rx = p.rx[:0]
	return nil
}

func (p *pn532) DetectExternalReader() (bool, error) {
	if !p.listening {
		return false, errors.New("not in target mode")
	}
	res, err := p.readResponse(cmdTgInitAsTgt, 10*time.Millisecond)
	if err != nil {
		if errors.Is(err, errFrameTimeout) {
			return false, nil
		}
		return false, err
	}
	p.listening = false
	log.Debugf("Activated as target, mode %02x", res[0])
	return true, nil
}

// ReleaseTargetMode aborts a pending TgInitAsTarget. An ACK frame from the
// host makes the chip drop the command it is working on.
func (p *pn532) ReleaseTargetMode() error {
	if !p.listening {
		return nil
	}
	p.listening = false
	p.rx = p.rx[:0]
	if _, err := p.port.Write(pn532Ack); err != nil {
		return fmt.Errorf("abort TgInitAsTarget: %w", err)
	}
	log.Debugln("Target mode released")
	return nil
}

var (
	errTargetStatus = errors.New("target returned an error status")
	errFrameTimeout = errors.New("no frame from pn532")
)

// exchange runs InDataExchange against the listed target.
func (p *pn532) exchange(data []byte, out *[]byte) error {
	if p.target == nil {
		return NoCardErr
	}
	res, err := p.command(cmdInDataExch, append([]byte{0x01}, data...), pn532Timeout)
	if err != nil {
		return err
	}
	if len(res) < 1 {
		return errors.New("empty exchange answer")
	}
	if res[0]&0x3F != 0 {
		return fmt.Errorf("%w %02x", errTargetStatus, res[0])
	}
	if out != nil {
		*out = res[1:]
	}
	return nil
}

func (p *pn532) command(cmd byte, params []byte, timeout time.Duration) ([]byte, error) {
	if err := p.send(cmd, params); err != nil {
		return nil, err
	}
	if err := p.readAck(pn532AckTimeout * 4); err != nil {
		return nil, err
	}
	return p.readResponse(cmd, timeout)
}

func (p *pn532) send(cmd byte, params []byte) error {
	body := append([]byte{pn532HostToPN, cmd}, params...)
	frame := []byte{0x00, 0x00, 0xFF, byte(len(body)), byte(-len(body))}
	sum := byte(0)
	for _, b := range body {
		sum += b
	}
	frame = append(frame, body...)
	frame = append(frame, -sum, 0x00)
	_, err := p.port.Write(frame)
	return err
}

func (p *pn532) readAck(timeout time.Duration) error {
	buf, err := p.readAtLeast(len(pn532Ack), timeout)
	if err != nil {
		return err
	}
	i := bytes.Index(buf, pn532Ack)
	if i < 0 {
		return fmt.Errorf("expected ACK, got % x", buf)
	}
	p.rx = append(p.rx[:0], buf[i+len(pn532Ack):]...)
	return nil
}

func (p *pn532) readResponse(cmd byte, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		frame, rest, ok := parseFrame(p.rx)
		progressed := len(rest) < len(p.rx)
		p.rx = rest
		if ok {
			if len(frame) < 2 || frame[0] != pn532PNToHost || frame[1] != cmd+1 {
				return nil, fmt.Errorf("unexpected frame % x", frame)
			}
			return frame[2:], nil
		}
		if progressed {
			continue
		}
		left := time.Until(deadline)
		if left <= 0 {
			return nil, errFrameTimeout
		}
		if err := p.port.SetReadTimeout(left); err != nil {
			return nil, err
		}
		buf := make([]byte, 64)
		n, err := p.port.Read(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errFrameTimeout
		}
		p.rx = append(p.rx, buf[:n]...)
	}
}

func (p *pn532) readAtLeast(n int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := append([]byte(nil), p.rx...)
	tmp := make([]byte, 64)
	for len(buf) < n {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, errFrameTimeout
		}
		if err := p.port.SetReadTimeout(left); err != nil {
			return nil, err
		}
		c, err := p.port.Read(tmp)
		if err != nil {
			return nil, err
		}
		if c == 0 {
			return nil, errFrameTimeout
		}
		buf = append(buf, tmp[:c]...)
	}
	return buf, nil
}

// parseFrame pulls one normal information frame out of buf.
func parseFrame(buf []byte) (frame, rest []byte, ok bool) {
	start := bytes.Index(buf, []byte{0x00, 0xFF})
	if start < 0 || len(buf) < start+4 {
		return nil, buf, false
	}
	l := int(buf[start+2])
	if byte(l)+buf[start+3] != 0 {
		// drop the garbage and let the next read resync
		return nil, buf[start+2:], false
	}
	end := start + 4 + l + 1
	if len(buf) < end {
		return nil, buf, false
	}
	frame = buf[start+4 : start+4+l]
	sum := buf[end-1]
	for _, b := range frame {
		sum += b
	}
	if sum != 0 {
		return nil, buf[end:], false
	}
	rest = buf[end:]
	if len(rest) > 0 && rest[0] == 0x00 {
		rest = rest[1:]
	}
	return frame, rest, true
}
