//go:build pi

package nfc

// MFRC522 spec can be found here: https://www.nxp.com/docs/en/data-sheet/MFRC522.pdf
// MIFARE Classic command set: https://www.nxp.com/docs/en/data-sheet/MF1S50YYX_V1.pdf

import (
	"errors"
	"fmt"
	"time"

	"github.com/ecc1/spi"
	"github.com/jdevelop/golang-rpi-extras/rf522/commands"
	"github.com/jdevelop/gpio"
	rpio "github.com/jdevelop/gpio/rpi"
	log "github.com/sirupsen/logrus"
)

const (
	status2Reg  = 0x08
	mfCrypto1On = 0x08

	piccReqA     = 0x26
	piccAnticoll = 0x20
	piccSelect   = 0x70
	cascadeTag   = 0x88
	mifareAck    = 0x0A
)

var cascadeLevels = []byte{0x93, 0x95, 0x97}

type rfid struct {
	resetPin    gpio.Pin
	antennaGain int
	spiDev      *spi.Device
	target      *Target
	reselect    bool
}

// OpenRC522 opens an MFRC522 on /dev/spidev<bus>.<device>.
func OpenRC522(busID, deviceID, maxSpeed, resetPin int) (Device, error) {
	spiDev, err := spi.Open(fmt.Sprintf("/dev/spidev%d.%d", busID, deviceID), maxSpeed, 0)
	if err != nil {
		return nil, err
	}
	if err := spiDev.SetLSBFirst(false); err != nil {
		spiDev.Close()
		return nil, err
	}
	if err := spiDev.SetBitsPerWord(8); err != nil {
		spiDev.Close()
		return nil, err
	}

	dev := &rfid{
		spiDev:      spiDev,
		antennaGain: 7,
	}
	pin, err := rpio.OpenPin(resetPin, gpio.ModeOutput)
	if err != nil {
		spiDev.Close()
		return nil, err
	}
	dev.resetPin = pin
	dev.resetPin.Set()

	if err := dev.init(); err != nil {
		spiDev.Close()
		return nil, err
	}
	return dev, nil
}

func (r *rfid) Close() error {
	return r.spiDev.Close()
}

func (r *rfid) PollForTarget(timeout time.Duration) (*Target, error) {
	deadline := time.Now().Add(timeout)
	for {
		t, err := r.selectCard()
		if err == nil {
			r.target = t
			r.reselect = false
			return t, nil
		}
		log.Debugf("rc522 poll: %v", err)
		if time.Now().After(deadline) {
			return nil, NoCardErr
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (r *rfid) Authenticate(uid UID, block int, keyType KeyType, key Key) error {
	if r.reselect {
		// the card halts after a rejected key and has to be selected again
		if err := r.clearBitmask(status2Reg, mfCrypto1On); err != nil {
			return err
		}
		t, err := r.selectCard()
		if err != nil {
			return err
		}
		r.target = t
		r.reselect = false
	}
	if len(uid) < 4 {
		return fmt.Errorf("uid %v too short to authenticate", uid)
	}
	buf := []byte{byte(keyType), byte(block)}
	buf = append(buf, key[:]...)
	buf = append(buf, uid[len(uid)-4:]...)
	if _, _, err := r.cardWrite(commands.PCD_AUTHENT, buf); err != nil {
		r.reselect = true
		return ErrAuth
	}
	status, err := r.devRead(status2Reg)
	if err != nil {
		return err
	}
	if status&mfCrypto1On == 0 {
		r.reselect = true
		return ErrAuth
	}
	return nil
}

func (r *rfid) ReadBlock(block int) ([]byte, error) {
	cmd, err := r.withCRC([]byte{mifareRead, byte(block)})
	if err != nil {
		return nil, err
	}
	data, _, err := r.cardWrite(commands.PCD_TRANSCEIVE, cmd)
	if err != nil {
		return nil, err
	}
	if len(data) < BlockSize {
		return nil, fmt.Errorf("block %d: got %d bytes", block, len(data))
	}
	return data[:BlockSize], nil
}

func (r *rfid) WriteBlock(block int, data []byte) error {
	if len(data) != BlockSize {
		return fmt.Errorf("data must be %d bytes", BlockSize)
	}
	cmd, err := r.withCRC([]byte{mifareWrite, byte(block)})
	if err != nil {
		return err
	}
	if err := r.expectAck(cmd); err != nil {
		return fmt.Errorf("block %d write command: %w", block, err)
	}
	payload, err := r.withCRC(data)
	if err != nil {
		return err
	}
	if err := r.expectAck(payload); err != nil {
		return fmt.Errorf("block %d write data: %w", block, err)
	}
	return nil
}

func (r *rfid) ReadPage(page int) ([]byte, error) {
	// READ returns four pages starting at the requested one
	data, err := r.ReadBlock(page)
	if err != nil {
		return nil, err
	}
	return data[:PageSize], nil
}

// The MFRC522 can't act as a card.
func (r *rfid) EnterTargetMode(Target) error {
	return ErrUnsupported
}

func (r *rfid) DetectExternalReader() (bool, error) {
	return false, ErrUnsupported
}

func (r *rfid) ReleaseTargetMode() error {
	return nil
}

func (r *rfid) expectAck(cmd []byte) error {
	back, bits, err := r.cardWrite(commands.PCD_TRANSCEIVE, cmd)
	if err != nil {
		return err
	}
	if bits != 4 || len(back) < 1 || back[0]&0x0F != mifareAck {
		return fmt.Errorf("no ACK (%d bits)", bits)
	}
	return nil
}

// selectCard runs REQA, anticollision and select through all cascade levels.
func (r *rfid) selectCard() (*Target, error) {
	if err := r.init(); err != nil {
		return nil, err
	}
	atqa, err := r.request()
	if err != nil {
		return nil, err
	}
	var uid UID
	var sak byte
	for _, level := range cascadeLevels {
		part, err := r.antiColl(level)
		if err != nil {
			return nil, err
		}
		cmd, err := r.withCRC(append([]byte{level, piccSelect}, part...))
		if err != nil {
			return nil, err
		}
		back, _, err := r.cardWrite(commands.PCD_TRANSCEIVE, cmd)
		if err != nil {
			return nil, err
		}
		if len(back) < 1 {
			return nil, errors.New("no SAK")
		}
		sak = back[0]
		if part[0] == cascadeTag {
			uid = append(uid, part[1:4]...)
		} else {
			uid = append(uid, part[:4]...)
		}
		if sak&0x04 == 0 {
			break
		}
	}
	return &Target{UID: uid, ATQA: atqa, SAK: sak}, nil
}

func (r *rfid) init() (err error) {
	if err = r.reset(); err != nil {
		return
	}
	// timer: auto start, ~25ms timeout
	for _, w := range [][2]byte{{0x2A, 0x8D}, {0x2B, 0x3E}, {0x2D, 30}, {0x2C, 0}, {0x15, 0x40}, {0x11, 0x3D}} {
		if err = r.devWrite(int(w[0]), w[1]); err != nil {
			return
		}
	}
	if err = r.devWrite(0x26, byte(r.antennaGain)<<4); err != nil {
		return
	}
	return r.setAntenna(true)
}

func (r *rfid) writeSpiData(dataIn []byte) (out []byte, err error) {
	out = make([]byte, len(dataIn))
	copy(out, dataIn)
	err = r.spiDev.Transfer(out)
	return
}

func (r *rfid) devWrite(address int, data byte) error {
	newData := [2]byte{(byte(address) << 1) & 0x7E, data}
	_, err := r.writeSpiData(newData[:])
	return err
}

func (r *rfid) devRead(address int) (byte, error) {
	data := [2]byte{((byte(address) << 1) & 0x7E) | 0x80, 0}
	rb, err := r.writeSpiData(data[:])
	if err != nil {
		return 0, err
	}
	return rb[1], nil
}

func (r *rfid) setBitmask(address, mask int) error {
	current, err := r.devRead(address)
	if err != nil {
		return err
	}
	return r.devWrite(address, current|byte(mask))
}

func (r *rfid) clearBitmask(address, mask int) error {
	current, err := r.devRead(address)
	if err != nil {
		return err
	}
	return r.devWrite(address, current&^byte(mask))
}

func (r *rfid) reset() error {
	return r.devWrite(commands.CommandReg, commands.PCD_RESETPHASE)
}

func (r *rfid) setAntenna(state bool) error {
	if !state {
		return r.clearBitmask(commands.TxControlReg, 0x03)
	}
	current, err := r.devRead(commands.TxControlReg)
	if err != nil {
		return err
	}
	if current&0x03 == 0 {
		return r.setBitmask(commands.TxControlReg, 0x03)
	}
	return nil
}

// cardWrite pushes a command through the FIFO and collects the answer.
// backLength is in bits.
func (r *rfid) cardWrite(command byte, data []byte) (backData []byte, backLength int, err error) {
	backLength = -1
	irqEn := byte(0x00)
	irqWait := byte(0x00)

	switch command {
	case commands.PCD_AUTHENT:
		irqEn = 0x12
		irqWait = 0x10
	case commands.PCD_TRANSCEIVE:
		irqEn = 0x77
		irqWait = 0x30
	}

	r.devWrite(commands.CommIEnReg, irqEn|0x80)
	r.clearBitmask(commands.CommIrqReg, 0x80)
	r.setBitmask(commands.FIFOLevelReg, 0x80)
	r.devWrite(commands.CommandReg, commands.PCD_IDLE)

	for _, v := range data {
		r.devWrite(commands.FIFODataReg, v)
	}

	r.devWrite(commands.CommandReg, command)

	if command == commands.PCD_TRANSCEIVE {
		r.setBitmask(commands.BitFramingReg, 0x80)
	}

	i := 2000
	n := byte(0)
	for ; i > 0; i-- {
		n, err = r.devRead(commands.CommIrqReg)
		if err != nil {
			return
		}
		if n&(irqWait|1) != 0 {
			break
		}
	}

	r.clearBitmask(commands.BitFramingReg, 0x80)

	if i == 0 {
		err = errors.New("can't read data after 2000 loops")
		return
	}

	if d, err1 := r.devRead(commands.ErrorReg); err1 != nil || d&0x1B != 0 {
		if err1 == nil {
			err1 = fmt.Errorf("error register %02x", d)
		}
		err = err1
		return
	}

	if n&irqEn&0x01 == 1 {
		err = errors.New("timer expired")
		return
	}

	if command != commands.PCD_TRANSCEIVE {
		return
	}

	n, err = r.devRead(commands.FIFOLevelReg)
	if err != nil {
		return
	}
	lastBits, err := r.devRead(commands.ControlReg)
	if err != nil {
		return
	}
	lastBits &= 0x07
	if lastBits != 0 {
		backLength = (int(n)-1)*8 + int(lastBits)
	} else {
		backLength = int(n) * 8
	}

	if n == 0 {
		n = 1
	}
	if n > BlockSize+2 {
		n = BlockSize + 2
	}

	for i := byte(0); i < n; i++ {
		v, err1 := r.devRead(commands.FIFODataReg)
		if err1 != nil {
			err = err1
			return
		}
		backData = append(backData, v)
	}
	return
}

func (r *rfid) request() (uint16, error) {
	if err := r.devWrite(commands.BitFramingReg, 0x07); err != nil {
		return 0, err
	}
	back, backBits, err := r.cardWrite(commands.PCD_TRANSCEIVE, []byte{piccReqA})
	if err != nil {
		return 0, NoCardErr
	}
	if backBits != 0x10 || len(back) < 2 {
		return 0, fmt.Errorf("wrong number of bits %d", backBits)
	}
	return uint16(back[1])<<8 | uint16(back[0]), nil
}

// antiColl returns the four UID bytes of one cascade level plus their BCC.
func (r *rfid) antiColl(level byte) ([]byte, error) {
	if err := r.devWrite(commands.BitFramingReg, 0x00); err != nil {
		return nil, err
	}
	backData, _, err := r.cardWrite(commands.PCD_TRANSCEIVE, []byte{level, piccAnticoll})
	if err != nil {
		return nil, err
	}
	if len(backData) != 5 {
		return nil, fmt.Errorf("anticollision answer has %d bytes, expected 5", len(backData))
	}
	bcc := byte(0)
	for _, v := range backData[:4] {
		bcc ^= v
	}
	if bcc != backData[4] {
		return nil, fmt.Errorf("BCC mismatch, expected %02x actual %02x", bcc, backData[4])
	}
	return backData, nil
}

func (r *rfid) withCRC(data []byte) ([]byte, error) {
	crc, err := r.crc(data)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), data...), crc...), nil
}

func (r *rfid) crc(inData []byte) ([]byte, error) {
	if err := r.clearBitmask(commands.DivIrqReg, 0x04); err != nil {
		return nil, err
	}
	if err := r.setBitmask(commands.FIFOLevelReg, 0x80); err != nil {
		return nil, err
	}
	for _, v := range inData {
		r.devWrite(commands.FIFODataReg, v)
	}
	if err := r.devWrite(commands.CommandReg, commands.PCD_CALCCRC); err != nil {
		return nil, err
	}
	for i := byte(0xFF); i > 0; i-- {
		n, err := r.devRead(commands.DivIrqReg)
		if err != nil {
			return nil, err
		}
		if n&0x04 > 0 {
			break
		}
	}
	lsb, err := r.devRead(commands.CRCResultRegL)
	if err != nil {
		return nil, err
	}
	msb, err := r.devRead(commands.CRCResultRegM)
	if err != nil {
		return nil, err
	}
	return []byte{lsb, msb}, nil
}
