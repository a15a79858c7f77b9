package nfc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

var testUID = UID{0x04, 0xA1, 0xB2, 0xC3}

func TestBlockNumbers(t *testing.T) {
	tests := []struct {
		name          string
		sector, block int
		want          int
	}{
		{"first block", 0, 0, 0},
		{"sector 1 trailer", 1, 3, 7},
		{"last small sector", 31, 0, 124},
		{"first large sector", 32, 0, 128},
		{"first large sector trailer", 32, 15, 143},
		{"second large sector", 33, 0, 144},
		{"last large sector", 39, 0, 240},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classic4K.BlockNumber(tc.sector, tc.block)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.sector, Classic4K.SectorOf(got))
		})
	}
}

func TestTrailers(t *testing.T) {
	assert.True(t, Classic1K.IsTrailer(3))
	assert.True(t, Classic1K.IsTrailer(63))
	assert.False(t, Classic1K.IsTrailer(4))
	assert.True(t, Classic4K.IsTrailer(143))
	assert.False(t, Classic4K.IsTrailer(131))
	assert.Equal(t, 64, Classic1K.TotalBlocks())
	assert.Equal(t, 256, Classic4K.TotalBlocks())
}

func TestProbeGeometry(t *testing.T) {
	t.Run("from SAK", func(t *testing.T) {
		sim := NewSimulator(NewClassicCard(testUID, Classic4K))
		assert.Equal(t, Classic4K, ProbeGeometry(sim, sim.Card.Target, CandidateKeys))
		assert.Empty(t, sim.AuthLog)
	})
	t.Run("from sector 32 without SAK", func(t *testing.T) {
		card := NewClassicCard(testUID, Classic4K)
		card.Target.SAK = 0
		sim := NewSimulator(card)
		assert.Equal(t, Classic4K, ProbeGeometry(sim, card.Target, CandidateKeys))
	})
	t.Run("1K without SAK", func(t *testing.T) {
		card := NewClassicCard(testUID, Classic1K)
		card.Target.SAK = 0
		sim := NewSimulator(card)
		assert.Equal(t, Classic1K, ProbeGeometry(sim, card.Target, CandidateKeys))
		assert.Len(t, sim.AuthLog, len(CandidateKeys))
	})
}

func TestReadCascade(t *testing.T) {
	t.Run("classic", func(t *testing.T) {
		sim := NewSimulator(NewClassicCard(testUID, Classic1K))
		p, data, err := ReadCascade(sim, sim.Card.Target)
		require.NoError(t, err)
		assert.Equal(t, Classic, p.Type())
		assert.Len(t, data, MaxPayload)
		assert.Equal(t, byte(5), data[5*BlockSize])
	})
	t.Run("classic keeps block positions", func(t *testing.T) {
		card := NewClassicCard(testUID, Classic1K)
		delete(card.Keys, 1)
		delete(card.Keys, 15)
		sim := NewSimulator(card)
		_, data, err := ReadCascade(sim, card.Target)
		require.NoError(t, err)
		assert.Len(t, data, 15*4*BlockSize)
		assert.Equal(t, make([]byte, BlockSize), data[4*BlockSize:5*BlockSize])
		assert.Equal(t, byte(8), data[8*BlockSize])
	})
	t.Run("ultralight", func(t *testing.T) {
		sim := NewSimulator(NewPageCard(UID{0x04, 1, 2, 3, 4, 5, 6}, Ultralight, 16))
		p, data, err := ReadCascade(sim, sim.Card.Target)
		require.NoError(t, err)
		assert.Equal(t, Ultralight, p.Type())
		assert.Len(t, data, 64)
	})
	t.Run("ntag stops at first unreadable page", func(t *testing.T) {
		sim := NewSimulator(NewPageCard(UID{0x04, 1, 2, 3, 4, 5, 6}, NTAG, 40))
		_, data, err := ReadCascade(sim, sim.Card.Target)
		require.NoError(t, err)
		// the Ultralight profile reads first and already finds data
		assert.Len(t, data, 64)
	})
	t.Run("nothing readable", func(t *testing.T) {
		card := NewClassicCard(testUID, Classic1K)
		card.Keys = map[int]Key{}
		sim := NewSimulator(card)
		_, _, err := ReadCascade(sim, card.Target)
		assert.Error(t, err)
	})
}

func TestClassicWrite(t *testing.T) {
	dump := make([]byte, MaxPayload)
	for i := range dump {
		dump[i] = 0xEE
	}

	t.Run("skips manufacturer block and trailers", func(t *testing.T) {
		sim := NewSimulator(NewClassicCard(testUID, Classic1K))
		require.NoError(t, Classic1KProfile.Write(sim, sim.Card.Target, dump))
		assert.NotContains(t, sim.Writes, 0)
		for s := 0; s < 16; s++ {
			assert.NotContains(t, sim.Writes, Classic1K.TrailerBlock(s))
		}
		assert.Len(t, sim.Writes, 64-1-16)
	})
	t.Run("aborts on the first failure", func(t *testing.T) {
		sim := NewSimulator(NewClassicCard(testUID, Classic1K))
		delete(sim.Card.Keys, 2)
		err := Classic1KProfile.Write(sim, sim.Card.Target, dump)
		assert.ErrorIs(t, err, ErrAuth)
		assert.NotContains(t, sim.Writes, 9)
	})
	t.Run("write not acknowledged", func(t *testing.T) {
		sim := NewSimulator(NewClassicCard(testUID, Classic1K))
		sim.FailWrite[5] = true
		assert.Error(t, Classic1KProfile.Write(sim, sim.Card.Target, dump))
		assert.NotContains(t, sim.Writes, 6)
	})
	t.Run("unread blocks are left alone", func(t *testing.T) {
		source := NewClassicCard(testUID, Classic1K)
		delete(source.Keys, 2)
		_, captured, err := ReadCascade(NewSimulator(source), source.Target)
		require.NoError(t, err)

		sim := NewSimulator(NewClassicCard(UID{0x04, 9, 9, 9}, Classic1K))
		require.NoError(t, Classic1KProfile.Write(sim, sim.Card.Target, captured))
		for b := 8; b < 11; b++ {
			assert.NotContains(t, sim.Writes, b, "block %d", b)
			assert.Equal(t, byte(b), sim.Card.Blocks[b][0])
		}
		assert.Len(t, sim.Writes, 64-1-16-3)
		assert.Equal(t, byte(12), sim.Writes[12][0])
	})
	t.Run("page cards are not written", func(t *testing.T) {
		sim := NewSimulator(NewPageCard(testUID, NTAG, 45))
		assert.ErrorIs(t, NTAGProfile.Write(sim, sim.Card.Target, dump), ErrUnsupported)
	})
}

func TestTargetClassic(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   bool
	}{
		{"1K", NewClassicCard(testUID, Classic1K).Target, true},
		{"4K", NewClassicCard(testUID, Classic4K).Target, true},
		{"ultralight", NewPageCard(testUID, Ultralight, 16).Target, false},
		{"ntag sak", Target{UID: testUID, ATQA: 0x0044, SAK: 0x00}, false},
		{"desfire", Target{UID: testUID, ATQA: 0x0344, SAK: 0x20}, false},
		{"no sak reported", Target{UID: testUID, ATQA: 0x0004}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.target.Classic())
		})
	}
}

func TestIssuer(t *testing.T) {
	assert.Equal(t, "NXP", Issuer(testUID))
	assert.Equal(t, "Infineon", Issuer(UID{0x05}))
	assert.Equal(t, "Texas Instruments", Issuer(UID{0x07, 0x01}))
	assert.Equal(t, "Unknown", Issuer(UID{0x99}))
	assert.Equal(t, "Unknown", Issuer(nil))
}

func TestUIDFormatting(t *testing.T) {
	assert.Equal(t, "04:A1:B2:C3", testUID.String())
	assert.Equal(t, "04A1B2C3", testUID.Hex())
	u, err := ParseUID("04:a1:b2:c3")
	require.NoError(t, err)
	assert.Equal(t, testUID, u)
	k, err := ParseKey("A0A1A2A3A4A5")
	require.NoError(t, err)
	assert.Equal(t, CandidateKeys[2], k)
}

func TestParseFrame(t *testing.T) {
	// firmware answer: PN532 v1.6
	buf := []byte{0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07, 0xE8, 0x00}
	frame, rest, ok := parseFrame(buf)
	require.True(t, ok)
	assert.Equal(t, []byte{0xD5, 0x03, 0x32, 0x01, 0x06, 0x07}, frame)
	assert.Empty(t, rest)

	_, rest, ok = parseFrame(buf[:8])
	assert.False(t, ok)
	assert.Len(t, rest, 8)
}

// recordingPort keeps what the driver writes. Anything else panics.
type recordingPort struct {
	serial.Port
	written [][]byte
}

func (r *recordingPort) Write(b []byte) (int, error) {
	r.written = append(r.written, append([]byte(nil), b...))
	return len(b), nil
}

func TestPN532ReleaseTargetMode(t *testing.T) {
	tests := []struct {
		name      string
		listening bool
		written   [][]byte
	}{
		{name: "listening", listening: true, written: [][]byte{pn532Ack}},
		{name: "idle", listening: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &recordingPort{}
			p := &pn532{port: port, listening: tt.listening, rx: []byte{0x00, 0x00}}

			require.NoError(t, p.ReleaseTargetMode())
			assert.False(t, p.listening)
			assert.Equal(t, tt.written, port.written)

			require.NoError(t, p.ReleaseTargetMode())
			assert.Equal(t, tt.written, port.written)
		})
	}
}
