package thermo

import (
	"testing"

	sigurn "github.com/sigurn/crc8"
	"github.com/stretchr/testify/assert"
)

func foldCRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crc8(crc, b)
	}
	return crc
}

func TestCRC8_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{
			name:     "standard check sequence",
			data:     []byte("123456789"),
			expected: 0xF4,
		},
		{
			name:     "empty input",
			data:     nil,
			expected: 0x00,
		},
		{
			name:     "single zero byte",
			data:     []byte{0x00},
			expected: 0x00,
		},
		{
			name:     "emissivity write frame",
			data:     []byte{0xB6, 0x13, 0xCC, 0x3C},
			expected: 0x56,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, foldCRC8(tt.data))
		})
	}
}

func TestCRC8_Deterministic(t *testing.T) {
	data := []byte{0xB6, 0x27, 0xB7, 0x4C, 0x39}
	first := foldCRC8(data)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, foldCRC8(data))
	}
}

// Cross-checks the byte-wise accumulator against an independent table-driven
// implementation of the same polynomial.
func TestCRC8_AgainstReference(t *testing.T) {
	table := sigurn.MakeTable(sigurn.CRC8)
	frames := [][]byte{
		{0xB6},
		{0xB6, 0xC6},
		{0xB6, 0x27, 0xB7, 0x4C, 0x39},
		{0x00, 0x10, 0x5B, 0x35},
		{0xB6, 0x13, 0xCC, 0x3C},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for _, frame := range frames {
		assert.Equal(t, sigurn.Checksum(frame, table), foldCRC8(frame), "frame % x", frame)
	}
}
