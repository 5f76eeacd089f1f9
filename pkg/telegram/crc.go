package telegram

import (
	"fmt"

	"github.com/sigurn/crc16"
)

// CRC16_ARC matches the P1 companion standard (poly 0xA001 reflected, init 0).
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Checksum returns the CRC16/ARC of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// ChecksumHex formats the CRC of data the way the meter writes it.
func ChecksumHex(data []byte) string {
	return fmt.Sprintf("%04X", Checksum(data))
}

// validateCRC checks a complete frame "/...!XXXX\r\n". The checksum covers
// everything from '/' up to and including '!' and is written in upper case hex.
func validateCRC(frame []byte) (given, computed string, ok bool) {
	n := len(frame)
	given = string(frame[n-trailerLen : n-len(lineSep)])
	computed = ChecksumHex(frame[:n-trailerLen])
	return given, computed, given == computed
}
