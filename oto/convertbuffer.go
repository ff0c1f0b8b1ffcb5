package oto

import (
	"encoding/binary"
	"math"
)

// Float32LEBytes converts a float32 buffer to little-endian bytes,
// appending to buf to let the caller reuse its capacity between calls.
func Float32LEBytes(buffer []float32, buf []byte) []byte {
	for _, v := range buffer {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}
