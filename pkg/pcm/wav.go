package pcm

import (
	"bytes"
	"encoding/binary"
)

// wavHeaderSize is the canonical RIFF/WAVE header length for 16-bit PCM.
const wavHeaderSize = 44

// EncodeWAV serialises buf into a RIFF/WAVE container: a 44-byte header
// (PCM format tag 1, 16 bits per sample) followed by interleaved
// little-endian 16-bit samples. Samples are clamped to [-1, 1] before
// scaling; negative values scale by 32768 and non-negative by 32767 so that
// +1.0 cannot overflow int16.
func EncodeWAV(buf *Buffer) []byte {
	channels := buf.Channels()
	frames := buf.Len()
	dataSize := frames * channels * 2
	byteRate := buf.SampleRate * channels * 2
	blockAlign := channels * 2

	b := &bytes.Buffer{}
	b.Grow(wavHeaderSize + dataSize)

	b.WriteString("RIFF")
	_ = binary.Write(b, binary.LittleEndian, uint32(wavHeaderSize-8+dataSize))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(b, binary.LittleEndian, uint32(16))
	_ = binary.Write(b, binary.LittleEndian, uint16(1)) // PCM format tag
	_ = binary.Write(b, binary.LittleEndian, uint16(channels))
	_ = binary.Write(b, binary.LittleEndian, uint32(buf.SampleRate))
	_ = binary.Write(b, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(b, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(b, binary.LittleEndian, uint16(16)) // bits per sample
	b.WriteString("data")
	_ = binary.Write(b, binary.LittleEndian, uint32(dataSize))

	for i := range frames {
		for c := range channels {
			s := buf.Data[c][i]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			var v int16
			if s < 0 {
				v = int16(s * 32768)
			} else {
				v = int16(s * 32767)
			}
			_ = binary.Write(b, binary.LittleEndian, v)
		}
	}
	return b.Bytes()
}
