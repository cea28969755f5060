// Package pcm converts between the wire representations used by hosted
// speech APIs (base64-encoded little-endian 16-bit PCM) and playable float
// sample buffers, and serialises buffers into WAV containers.
//
// All conversions are pure functions; the only failure mode is a malformed
// payload, reported via [ErrDecode].
package pcm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrDecode reports a malformed base64 or PCM payload.
var ErrDecode = errors.New("pcm: malformed payload")

// Buffer is decoded PCM audio: one sample slice per channel, all the same
// length, samples in [-1, 1]. A Buffer is immutable once produced: consumers
// read it by reference and never write into Data.
type Buffer struct {
	// Data holds one sample slice per channel.
	Data [][]float32

	// SampleRate in Hz.
	SampleRate int
}

// Channels returns the channel count.
func (b *Buffer) Channels() int { return len(b.Data) }

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback duration at the buffer's sample rate.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Len()) / float64(b.SampleRate) * float64(time.Second))
}

// DecodeBase64 decodes a standard-alphabet base64 payload.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}
	return data, nil
}

// EncodeBase64 encodes raw bytes with the standard base64 alphabet.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromPCM16 de-interleaves little-endian signed 16-bit samples into
// per-channel float slices scaled by 1/32768. The payload length must be a
// whole number of frames.
func FromPCM16(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: sampleRate=%d channels=%d", ErrDecode, sampleRate, channels)
	}
	frameBytes := 2 * channels
	if len(raw)%frameBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrDecode, len(raw), channels)
	}

	frames := len(raw) / frameBytes
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			off := (i*channels + c) * 2
			s := int16(raw[off]) | int16(raw[off+1])<<8
			data[c][i] = float32(s) / 32768
		}
	}
	return &Buffer{Data: data, SampleRate: sampleRate}, nil
}

// Blob is a transmit-ready audio payload: base64 data plus the MIME
// descriptor expected by the live-session wire protocol.
type Blob struct {
	// Data is base64-encoded little-endian 16-bit PCM.
	Data string

	// MIMEType describes the payload, e.g. "audio/pcm;rate=16000".
	MIMEType string
}

// ToPCM16 scales float samples by 32768 and truncates to little-endian
// int16, clamping at the int16 range so +1.0 cannot wrap.
func ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// ToBlob converts mono float samples into a base64 PCM payload tagged with
// its rate-specific MIME type.
func ToBlob(samples []float32, sampleRate int) Blob {
	return Blob{
		Data:     EncodeBase64(ToPCM16(samples)),
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", sampleRate),
	}
}
