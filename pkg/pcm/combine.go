package pcm

import "fmt"

// Combine concatenates buffers in order into one freshly allocated Buffer.
// All inputs must share sample rate and channel count. Boundaries are
// sample-exact; no gain normalisation or cross-fading is applied.
func Combine(bufs []*Buffer) (*Buffer, error) {
	if len(bufs) == 0 {
		return nil, fmt.Errorf("pcm: combine: no input buffers")
	}

	rate := bufs[0].SampleRate
	channels := bufs[0].Channels()
	total := 0
	for i, b := range bufs {
		if b.SampleRate != rate {
			return nil, fmt.Errorf("pcm: combine: buffer %d has sample rate %d, want %d", i, b.SampleRate, rate)
		}
		if b.Channels() != channels {
			return nil, fmt.Errorf("pcm: combine: buffer %d has %d channels, want %d", i, b.Channels(), channels)
		}
		total += b.Len()
	}

	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, total)
	}
	offset := 0
	for _, b := range bufs {
		for c := range channels {
			copy(data[c][offset:], b.Data[c])
		}
		offset += b.Len()
	}
	return &Buffer{Data: data, SampleRate: rate}, nil
}
