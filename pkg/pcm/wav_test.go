package pcm_test

import (
	"encoding/binary"
	"testing"

	"github.com/talandis/cadenza/pkg/pcm"
)

func TestEncodeWAV_HeaderLayout(t *testing.T) {
	t.Parallel()
	// 2-channel, 24000 Hz, 100-sample buffer.
	buf := &pcm.Buffer{
		Data:       [][]float32{make([]float32, 100), make([]float32, 100)},
		SampleRate: 24000,
	}
	wav := pcm.EncodeWAV(buf)

	if want := 44 + 100*2*2; len(wav) != want {
		t.Fatalf("wav length = %d; want %d", len(wav), want)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[12:16]) != "fmt " {
		t.Fatalf("bad chunk markers: %q %q %q", wav[0:4], wav[8:12], wav[12:16])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(len(wav)-8) {
		t.Errorf("riff size = %d; want %d", got, len(wav)-8)
	}
	if got := binary.LittleEndian.Uint32(wav[16:20]); got != 16 {
		t.Errorf("fmt chunk size = %d; want 16", got)
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("format tag = %d; want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 2 {
		t.Errorf("channels = %d; want 2", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Errorf("sample rate = %d; want 24000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 96000 {
		t.Errorf("byte rate = %d; want 96000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 4 {
		t.Errorf("block align = %d; want 4", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample = %d; want 16", got)
	}
	if string(wav[36:40]) != "data" {
		t.Errorf("data marker = %q", wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 400 {
		t.Errorf("data size = %d; want 400", got)
	}
}

func TestEncodeWAV_SampleScalingAndClamping(t *testing.T) {
	t.Parallel()
	buf := &pcm.Buffer{
		Data:       [][]float32{{1.0, -1.0, 0.5, -0.5, 2.0, -2.0}},
		SampleRate: 16000,
	}
	wav := pcm.EncodeWAV(buf)
	samples := wav[44:]

	want := []int16{32767, -32768, 16383, -16384, 32767, -32768}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(samples[i*2:]))
		if got != w {
			t.Errorf("sample %d: got %d, want %d", i, got, w)
		}
	}
}

func TestEncodeWAV_Interleaving(t *testing.T) {
	t.Parallel()
	buf := &pcm.Buffer{
		Data: [][]float32{
			{0.25, 0.5},   // left
			{-0.25, -0.5}, // right
		},
		SampleRate: 24000,
	}
	wav := pcm.EncodeWAV(buf)
	samples := wav[44:]

	// Interleaved order: L0 R0 L1 R1.
	want := []int16{8191, -8192, 16383, -16384}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(samples[i*2:]))
		if got != w {
			t.Errorf("sample %d: got %d, want %d", i, got, w)
		}
	}
}

func TestEncodeWAV_EmptyBuffer(t *testing.T) {
	t.Parallel()
	buf := &pcm.Buffer{Data: [][]float32{{}}, SampleRate: 24000}
	wav := pcm.EncodeWAV(buf)
	if len(wav) != 44 {
		t.Fatalf("wav length = %d; want 44 (header only)", len(wav))
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 0 {
		t.Errorf("data size = %d; want 0", got)
	}
}
