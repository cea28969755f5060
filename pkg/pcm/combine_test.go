package pcm_test

import (
	"testing"

	"github.com/talandis/cadenza/pkg/pcm"
)

// rampBuffer builds a mono buffer whose samples are a recognisable ramp
// offset by base, so concatenation boundaries can be checked exactly.
func rampBuffer(n int, base float32, rate int) *pcm.Buffer {
	data := make([]float32, n)
	for i := range data {
		data[i] = base + float32(i)/100000
	}
	return &pcm.Buffer{Data: [][]float32{data}, SampleRate: rate}
}

func TestCombine_PreservesOrderAndContent(t *testing.T) {
	t.Parallel()
	inputs := []*pcm.Buffer{
		rampBuffer(100, 0.1, 24000),
		rampBuffer(50, 0.2, 24000),
		rampBuffer(200, 0.3, 24000),
	}
	out, err := pcm.Combine(inputs)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if out.Len() != 350 {
		t.Fatalf("combined length = %d; want 350", out.Len())
	}
	if out.SampleRate != 24000 || out.Channels() != 1 {
		t.Fatalf("combined format = %d Hz %dch; want 24000 Hz 1ch", out.SampleRate, out.Channels())
	}

	ranges := []struct{ start, end int }{{0, 100}, {100, 150}, {150, 350}}
	for bi, r := range ranges {
		for i := r.start; i < r.end; i++ {
			want := inputs[bi].Data[0][i-r.start]
			if got := out.Data[0][i]; got != want {
				t.Fatalf("sample %d: got %v, want %v (input %d)", i, got, want, bi)
			}
		}
	}
}

func TestCombine_Stereo(t *testing.T) {
	t.Parallel()
	a := &pcm.Buffer{Data: [][]float32{{0.1, 0.2}, {-0.1, -0.2}}, SampleRate: 48000}
	b := &pcm.Buffer{Data: [][]float32{{0.3}, {-0.3}}, SampleRate: 48000}
	out, err := pcm.Combine([]*pcm.Buffer{a, b})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if out.Len() != 3 || out.Channels() != 2 {
		t.Fatalf("shape = %dx%d; want 2x3", out.Channels(), out.Len())
	}
	if out.Data[0][2] != 0.3 || out.Data[1][2] != -0.3 {
		t.Errorf("tail samples = %v / %v; want 0.3 / -0.3", out.Data[0][2], out.Data[1][2])
	}
}

func TestCombine_Mismatches(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		bufs []*pcm.Buffer
	}{
		{"empty input", nil},
		{"rate mismatch", []*pcm.Buffer{rampBuffer(10, 0, 24000), rampBuffer(10, 0, 16000)}},
		{"channel mismatch", []*pcm.Buffer{
			rampBuffer(10, 0, 24000),
			{Data: [][]float32{make([]float32, 10), make([]float32, 10)}, SampleRate: 24000},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := pcm.Combine(tc.bufs); err == nil {
				t.Error("Combine succeeded; want error")
			}
		})
	}
}
