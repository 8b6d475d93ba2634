package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// part 一段恒定幅值的方波，amp 为 0 时即数字静音
type part struct {
	ms  int
	amp int
}

// buildSegment 生成单声道 16 位测试音频，rate 为 1000 时一帧对应 1ms
func buildSegment(t *testing.T, rate int, parts ...part) *Segment {
	t.Helper()
	var samples []int
	for _, p := range parts {
		n := p.ms * rate / 1000
		for i := 0; i < n; i++ {
			if i%2 == 0 {
				samples = append(samples, p.amp)
			} else {
				samples = append(samples, -p.amp)
			}
		}
	}
	seg, err := NewSegment(samples, rate, 1, 16)
	require.NoError(t, err)
	return seg
}

func TestNewSegmentValidation(t *testing.T) {
	_, err := NewSegment([]int{1, 2, 3}, 8000, 2, 16)
	assert.Error(t, err, "odd sample count for stereo")

	_, err = NewSegment(nil, 0, 1, 16)
	assert.Error(t, err)

	_, err = NewSegment(nil, 8000, 1, 12)
	assert.Error(t, err)

	seg, err := NewSegment([]int{1, 2, 3, 4}, 8000, 2, 24)
	require.NoError(t, err)
	assert.Equal(t, 2, seg.FrameCount())
}

func TestSegmentLen(t *testing.T) {
	seg := buildSegment(t, 48000, part{ms: 100, amp: 1})
	assert.Equal(t, 100, seg.Len())
	assert.Equal(t, 4800, seg.FrameCount())

	// 1001 帧 @ 2000Hz = 500.5ms，四舍五入
	odd, err := NewSegment(make([]int, 1001), 2000, 1, 16)
	require.NoError(t, err)
	assert.Equal(t, 501, odd.Len())
}

func TestSegmentLoudness(t *testing.T) {
	seg := buildSegment(t, 1000, part{ms: 100, amp: 16384})
	assert.InDelta(t, 16384, seg.RMS(), 1e-9)
	assert.InDelta(t, -6.0206, seg.DBFS(), 1e-3)
	assert.Equal(t, 32768.0, seg.MaxPossibleAmplitude())

	silent := buildSegment(t, 1000, part{ms: 100, amp: 0})
	assert.True(t, math.IsInf(silent.DBFS(), -1))
}

func TestSegmentSlice(t *testing.T) {
	seg := buildSegment(t, 1000, part{ms: 100, amp: 0}, part{ms: 100, amp: 1000})

	loud := seg.Slice(100, 200)
	assert.Equal(t, 100, loud.Len())
	assert.InDelta(t, 1000, loud.RMS(), 1e-9)

	// 越界裁剪
	tail := seg.Slice(150, 10_000)
	assert.Equal(t, 50, tail.Len())
	head := seg.Slice(-50, 20)
	assert.Equal(t, 20, head.Len())
	assert.Equal(t, 0, seg.Slice(120, 80).Len())
}

func TestSegmentSliceStereoAligned(t *testing.T) {
	// 2 声道，每帧 (L, R)
	samples := make([]int, 0, 2000)
	for i := 0; i < 1000; i++ {
		samples = append(samples, i, -i)
	}
	seg, err := NewSegment(samples, 1000, 2, 16)
	require.NoError(t, err)

	s := seg.Slice(10, 12)
	assert.Equal(t, []int{10, -10, 11, -11}, s.Samples)
}
