package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loud = 20000 // 约 -4.3 dBFS

func TestDetectSilenceStrictThreshold(t *testing.T) {
	seg := buildSegment(t, 1000, part{300, loud}, part{500, 0}, part{400, loud})

	silent := DetectSilence(seg, 200, -60, 1)
	assert.Equal(t, []Range{{Start: 300, End: 800}}, silent)

	nonsilent := DetectNonsilent(seg, 200, -60, 1)
	assert.Equal(t, []Range{{0, 300}, {800, 1200}}, nonsilent)
}

func TestDetectSilenceCountsPartialWindows(t *testing.T) {
	// -16dBFS 阈值约为 5193，窗口内最多 13 个响亮采样时 RMS 仍低于阈值
	seg := buildSegment(t, 1000, part{300, loud}, part{500, 0}, part{400, loud})

	silent := DetectSilence(seg, 200, -16, 1)
	assert.Equal(t, []Range{{Start: 287, End: 813}}, silent)
}

func TestDetectSilenceFloorsRMSBeforeCompare(t *testing.T) {
	// 5193 与 -5194 交替：RMS 约 5193.5，取整后 5193 不超过阈值 5193.378
	samples := make([]int, 1000)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 5193
		} else {
			samples[i] = -5194
		}
	}
	seg, err := NewSegment(samples, 1000, 1, 16)
	require.NoError(t, err)
	assert.Equal(t, 5193.0, seg.RMS())

	silent := DetectSilence(seg, 200, -16, 1)
	assert.Equal(t, []Range{{Start: 0, End: 1000}}, silent)
	assert.Empty(t, DetectNonsilent(seg, 200, -16, 1))
}

func TestDetectSilenceSeekStep(t *testing.T) {
	seg := buildSegment(t, 1000, part{300, loud}, part{500, 0}, part{400, loud})

	// 步长 7：第一个静音窗口起点 301，最后一个 595
	silent := DetectSilence(seg, 200, -60, 7)
	assert.Equal(t, []Range{{Start: 301, End: 795}}, silent)
}

func TestDetectSilenceFinalWindowAlignedToEnd(t *testing.T) {
	// 末尾 205ms 静音，1000 不在步长 7 的网格上，只有补充的末尾窗口完全静音
	seg := buildSegment(t, 1000, part{995, loud}, part{205, 0})

	silent := DetectSilence(seg, 200, -60, 7)
	assert.Equal(t, []Range{{Start: 1000, End: 1200}}, silent)
}

func TestDetectSilenceMultipleRanges(t *testing.T) {
	seg := buildSegment(t, 1000,
		part{100, loud}, part{300, 0}, part{100, loud}, part{250, 0}, part{100, loud})

	silent := DetectSilence(seg, 200, -60, 1)
	assert.Equal(t, []Range{{100, 400}, {500, 750}}, silent)
}

func TestDetectSilenceShortSegment(t *testing.T) {
	seg := buildSegment(t, 1000, part{150, 0})
	assert.Nil(t, DetectSilence(seg, 200, -16, 1))
	assert.Equal(t, []Range{{0, 150}}, DetectNonsilent(seg, 200, -16, 1))
}

func TestDetectNonsilentEdges(t *testing.T) {
	leading := buildSegment(t, 1000, part{400, 0}, part{400, loud})
	assert.Equal(t, []Range{{400, 800}}, DetectNonsilent(leading, 200, -60, 1))

	trailing := buildSegment(t, 1000, part{400, loud}, part{400, 0})
	assert.Equal(t, []Range{{0, 400}}, DetectNonsilent(trailing, 200, -60, 1))

	allSilent := buildSegment(t, 1000, part{1000, 0})
	assert.Empty(t, DetectNonsilent(allSilent, 200, -60, 1))

	noSilence := buildSegment(t, 1000, part{1000, loud})
	assert.Equal(t, []Range{{0, 1000}}, DetectNonsilent(noSilence, 200, -60, 1))
}

func TestSplitOnSilenceKeepSilence(t *testing.T) {
	seg := buildSegment(t, 1000, part{300, loud}, part{500, 0}, part{400, loud})

	chunks, err := SplitOnSilence(seg, Options{MinSilenceLen: 200, SilenceThresh: -16, KeepSilence: 100, SeekStep: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].StartMs)
	assert.Equal(t, 387, chunks[0].EndMs)
	assert.Equal(t, 713, chunks[1].StartMs)
	assert.Equal(t, 1200, chunks[1].EndMs)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, 487, chunks[1].DurationMs())
	assert.Equal(t, 487, chunks[1].Audio.Len())
}

func TestSplitOnSilenceOverlapMidpoint(t *testing.T) {
	seg := buildSegment(t, 1000, part{300, loud}, part{250, 0}, part{300, loud})

	chunks, err := SplitOnSilence(seg, Options{MinSilenceLen: 200, SilenceThresh: -60, KeepSilence: 200, SeekStep: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// [-200,500] 与 [350,1050] 重叠，在 425 处分开
	assert.Equal(t, Range{0, 425}, Range{chunks[0].StartMs, chunks[0].EndMs})
	assert.Equal(t, Range{425, 850}, Range{chunks[1].StartMs, chunks[1].EndMs})
}

func TestSplitOnSilenceAllSilent(t *testing.T) {
	seg := buildSegment(t, 1000, part{1000, 0})

	chunks, err := SplitOnSilence(seg, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitOnSilenceErrors(t *testing.T) {
	seg := buildSegment(t, 1000, part{100, loud})

	_, err := SplitOnSilence(seg, Options{MinSilenceLen: 0, SeekStep: 1})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = SplitOnSilence(seg, Options{MinSilenceLen: 200, SeekStep: 0})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = SplitOnSilence(seg, Options{MinSilenceLen: 200, SeekStep: 1, KeepSilence: -1})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	empty, err := NewSegment(nil, 1000, 1, 16)
	require.NoError(t, err)
	_, err = SplitOnSilence(empty, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestSplitOnSilenceHighSampleRate(t *testing.T) {
	seg := buildSegment(t, 48000, part{300, loud}, part{500, 0}, part{400, loud})

	chunks, err := SplitOnSilence(seg, Options{MinSilenceLen: 200, SilenceThresh: -60, KeepSilence: 0, SeekStep: 10})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, Range{0, 300}, Range{chunks[0].StartMs, chunks[0].EndMs})
	assert.Equal(t, Range{800, 1200}, Range{chunks[1].StartMs, chunks[1].EndMs})
	assert.Equal(t, 300*48, chunks[0].Audio.FrameCount())
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 2, floorDiv(5, 2))
	assert.Equal(t, -3, floorDiv(-5, 2))
	assert.Equal(t, -2, floorDiv(-4, 2))
}
