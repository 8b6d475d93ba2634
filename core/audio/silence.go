package audio

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions 切分参数不合法
var ErrInvalidOptions = errors.New("invalid silence options")

// Options 静音切分参数
type Options struct {
	MinSilenceLen int     `json:"minSilenceLen"` // 最短静音时长 (ms)
	SilenceThresh float64 `json:"silenceThresh"` // 低于该响度视为静音 (dBFS)
	KeepSilence   int     `json:"keepSilence"`   // 每个分片两侧保留的静音 (ms)
	SeekStep      int     `json:"seekStep"`      // 检测窗口步长 (ms)
}

// DefaultOptions 默认切分参数
func DefaultOptions() Options {
	return Options{
		MinSilenceLen: 200,
		SilenceThresh: -16,
		KeepSilence:   100,
		SeekStep:      1,
	}
}

// Validate 校验参数
func (o Options) Validate() error {
	if o.MinSilenceLen <= 0 {
		return fmt.Errorf("%w: min silence length must be positive, got %d", ErrInvalidOptions, o.MinSilenceLen)
	}
	if o.SeekStep <= 0 {
		return fmt.Errorf("%w: seek step must be positive, got %d", ErrInvalidOptions, o.SeekStep)
	}
	if o.KeepSilence < 0 {
		return fmt.Errorf("%w: keep silence must not be negative, got %d", ErrInvalidOptions, o.KeepSilence)
	}
	return nil
}

// Range 毫秒区间 [Start, End)
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunk 切分得到的一个非静音分片
type Chunk struct {
	Index   int
	StartMs int
	EndMs   int
	Audio   *Segment
}

// DurationMs 分片时长
func (c Chunk) DurationMs() int {
	return c.EndMs - c.StartMs
}

// DetectSilence 返回所有不短于 minSilenceLen 的静音区间。
// 窗口按 seekStep 滑动，最后一个窗口总是对齐到片段末尾。
func DetectSilence(seg *Segment, minSilenceLen int, silenceThresh float64, seekStep int) []Range {
	segLen := seg.Len()
	if segLen < minSilenceLen || minSilenceLen <= 0 || seekStep <= 0 {
		return nil
	}

	thresh := dbToFloat(silenceThresh) * seg.MaxPossibleAmplitude()
	lastSliceStart := segLen - minSilenceLen

	var silenceStarts []int
	check := func(i int) {
		if seg.rangeRMS(seg.frameAt(i), seg.frameAt(i+minSilenceLen)) <= thresh {
			silenceStarts = append(silenceStarts, i)
		}
	}
	for i := 0; i <= lastSliceStart; i += seekStep {
		check(i)
	}
	if lastSliceStart%seekStep != 0 {
		check(lastSliceStart)
	}

	if len(silenceStarts) == 0 {
		return nil
	}

	var ranges []Range
	prev := silenceStarts[0]
	current := prev
	for _, start := range silenceStarts[1:] {
		continuous := start == prev+seekStep
		// 窗口重叠时即使不连续也属于同一段静音
		hasGap := start > prev+minSilenceLen
		if !continuous && hasGap {
			ranges = append(ranges, Range{Start: current, End: prev + minSilenceLen})
			current = start
		}
		prev = start
	}
	ranges = append(ranges, Range{Start: current, End: prev + minSilenceLen})
	return ranges
}

// DetectNonsilent 返回静音区间之间的非静音区间
func DetectNonsilent(seg *Segment, minSilenceLen int, silenceThresh float64, seekStep int) []Range {
	silent := DetectSilence(seg, minSilenceLen, silenceThresh, seekStep)
	segLen := seg.Len()

	if len(silent) == 0 {
		return []Range{{Start: 0, End: segLen}}
	}
	// 整段都是静音
	if silent[0].Start == 0 && silent[0].End == segLen {
		return nil
	}

	var nonsilent []Range
	prevEnd := 0
	for _, r := range silent {
		nonsilent = append(nonsilent, Range{Start: prevEnd, End: r.Start})
		prevEnd = r.End
	}
	if last := silent[len(silent)-1]; last.End != segLen {
		nonsilent = append(nonsilent, Range{Start: prevEnd, End: segLen})
	}

	if nonsilent[0].Start == 0 && nonsilent[0].End == 0 {
		nonsilent = nonsilent[1:]
	}
	return nonsilent
}

// SplitOnSilence 按静音切分音频。每个非静音区间向两侧扩展 KeepSilence，
// 相邻分片扩展后重叠的部分从中点分开。
func SplitOnSilence(seg *Segment, opts Options) ([]Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if seg == nil || seg.FrameCount() == 0 {
		return nil, ErrEmptyAudio
	}

	nonsilent := DetectNonsilent(seg, opts.MinSilenceLen, opts.SilenceThresh, opts.SeekStep)

	ranges := make([]Range, len(nonsilent))
	for i, r := range nonsilent {
		ranges[i] = Range{Start: r.Start - opts.KeepSilence, End: r.End + opts.KeepSilence}
	}
	for i := 0; i+1 < len(ranges); i++ {
		lastEnd, nextStart := ranges[i].End, ranges[i+1].Start
		if nextStart < lastEnd {
			mid := floorDiv(lastEnd+nextStart, 2)
			ranges[i].End = mid
			ranges[i+1].Start = mid
		}
	}

	segLen := seg.Len()
	chunks := make([]Chunk, 0, len(ranges))
	for i, r := range ranges {
		start := max(r.Start, 0)
		end := min(r.End, segLen)
		chunks = append(chunks, Chunk{
			Index:   i,
			StartMs: start,
			EndMs:   end,
			Audio:   seg.Slice(start, end),
		})
	}
	return chunks, nil
}

// floorDiv 向下取整除法，区间起点扩展后可能为负数
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
