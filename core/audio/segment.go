package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyAudio 解码结果没有任何采样帧
	ErrEmptyAudio = errors.New("audio contains no frames")
)

// Segment 一段已解码的 PCM 音频，采样按声道交错存放。
// 时间单位统一为毫秒，与切分参数保持一致。
type Segment struct {
	Samples    []int
	SampleRate int
	Channels   int
	BitDepth   int

	// energy[i] 为前 i 个采样的平方和，按需构建
	energy []float64
}

// NewSegment 创建音频片段并校验格式参数
func NewSegment(samples []int, sampleRate, channels, bitDepth int) (*Segment, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if bitDepth <= 0 || bitDepth > 32 || bitDepth%8 != 0 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), channels)
	}
	return &Segment{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
	}, nil
}

// FrameCount 帧数（每帧包含所有声道的一个采样）
func (s *Segment) FrameCount() int {
	return len(s.Samples) / s.Channels
}

// Len 时长，单位毫秒，四舍五入
func (s *Segment) Len() int {
	return int(math.Round(1000 * float64(s.FrameCount()) / float64(s.SampleRate)))
}

// Duration 时长
func (s *Segment) Duration() time.Duration {
	return time.Duration(float64(s.FrameCount()) / float64(s.SampleRate) * float64(time.Second))
}

// MaxPossibleAmplitude 当前位深可表示的最大幅值
func (s *Segment) MaxPossibleAmplitude() float64 {
	return math.Exp2(float64(s.BitDepth - 1))
}

// frameAt 把毫秒位置换算为帧下标，截断并限制在片段范围内
func (s *Segment) frameAt(ms int) int {
	if ms <= 0 {
		return 0
	}
	f := int(int64(ms) * int64(s.SampleRate) / 1000)
	if n := s.FrameCount(); f > n {
		return n
	}
	return f
}

// Slice 返回 [startMs, endMs) 的子片段，与原片段共享底层数据
func (s *Segment) Slice(startMs, endMs int) *Segment {
	length := s.Len()
	startMs = clamp(startMs, 0, length)
	endMs = clamp(endMs, 0, length)
	if endMs < startMs {
		endMs = startMs
	}

	a, b := s.frameAt(startMs), s.frameAt(endMs)
	return &Segment{
		Samples:    s.Samples[a*s.Channels : b*s.Channels],
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		BitDepth:   s.BitDepth,
	}
}

// RMS 所有声道采样的均方根（整数值）
func (s *Segment) RMS() float64 {
	return s.rangeRMS(0, s.FrameCount())
}

// DBFS 相对满幅的响度，全静音返回 -Inf
func (s *Segment) DBFS() float64 {
	rms := s.RMS()
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/s.MaxPossibleAmplitude())
}

// rangeRMS 计算帧区间 [from, to) 的均方根，与 audioop.rms 一样向下取整
func (s *Segment) rangeRMS(from, to int) float64 {
	if to <= from {
		return 0
	}
	s.buildEnergy()
	a, b := from*s.Channels, to*s.Channels
	sum := s.energy[b] - s.energy[a]
	if sum <= 0 {
		return 0
	}
	return math.Floor(math.Sqrt(sum / float64(b-a)))
}

func (s *Segment) buildEnergy() {
	if s.energy != nil {
		return
	}
	energy := make([]float64, len(s.Samples)+1)
	for i, v := range s.Samples {
		f := float64(v)
		energy[i+1] = energy[i] + f*f
	}
	s.energy = energy
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dbToFloat dBFS 转线性比例
func dbToFloat(db float64) float64 {
	return math.Pow(10, db/20)
}
