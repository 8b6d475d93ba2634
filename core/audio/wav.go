package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/zaf/g711"
)

// ErrUnsupportedWAV WAV 文件不是整数 PCM 编码
var ErrUnsupportedWAV = errors.New("unsupported wav encoding")

const (
	wavFormatPCM = 1
	pcm8Bias     = 128
)

// ReadWAV 读取整数 PCM 编码的 WAV
func ReadWAV(r io.ReadSeeker) (*Segment, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnsupportedWAV)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedWAV, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM buffer: %w", err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(d.BitDepth)
	}
	if bitDepth == 8 {
		// 8 位 WAV 为无符号采样，128 是零点
		for i, v := range buf.Data {
			buf.Data[i] = v - pcm8Bias
		}
	}
	return NewSegment(buf.Data, buf.Format.SampleRate, buf.Format.NumChannels, bitDepth)
}

// ReadWAVFile 打开并读取 WAV 文件
func ReadWAVFile(path string) (*Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWAV(f)
}

// WriteWAV 把片段编码为 PCM WAV
func WriteWAV(w io.WriteSeeker, seg *Segment) error {
	data := seg.Samples
	if seg.BitDepth == 8 {
		// 分片与原片段共享底层数组，复制后再加偏置
		data = make([]int, len(seg.Samples))
		for i, v := range seg.Samples {
			data[i] = v + pcm8Bias
		}
	}

	enc := wav.NewEncoder(w, seg.SampleRate, seg.BitDepth, seg.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: seg.Channels,
			SampleRate:  seg.SampleRate,
		},
		Data:           data,
		SourceBitDepth: seg.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile 写入 WAV 文件，必要时创建目录
func WriteWAVFile(path string, seg *Segment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, seg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// G711Law G.711 压扩类型
type G711Law int

const (
	G711None G711Law = iota
	G711ULaw
	G711ALaw
)

// g711SampleRate 裸 G.711 文件固定为 8kHz 单声道
const g711SampleRate = 8000

// G711LawFromExt 根据扩展名判断是否为裸 G.711 数据
func G711LawFromExt(path string) G711Law {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ul", ".ulaw", ".mulaw", ".mu":
		return G711ULaw
	case ".al", ".alaw":
		return G711ALaw
	default:
		return G711None
	}
}

// DecodeG711 解码裸 G.711 数据为 16 位 PCM
func DecodeG711(data []byte, law G711Law) (*Segment, error) {
	var pcm []byte
	switch law {
	case G711ULaw:
		pcm = g711.DecodeUlaw(data)
	case G711ALaw:
		pcm = g711.DecodeAlaw(data)
	default:
		return nil, fmt.Errorf("unknown G.711 law %d", law)
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return NewSegment(samples, g711SampleRate, 1, 16)
}
