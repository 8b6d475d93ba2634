package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bopus/logger"

	"github.com/bytedance/sonic"
)

// FFmpegProcessor implements the Processor interface using ffmpeg.
type FFmpegProcessor struct {
	ffmpegPath string
	tempDir    string
	sampleRate int // 0 表示保持源采样率
	channels   int // 0 表示保持源声道数
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
func NewFFmpegProcessor(ffmpegPath, tempDir string) *FFmpegProcessor {
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, tempDir: tempDir}
}

// WithOutputFormat 强制解码输出的采样率和声道数
func (p *FFmpegProcessor) WithOutputFormat(sampleRate, channels int) *FFmpegProcessor {
	p.sampleRate = sampleRate
	p.channels = channels
	return p
}

func (p *FFmpegProcessor) ffprobePath() string {
	dir, base := filepath.Split(p.ffmpegPath)
	return dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
}

// Decode 把任意 ffmpeg 支持的音频解码为 PCM 片段。
// WAV 与裸 G.711 在进程内直接解码。
func (p *FFmpegProcessor) Decode(ctx context.Context, inputFile string) (*Segment, error) {
	if _, err := os.Stat(inputFile); err != nil {
		return nil, fmt.Errorf("input file not accessible: %w", err)
	}

	if law := G711LawFromExt(inputFile); law != G711None {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, err
		}
		seg, err := DecodeG711(data, law)
		if err != nil {
			return nil, err
		}
		return nonEmpty(seg)
	}

	if strings.EqualFold(filepath.Ext(inputFile), ".wav") && p.sampleRate == 0 && p.channels == 0 {
		seg, err := ReadWAVFile(inputFile)
		if err == nil {
			return nonEmpty(seg)
		}
		if !errors.Is(err, ErrUnsupportedWAV) {
			return nil, err
		}
		logger.Debug("WAV 非整数 PCM，改用 ffmpeg 解码", logger.String("input", inputFile), logger.ErrorField(err))
	}

	if err := os.MkdirAll(p.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory %s: %w", p.tempDir, err)
	}
	workDir, err := os.MkdirTemp(p.tempDir, "decode-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create decode directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	wavPath := filepath.Join(workDir, "decoded.wav")
	if err := p.ConvertToWAV(ctx, inputFile, wavPath, p.sampleRate, p.channels); err != nil {
		return nil, err
	}

	seg, err := ReadWAVFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read decoded wav for %s: %w", inputFile, err)
	}
	return nonEmpty(seg)
}

func nonEmpty(seg *Segment) (*Segment, error) {
	if seg.FrameCount() == 0 {
		return nil, ErrEmptyAudio
	}
	return seg, nil
}

// wavArgs 构建转码为 16 位 PCM WAV 的 ffmpeg 参数
func wavArgs(inputFile, outputFile string, sampleRate, channels int) []string {
	args := []string{
		"-hide_banner",
		"-v", "error",
		"-y", // Overwrite output files without asking
		"-i", inputFile,
		"-vn",
		"-c:a", "pcm_s16le",
	}
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
	}
	if channels > 0 {
		args = append(args, "-ac", strconv.Itoa(channels))
	}
	return append(args, "-f", "wav", outputFile)
}

// ConvertToWAV 用 ffmpeg 把输入转码为 WAV 文件
func (p *FFmpegProcessor) ConvertToWAV(ctx context.Context, inputFile, outputFile string, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	args := wavArgs(inputFile, outputFile, sampleRate, channels)
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("执行 FFmpeg 命令", logger.String("cmd", p.ffmpegPath+" "+strings.Join(args, " ")))

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg execution failed for %s: %w\nFFmpeg Error: %s", inputFile, err, stderr.String())
	}

	logger.Debug("FFmpeg 转码完成",
		logger.String("input", inputFile),
		logger.String("output", outputFile),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// ProbeInfo ffprobe 获取的基本信息
type ProbeInfo struct {
	Format     string        `json:"format"`
	Codec      string        `json:"codec"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe uses ffprobe to inspect the first audio stream and the container.
func (p *FFmpegProcessor) Probe(ctx context.Context, inputFile string) (*ProbeInfo, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,sample_rate,channels:format=format_name,duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath(), args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	info, err := parseProbeOutput(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inputFile, err)
	}

	// 部分容器 (如直播录制的 mkv) JSON 中没有 duration，退回解析日志中的 "Duration: " 行
	if info.Duration == 0 {
		if d, err := p.probeDurationFromLog(ctx, inputFile); err == nil {
			info.Duration = d
		} else {
			logger.Warn("无法获取音频时长", logger.String("input", inputFile), logger.ErrorField(err))
		}
	}
	return info, nil
}

func parseProbeOutput(data []byte) (*ProbeInfo, error) {
	var probeData ffprobeOutput
	if err := sonic.Unmarshal(data, &probeData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if len(probeData.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found in file")
	}

	stream := probeData.Streams[0]
	info := &ProbeInfo{
		Format:   probeData.Format.FormatName,
		Codec:    stream.CodecName,
		Channels: stream.Channels,
	}
	if stream.SampleRate != "" {
		rate, err := strconv.Atoi(stream.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sample rate %q: %w", stream.SampleRate, err)
		}
		info.SampleRate = rate
	}
	if probeData.Format.Duration != "" {
		secs, err := strconv.ParseFloat(probeData.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse duration string %q: %w", probeData.Format.Duration, err)
		}
		info.Duration = time.Duration(math.Round(secs*1e6)) * time.Microsecond
	}
	return info, nil
}

func (p *FFmpegProcessor) probeDurationFromLog(ctx context.Context, inputFile string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath(), "-hide_banner", "-i", inputFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w", inputFile, err)
	}
	return ParseLogDuration(stderr.String())
}

var durationLine = regexp.MustCompile(`Duration: (\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseLogDuration 解析 ffmpeg/ffprobe 日志中的 "Duration: HH:MM:SS.xx"
func ParseLogDuration(output string) (time.Duration, error) {
	m := durationLine.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("duration not found in ffprobe output")
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse seconds %q: %w", m[3], err)
	}
	millis := int64(math.Round(seconds * 1000))
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(millis)*time.Millisecond, nil
}
