package audio

import (
	"fmt"
	"io"
	"strings"

	"bopus/model"

	"github.com/bytedance/sonic"
)

// 输出格式
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewRun 根据解码结果和分片构建运行记录
func NewRun(id, input string, seg *Segment, opts Options, chunks []Chunk) *model.Run {
	infos := make(model.ChunkInfoList, 0, len(chunks))
	for _, c := range chunks {
		infos = append(infos, model.ChunkInfo{
			Index:      c.Index,
			StartMs:    c.StartMs,
			EndMs:      c.EndMs,
			DurationMs: c.DurationMs(),
			DBFS:       model.FiniteDB(c.Audio.DBFS()),
		})
	}

	return &model.Run{
		ID:            id,
		Input:         input,
		DurationMs:    seg.Len(),
		SampleRate:    seg.SampleRate,
		Channels:      seg.Channels,
		BitDepth:      seg.BitDepth,
		DBFS:          model.FiniteDB(seg.DBFS()),
		MinSilenceLen: opts.MinSilenceLen,
		SilenceThresh: opts.SilenceThresh,
		KeepSilence:   opts.KeepSilence,
		SeekStep:      opts.SeekStep,
		ChunkCount:    len(infos),
		Chunks:        infos,
	}
}

// WriteReport 按格式输出运行结果
func WriteReport(w io.Writer, run *model.Run, format string) error {
	switch format {
	case FormatJSON:
		data, err := sonic.ConfigStd.MarshalIndent(run, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatText, "":
		return writeText(w, run)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, run *model.Run) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s, %d Hz, %d ch, %d bit, %s dBFS",
		run.Input, formatMs(run.DurationMs), run.SampleRate, run.Channels, run.BitDepth, formatDB(run.DBFS))
	if run.Cached {
		b.WriteString(" (cached)")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%d chunks (min_silence_len=%dms silence_thresh=%gdBFS keep_silence=%dms seek_step=%dms)\n",
		run.ChunkCount, run.MinSilenceLen, run.SilenceThresh, run.KeepSilence, run.SeekStep)

	for _, c := range run.Chunks {
		fmt.Fprintf(&b, "[%03d] %s - %s  %s  %s dBFS",
			c.Index, formatMs(c.StartMs), formatMs(c.EndMs), formatMs(c.DurationMs), formatDB(c.DBFS))
		if c.File != "" {
			fmt.Fprintf(&b, "  %s", c.File)
		}
		if c.ObjectKey != "" {
			fmt.Fprintf(&b, "  s3:%s", c.ObjectKey)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatMs(ms int) string {
	return fmt.Sprintf("%d.%03ds", ms/1000, ms%1000)
}

func formatDB(db *float64) string {
	if db == nil {
		return "-inf"
	}
	return fmt.Sprintf("%.2f", *db)
}
