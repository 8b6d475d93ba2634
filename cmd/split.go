package cmd

import (
	"context"
	"fmt"
	"os"

	"bopus/config"
	"bopus/core/audio"
	"bopus/core/utils"
	"bopus/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	splitInput  string
	splitOutDir string
	splitUpload bool
	splitFormat string
)

var splitCmd = &cobra.Command{
	Use:   "split [input]",
	Short: "按静音切分音频并输出分片列表",
	Long: `解码输入音频（本地文件或 http(s) 地址），按静音切分，输出每个分片的起止时间与响度。
可选导出 chunk_NNN.wav 到目录，或上传到 MinIO。`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := splitInput
		if len(args) == 1 {
			input = args[0]
		}

		if splitFormat != audio.FormatText && splitFormat != audio.FormatJSON {
			return fmt.Errorf("unknown output format %q", splitFormat)
		}
		opts, err := resolveOptions(cmd.Flags(), cfg)
		if err != nil {
			return err
		}

		req, cleanup, err := fetchInput(cmd.Context(), input, cfg.TempDir)
		if err != nil {
			return err
		}
		defer cleanup()

		d := buildDeps(cmd.Context(), cfg, nil)
		defer d.Close()

		outDir := splitOutDir
		if outDir == "" {
			outDir = cfg.OutputDir
		}

		req.Options = opts
		req.OutputDir = outDir
		req.Upload = splitUpload
		run, err := d.pipeline.Process(cmd.Context(), req)
		if err != nil {
			return err
		}
		logger.Debug("split finished", logger.String("runId", run.ID))
		return audio.WriteReport(cmd.OutOrStdout(), run, splitFormat)
	},
}

// fetchInput 远程地址先下载到临时目录，记录中仍显示原始地址
func fetchInput(ctx context.Context, input, tempDir string) (audio.SplitRequest, func(), error) {
	req := audio.SplitRequest{Input: input, Name: input}
	if !utils.IsRemote(input) {
		return req, func() {}, nil
	}
	local, err := utils.DownloadFile(ctx, input, tempDir)
	if err != nil {
		return req, nil, err
	}
	req.Input = local
	return req, func() { os.Remove(local) }, nil
}

// resolveOptions 只有显式传入的参数覆盖配置
func resolveOptions(flags *pflag.FlagSet, cfg *config.Config) (audio.Options, error) {
	opts := audio.Options{
		MinSilenceLen: cfg.MinSilenceLen,
		SilenceThresh: cfg.SilenceThresh,
		KeepSilence:   cfg.KeepSilence,
		SeekStep:      cfg.SeekStep,
	}

	var err error
	if flags.Changed("min-silence") {
		if opts.MinSilenceLen, err = flags.GetInt("min-silence"); err != nil {
			return opts, err
		}
	}
	if flags.Changed("thresh") {
		if opts.SilenceThresh, err = flags.GetFloat64("thresh"); err != nil {
			return opts, err
		}
	}
	if flags.Changed("keep-silence") {
		if opts.KeepSilence, err = flags.GetInt("keep-silence"); err != nil {
			return opts, err
		}
	}
	if flags.Changed("seek-step") {
		if opts.SeekStep, err = flags.GetInt("seek-step"); err != nil {
			return opts, err
		}
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("切分参数错误: %w", err)
	}
	return opts, nil
}

// addSilenceFlags 注册切分参数，默认值仅用于帮助信息
func addSilenceFlags(flags *pflag.FlagSet) {
	def := audio.DefaultOptions()
	flags.Int("min-silence", def.MinSilenceLen, "最短静音长度 (ms)，默认读取 SILENCE_MIN_LEN")
	flags.Float64("thresh", def.SilenceThresh, "静音阈值 (dBFS)，默认读取 SILENCE_THRESH")
	flags.Int("keep-silence", def.KeepSilence, "分片两端保留的静音 (ms)")
	flags.Int("seek-step", def.SeekStep, "静音检测步长 (ms)")
}

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().StringVarP(&splitInput, "input", "i", "aud.mkv", "输入音频文件或 URL")
	splitCmd.Flags().StringVarP(&splitOutDir, "out", "o", "", "导出分片 WAV 的目录，默认读取 OUTPUT_DIR")
	splitCmd.Flags().BoolVar(&splitUpload, "upload", false, "上传分片到 MinIO")
	splitCmd.Flags().StringVarP(&splitFormat, "format", "f", audio.FormatText, "输出格式 (text/json)")
	addSilenceFlags(splitCmd.Flags())

	splitCmd.Example = `  # 使用默认参数切分
  bopus split aud.mkv

  # 调整阈值并导出分片
  bopus split -i talk.opus --thresh -40 --min-silence 500 -o chunks/

  # 输出 JSON
  bopus split aud.mkv -f json`
}
