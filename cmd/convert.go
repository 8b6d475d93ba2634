package cmd

import (
	"fmt"

	"bopus/core/audio"
	"bopus/core/quality"
	"bopus/logger"

	"github.com/spf13/cobra"
)

var (
	convertInput    string
	convertOutput   string
	convertRate     int
	convertChannels int
	convertTarget   float32
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "把输入转成参考 WAV 并打印目标质量",
	Long:  `用 ffmpeg 把输入重采样为 PCM WAV（默认 48000 Hz，写到 temp/ref.wav），并输出目标感知质量分及其换算值。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if convertInput == "" {
			return fmt.Errorf("--input is required")
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "target quality: %.2f (transformed %.3f)\n",
			convertTarget, quality.TransformScore(convertTarget))

		processor := audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.TempDir)
		if err := processor.ConvertToWAV(cmd.Context(), convertInput, convertOutput, convertRate, convertChannels); err != nil {
			return err
		}

		info, err := processor.Probe(cmd.Context(), convertOutput)
		if err != nil {
			logger.Warn("无法读取输出信息", logger.String("output", convertOutput), logger.ErrorField(err))
			fmt.Fprintf(out, "wrote %s\n", convertOutput)
			return nil
		}
		fmt.Fprintf(out, "wrote %s: %d Hz, %d ch, %s\n", convertOutput, info.SampleRate, info.Channels, info.Duration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "输入音频文件")
	convertCmd.Flags().StringVarP(&convertOutput, "out", "o", "temp/ref.wav", "输出 WAV 路径")
	convertCmd.Flags().IntVar(&convertRate, "rate", 48000, "输出采样率，0 表示保持源采样率")
	convertCmd.Flags().IntVar(&convertChannels, "channels", 0, "输出声道数，0 表示保持源声道")
	convertCmd.Flags().Float32VarP(&convertTarget, "target", "t", quality.DefaultTarget, "目标感知质量分")
}
