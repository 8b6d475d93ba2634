package cmd

import (
	"fmt"

	"bopus/core/audio"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <input>",
	Short: "用 ffprobe 查看音频的编码、采样率和时长",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		processor := audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.TempDir)
		info, err := processor.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", args[0])
		fmt.Fprintf(out, "  format:      %s\n", info.Format)
		fmt.Fprintf(out, "  codec:       %s\n", info.Codec)
		fmt.Fprintf(out, "  sample rate: %d Hz\n", info.SampleRate)
		fmt.Fprintf(out, "  channels:    %d\n", info.Channels)
		fmt.Fprintf(out, "  duration:    %s\n", info.Duration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
