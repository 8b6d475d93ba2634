package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bopus/core/audio"
	"bopus/logger"

	"github.com/spf13/cobra"
)

var (
	watchOutDir string
	watchUpload bool
	watchSettle time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "监听目录，新音频写入完成后自动切分",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := resolveOptions(cmd.Flags(), cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d := buildDeps(ctx, cfg, nil)
		defer d.Close()

		out := cmd.OutOrStdout()
		watcher := audio.NewDirWatcher(args[0], watchSettle, func(ctx context.Context, path string) {
			run, err := d.pipeline.Process(ctx, audio.SplitRequest{
				Input:     path,
				Options:   opts,
				OutputDir: watchOutDir,
				Upload:    watchUpload,
			})
			if err != nil {
				logger.Error("切分失败", logger.String("input", path), logger.ErrorField(err))
				return
			}
			if err := audio.WriteReport(out, run, audio.FormatText); err != nil {
				logger.Warn("输出报告失败", logger.ErrorField(err))
			}
		})

		fmt.Fprintf(out, "watching %s (Ctrl+C to stop)\n", args[0])
		return watcher.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchOutDir, "out", "o", "", "导出分片 WAV 的目录")
	watchCmd.Flags().BoolVar(&watchUpload, "upload", false, "上传分片到 MinIO")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 500*time.Millisecond, "文件最后一次写入后的等待时间")
	addSilenceFlags(watchCmd.Flags())
}
