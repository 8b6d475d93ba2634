package cmd

import (
	"fmt"
	"os"

	"bopus/config"
	"bopus/logger"

	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "bopus",
	Short: "bopus 按静音切分音频",
	Long:  `bopus 解码任意 ffmpeg 支持的音频，按静音切分为若干片段，可导出、上传并记录运行历史。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug/info/warn/error)，默认读取 LOG_LEVEL")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
