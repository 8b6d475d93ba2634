package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"bopus/core/events"
	"bopus/server"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP API 与事件推送服务",
	Long: `启动 HTTP 服务:
  POST /api/split     上传音频并切分
  GET  /api/runs      运行历史（需要配置数据库）
  GET  /api/runs/{id} 单次运行详情
  GET  /ws/events     WebSocket 推送切分完成事件`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.HTTPAddr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := events.NewHub()
		go hub.Run()
		defer hub.Stop()

		d := buildDeps(ctx, cfg, hub.PublishRun)
		defer d.Close()

		return server.New(cfg, d.pipeline, d.runs, hub).ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址，默认读取 HTTP_ADDR")
}
