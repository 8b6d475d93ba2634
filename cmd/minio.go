package cmd

import (
	"fmt"

	"bopus/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO分片管理",
	Long:  `查看和管理上传到MinIO的分片，支持列出文件、查看统计信息、按前缀删除。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !cfg.MinioEnabled() {
			return fmt.Errorf("MINIO_ENDPOINT is not set")
		}
		fmt.Fprintf(out, "MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewChunkStore(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		if minioDelete {
			if minioPrefix == "" {
				return fmt.Errorf("删除操作需要指定目录前缀")
			}
			n, err := store.DeletePrefix(cmd.Context(), minioPrefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "已删除 %s 下的 %d 个对象\n", minioPrefix, n)
			return nil
		}

		objects, stats, err := store.ListObjects(cmd.Context(), minioPrefix)
		if err != nil {
			return err
		}
		if !minioStats {
			for _, obj := range objects {
				fmt.Fprintf(out, "%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size),
					obj.LastModified.Format("2006-01-02 15:04:05"))
			}
		}
		fmt.Fprintf(out, "\n存储桶: %s (前缀: %q)\n", store.Bucket(), minioPrefix)
		fmt.Fprintf(out, "对象数: %d, 总大小: %s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
		if stats.TotalObjects > 0 {
			fmt.Fprintf(out, "最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "chunks/", "按前缀过滤对象")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示统计信息")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除前缀下的所有对象")

	minioCmd.Example = `  # 列出所有分片
  bopus minio

  # 某次运行的分片
  bopus minio -p chunks/<run-id>/

  # 删除某次运行的分片
  bopus minio -d -p chunks/<run-id>/`
}
