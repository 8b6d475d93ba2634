package cmd

import (
	"fmt"
	"time"

	"bopus/cache"

	"github.com/spf13/cobra"
)

var redisPurge bool

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并进行基本读写操作；--purge 清空切分结果缓存。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
		if !cfg.RedisEnabled() {
			return fmt.Errorf("REDIS_HOST is not set")
		}

		if err := cache.ConnectRedis(cfg); err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer cache.CloseRedis()
		fmt.Fprintln(out, "Redis连接成功！")

		if err := cache.TestRedis(cmd.Context()); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Fprintln(out, "Redis基本操作测试成功！")

		if redisPurge {
			ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
			n, err := cache.NewResultCache(cache.RedisClient, ttl).Purge(cmd.Context(), cache.KeyPattern)
			if err != nil {
				return fmt.Errorf("清理缓存失败: %w", err)
			}
			fmt.Fprintf(out, "已删除 %d 条切分缓存\n", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
	redisCmd.Flags().BoolVar(&redisPurge, "purge", false, "删除所有切分结果缓存")
}
