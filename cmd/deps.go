package cmd

import (
	"context"
	"time"

	"bopus/cache"
	"bopus/config"
	"bopus/core/audio"
	"bopus/db"
	"bopus/logger"
	"bopus/model"
	"bopus/repository"
	"bopus/storage"
)

// deps 命令共用的处理链，未配置或连接失败的基础设施会被跳过
type deps struct {
	processor *audio.FFmpegProcessor
	pipeline  *audio.PipelineProcessor
	store     *storage.ChunkStore
	runs      repository.RunRepository
	closers   []func() error
}

func buildDeps(ctx context.Context, cfg *config.Config, notify func(*model.Run)) *deps {
	d := &deps{
		processor: audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.TempDir).
			WithOutputFormat(cfg.DecodeSampleRate, cfg.DecodeChannels),
	}
	opts := []audio.PipelineOption{
		audio.WithTempDir(cfg.TempDir),
		audio.WithDecodeFormat(cfg.DecodeSampleRate, cfg.DecodeChannels),
	}

	if cfg.RedisEnabled() {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("Redis 不可用，跳过结果缓存", logger.ErrorField(err))
		} else {
			ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
			opts = append(opts, audio.WithCache(cache.NewResultCache(cache.RedisClient, ttl)))
			d.closers = append(d.closers, cache.CloseRedis)
		}
	}

	if cfg.DBEnabled() {
		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			logger.Warn("数据库不可用，跳过运行历史", logger.ErrorField(err))
		} else {
			d.runs = repository.NewGormRunRepository(gdb)
			opts = append(opts, audio.WithRecorder(d.runs))
			d.closers = append(d.closers, db.CloseGormDB)
		}
	}

	if cfg.MinioEnabled() {
		store, err := storage.NewChunkStore(ctx, cfg)
		if err != nil {
			logger.Warn("MinIO 不可用，分片不会上传", logger.ErrorField(err))
		} else {
			d.store = store
			opts = append(opts, audio.WithUploader(store))
		}
	}

	if notify != nil {
		opts = append(opts, audio.WithNotifier(notify))
	}

	d.pipeline = audio.NewPipelineProcessor(d.processor, opts...)
	return d
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Warn("关闭连接失败", logger.ErrorField(err))
		}
	}
}
