package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"bopus/core/utils"
	"bopus/logger"
	"bopus/model"

	"github.com/google/uuid"
)

// Decoder 把输入文件解码为 PCM
type Decoder interface {
	Decode(ctx context.Context, inputFile string) (*Segment, error)
}

// ResultCache 切分结果缓存，未命中返回 nil, nil
type ResultCache interface {
	Get(ctx context.Context, key string) (*model.Run, error)
	Set(ctx context.Context, key string, run *model.Run) error
}

// ChunkUploader 上传分片文件
type ChunkUploader interface {
	UploadFile(ctx context.Context, objectKey, filePath string) error
}

// RunRecorder 记录运行历史
type RunRecorder interface {
	Create(ctx context.Context, run *model.Run) error
}

// PipelineProcessor 切分流水线：解码 → 静音切分 → 导出/上传 → 缓存 → 记录。
// 缓存、上传、记录均为可选，未配置时跳过。
type PipelineProcessor struct {
	decoder     Decoder
	cache       ResultCache
	uploader    ChunkUploader
	recorder    RunRecorder
	notify      func(*model.Run)
	workerCount int
	tempDir     string
	// 解码输出格式，0 表示保持源格式
	decodeRate     int
	decodeChannels int
}

// PipelineOption 流水线可选项
type PipelineOption func(*PipelineProcessor)

// WithCache 启用结果缓存
func WithCache(c ResultCache) PipelineOption {
	return func(p *PipelineProcessor) { p.cache = c }
}

// WithUploader 启用分片上传
func WithUploader(u ChunkUploader) PipelineOption {
	return func(p *PipelineProcessor) { p.uploader = u }
}

// WithRecorder 启用运行历史
func WithRecorder(r RunRecorder) PipelineOption {
	return func(p *PipelineProcessor) { p.recorder = r }
}

// WithNotifier 每次运行完成后回调
func WithNotifier(fn func(*model.Run)) PipelineOption {
	return func(p *PipelineProcessor) { p.notify = fn }
}

// WithWorkers 导出/上传分片的并发数
func WithWorkers(n int) PipelineOption {
	return func(p *PipelineProcessor) { p.workerCount = n }
}

// WithTempDir 上传但未指定导出目录时使用的临时目录
func WithTempDir(dir string) PipelineOption {
	return func(p *PipelineProcessor) { p.tempDir = dir }
}

// WithDecodeFormat 解码器强制的输出格式，参与缓存键
func WithDecodeFormat(sampleRate, channels int) PipelineOption {
	return func(p *PipelineProcessor) {
		p.decodeRate = sampleRate
		p.decodeChannels = channels
	}
}

// NewPipelineProcessor 创建流水线处理器
func NewPipelineProcessor(decoder Decoder, opts ...PipelineOption) *PipelineProcessor {
	p := &PipelineProcessor{decoder: decoder, tempDir: os.TempDir()}
	for _, opt := range opts {
		opt(p)
	}
	if p.workerCount <= 0 {
		p.workerCount = runtime.NumCPU()
		if p.workerCount > 8 {
			p.workerCount = 8 // 限制最大并发，避免资源耗尽
		}
	}
	return p
}

// SplitRequest 一次切分请求
type SplitRequest struct {
	Input     string
	Name      string // 记录中显示的输入名，默认为 Input
	Options   Options
	OutputDir string // 非空时导出分片为 WAV
	Upload    bool   // 上传分片到对象存储
}

// CacheKey 由内容摘要、解码格式和切分参数组成
func CacheKey(contentHash string, sampleRate, channels int, opts Options) string {
	return fmt.Sprintf("bopus:split:%s:%d:%d:%d:%g:%d:%d",
		contentHash, sampleRate, channels,
		opts.MinSilenceLen, opts.SilenceThresh, opts.KeepSilence, opts.SeekStep)
}

// Process 执行一次切分
func (p *PipelineProcessor) Process(ctx context.Context, req SplitRequest) (*model.Run, error) {
	startTime := time.Now()

	if err := req.Options.Validate(); err != nil {
		return nil, err
	}
	if req.Upload && p.uploader == nil {
		return nil, fmt.Errorf("chunk upload requested but no object storage is configured")
	}

	hash, err := utils.HashFile(req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to hash input: %w", err)
	}
	key := CacheKey(hash, p.decodeRate, p.decodeChannels, req.Options)

	name := req.Name
	if name == "" {
		name = req.Input
	}

	// 需要导出或上传时必须重新解码，缓存只保存分片时间轴
	useCache := p.cache != nil && req.OutputDir == "" && !req.Upload
	if useCache {
		cached, err := p.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("读取切分缓存失败", logger.String("key", key), logger.ErrorField(err))
		} else if cached != nil {
			cached.Cached = true
			cached.Input = name
			logger.Info("命中切分缓存", logger.String("input", req.Input), logger.String("runId", cached.ID))
			p.finish(cached)
			return cached, nil
		}
	}

	logger.Info("开始切分",
		logger.String("input", req.Input),
		logger.Int("minSilenceLen", req.Options.MinSilenceLen),
		logger.Float64("silenceThresh", req.Options.SilenceThresh))

	seg, err := p.decoder.Decode(ctx, req.Input)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	chunks, err := SplitOnSilence(seg, req.Options)
	if err != nil {
		return nil, err
	}

	run := NewRun(uuid.NewString(), name, seg, req.Options, chunks)
	run.ContentHash = hash

	if req.OutputDir != "" || req.Upload {
		if err := p.exportChunks(ctx, run, chunks, req); err != nil {
			return nil, err
		}
	}

	run.ElapsedMs = time.Since(startTime).Milliseconds()
	run.CreatedAt = time.Now()

	// 带分片路径的结果只属于本次请求，不写入缓存
	if useCache {
		if err := p.cache.Set(ctx, key, run); err != nil {
			logger.Warn("写入切分缓存失败", logger.String("key", key), logger.ErrorField(err))
		}
	}
	if p.recorder != nil {
		if err := p.recorder.Create(ctx, run); err != nil {
			logger.Warn("记录运行历史失败", logger.String("runId", run.ID), logger.ErrorField(err))
		}
	}

	logger.Info("切分完成",
		logger.String("runId", run.ID),
		logger.Int("chunkCount", run.ChunkCount),
		logger.Int("durationMs", run.DurationMs),
		logger.Int64("elapsedMs", run.ElapsedMs))

	p.finish(run)
	return run, nil
}

func (p *PipelineProcessor) finish(run *model.Run) {
	if p.notify != nil {
		p.notify(run)
	}
}

// chunkTask 分片处理任务
type chunkTask struct {
	index int
	chunk Chunk
}

// exportChunks 并行导出（及上传）分片，结果写回 run.Chunks
func (p *PipelineProcessor) exportChunks(ctx context.Context, run *model.Run, chunks []Chunk, req SplitRequest) error {
	dir := req.OutputDir
	if dir == "" {
		if err := os.MkdirAll(p.tempDir, 0755); err != nil {
			return fmt.Errorf("创建临时目录失败: %w", err)
		}
		tmp, err := os.MkdirTemp(p.tempDir, "chunks-*")
		if err != nil {
			return fmt.Errorf("创建临时目录失败: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	taskChan := make(chan chunkTask)
	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error

	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for task := range taskChan {
				if err := p.processChunk(ctx, run, task, dir, req); err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					logger.Error("分片处理失败",
						logger.Int("workerId", workerID),
						logger.Int("chunk", task.index),
						logger.ErrorField(err))
				}
			}
		}(i)
	}

feed:
	for i, c := range chunks {
		select {
		case <-ctx.Done():
			break feed
		case taskChan <- chunkTask{index: i, chunk: c}:
		}
	}
	close(taskChan)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// processChunk 每个 worker 只写自己下标对应的 ChunkInfo，无需加锁
func (p *PipelineProcessor) processChunk(ctx context.Context, run *model.Run, task chunkTask, dir string, req SplitRequest) error {
	name := fmt.Sprintf("chunk_%03d.wav", task.chunk.Index)
	path := filepath.Join(dir, name)

	if err := WriteWAVFile(path, task.chunk.Audio); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	if req.OutputDir != "" {
		run.Chunks[task.index].File = path
	}

	if req.Upload {
		objectKey := fmt.Sprintf("chunks/%s/%s", run.ID, name)
		if err := p.uploader.UploadFile(ctx, objectKey, path); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		run.Chunks[task.index].ObjectKey = objectKey
	}
	return nil
}
