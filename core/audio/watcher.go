package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bopus/logger"

	"github.com/fsnotify/fsnotify"
)

var audioExts = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true, ".ogg": true, ".oga": true,
	".opus": true, ".mkv": true, ".mka": true, ".webm": true, ".m4a": true,
	".aac": true, ".wma": true, ".aiff": true, ".aif": true,
	".ul": true, ".ulaw": true, ".mulaw": true, ".mu": true, ".al": true, ".alaw": true,
}

// IsAudioFile 按扩展名判断是否为可处理的音频
func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// DirWatcher 监听目录中新写入的音频文件，文件稳定后交给 handle 处理
type DirWatcher struct {
	dir    string
	settle time.Duration
	handle func(ctx context.Context, path string)
}

// NewDirWatcher settle 为文件最后一次写入后等待的时间
func NewDirWatcher(dir string, settle time.Duration, handle func(ctx context.Context, path string)) *DirWatcher {
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	return &DirWatcher{dir: dir, settle: settle, handle: handle}
}

// Run 阻塞直到 ctx 结束
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("监听目录失败: %w", err)
	}

	logger.Info("开始监听目录", logger.String("dir", w.dir), logger.Duration("settle", w.settle))

	// 文件稳定性检查的延迟队列
	pendingFiles := make(map[string]time.Time)
	tick := w.settle / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	checkTicker := time.NewTicker(tick)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsAudioFile(event.Name) {
				continue
			}
			pendingFiles[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听错误", logger.ErrorField(err))

		case <-checkTicker.C:
			now := time.Now()
			for path, last := range pendingFiles {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pendingFiles, path)
				logger.Debug("文件已稳定", logger.String("path", path))
				w.handle(ctx, path)
			}
		}
	}
}
