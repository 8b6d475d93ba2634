package storage

import (
	"context"
	"fmt"
	"time"

	"bopus/config"
	"bopus/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectAPI ChunkStore 用到的 MinIO 客户端方法
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

// ChunkStore 把导出的分片存到 MinIO
type ChunkStore struct {
	client objectAPI
	bucket string
}

// ObjectInfo 对象信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int
	TotalSize    int64
	LastModified time.Time
}

// NewChunkStore 连接 MinIO，存储桶不存在时自动创建
func NewChunkStore(ctx context.Context, cfg *config.Config) (*ChunkStore, error) {
	logger.Info("正在连接 MinIO 服务器",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	return newChunkStore(ctx, client, cfg.MinioBucket, cfg.MinioRegion)
}

func newChunkStore(ctx context.Context, client objectAPI, bucket, region string) (*ChunkStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", bucket))
	}

	return &ChunkStore{client: client, bucket: bucket}, nil
}

// Bucket 存储桶名称
func (s *ChunkStore) Bucket() string {
	return s.bucket
}

// UploadFile 上传本地 WAV 分片
func (s *ChunkStore) UploadFile(ctx context.Context, objectKey, filePath string) error {
	info, err := s.client.FPutObject(ctx, s.bucket, objectKey, filePath, minio.PutObjectOptions{
		ContentType: "audio/wav",
	})
	if err != nil {
		return fmt.Errorf("上传分片失败: %w", err)
	}
	logger.Debug("分片上传成功",
		logger.String("objectKey", objectKey),
		logger.Int64("size", info.Size))
	return nil
}

// ListObjects 列出前缀下的所有对象
func (s *ChunkStore) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	// 提前返回时取消，让客户端的列举协程退出
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return objects, stats, nil
}

// DeletePrefix 删除前缀下的所有对象，返回删除数量
func (s *ChunkStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	objects, _, err := s.ListObjects(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	for _, obj := range objects {
		objectsCh <- minio.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	for rmErr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rmErr.Err != nil {
			return 0, fmt.Errorf("删除对象 %s 失败: %w", rmErr.ObjectName, rmErr.Err)
		}
	}
	return len(objects), nil
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
