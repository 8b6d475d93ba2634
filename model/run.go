package model

import (
	"database/sql/driver"
	"fmt"
	"math"
	"time"

	"github.com/bytedance/sonic"
)

// ChunkInfo 单个分片的描述
type ChunkInfo struct {
	Index      int      `json:"index"`
	StartMs    int      `json:"startMs"`
	EndMs      int      `json:"endMs"`
	DurationMs int      `json:"durationMs"`
	DBFS       *float64 `json:"dBFS"` // nil 表示数字静音
	File       string   `json:"file,omitempty"`
	ObjectKey  string   `json:"objectKey,omitempty"`
}

// ChunkInfoList 自定义类型用于 GORM JSON 字段的自动扫描
type ChunkInfoList []ChunkInfo

// Scan 实现 sql.Scanner 接口
func (c *ChunkInfoList) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported chunk list column type %T", value)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*c = nil
		return nil
	}
	return sonic.Unmarshal(bytes, c)
}

// Value 实现 driver.Valuer 接口
func (c ChunkInfoList) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return sonic.Marshal(c)
}

// Run 一次切分的结果，同时作为运行历史表的记录
type Run struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Input       string `gorm:"size:1024;not null" json:"input"`
	ContentHash string `gorm:"size:64;index" json:"contentHash"`

	DurationMs int      `json:"durationMs"`
	SampleRate int      `json:"sampleRate"`
	Channels   int      `json:"channels"`
	BitDepth   int      `json:"bitDepth"`
	DBFS       *float64 `json:"dBFS"`

	MinSilenceLen int     `json:"minSilenceLen"`
	SilenceThresh float64 `json:"silenceThresh"`
	KeepSilence   int     `json:"keepSilence"`
	SeekStep      int     `json:"seekStep"`

	ChunkCount int           `json:"chunkCount"`
	Chunks     ChunkInfoList `gorm:"type:json" json:"chunks"`
	ElapsedMs  int64         `json:"elapsedMs"`
	CreatedAt  time.Time     `json:"createdAt"`

	// 命中缓存时为 true，不入库
	Cached bool `gorm:"-" json:"cached"`
}

// TableName 指定表名
func (Run) TableName() string {
	return "split_runs"
}

// FiniteDB 把 -Inf/NaN 之类不可序列化的响度转为 nil
func FiniteDB(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
