package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	FFmpegPath string
	TempDir    string // ffmpeg 解码的中间文件目录
	OutputDir  string // 分片导出目录，空表示不导出

	// 解码参数，0 表示保持源文件的采样率/声道
	DecodeSampleRate int
	DecodeChannels   int

	// 静音切分参数 (ms / dBFS)
	MinSilenceLen int
	SilenceThresh float64
	KeepSilence   int
	SeekStep      int

	// 日志配置
	LogLevel string
	LogFile  string

	HTTPAddr  string
	JWTSecret string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTLHours int

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		TempDir:          getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "bopus")),
		OutputDir:        getEnv("OUTPUT_DIR", ""),
		DecodeSampleRate: getEnvInt("DECODE_SAMPLE_RATE", 0),
		DecodeChannels:   getEnvInt("DECODE_CHANNELS", 0),
		MinSilenceLen:    getEnvInt("SILENCE_MIN_LEN", 200),
		SilenceThresh:    getEnvFloat("SILENCE_THRESH", -16),
		KeepSilence:      getEnvInt("SILENCE_KEEP", 100),
		SeekStep:         getEnvInt("SILENCE_SEEK_STEP", 1),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		DBHost:           getEnv("DB_HOST", ""), // 为空时不记录运行历史
		DBPort:           getEnv("DB_PORT", "3306"),
		DBUser:           getEnv("DB_USER", "root"),
		DBPassword:       os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:           getEnv("DB_NAME", "bopus"),
		RedisHost:        getEnv("REDIS_HOST", ""), // 为空时不使用缓存
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		CacheTTLHours:    getEnvInt("CACHE_TTL_HOURS", 24),
		MinioEndpoint:    getEnv("MINIO_ENDPOINT", ""), // 为空时不上传分片
		MinioAccessKey:   os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:   os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:      getEnv("MINIO_BUCKET", "bopus"),
		MinioRegion:      getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:      getEnvBool("MINIO_USE_SSL", false),
	}
}

// RedisEnabled 是否配置了 Redis
func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

// DBEnabled 是否配置了 MySQL
func (c *Config) DBEnabled() bool { return c.DBHost != "" }

// MinioEnabled 是否配置了 MinIO
func (c *Config) MinioEnabled() bool { return c.MinioEndpoint != "" }
