package utils

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// IsRemote 判断输入是否为 http(s) 地址
func IsRemote(input string) bool {
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DownloadFile 下载文件到指定目录，返回本地路径。保留原始扩展名以便识别格式。
func DownloadFile(ctx context.Context, rawURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("构建下载请求失败: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("下载文件失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("下载文件失败，状态码: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	out, err := os.CreateTemp(dir, "download-*"+ext)
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("保存文件失败: %w", err)
	}
	return filepath.Clean(out.Name()), nil
}

// HashFile 计算文件内容的 BLAKE2b-256 摘要
func HashFile(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
