package utils

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/aud.mkv"))
	assert.True(t, IsRemote("http://10.0.0.2:9000/a.opus"))
	assert.False(t, IsRemote("aud.mkv"))
	assert.False(t, IsRemote("/tmp/aud.mkv"))
	assert.False(t, IsRemote("file:///tmp/aud.mkv"))
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(a, []byte("opus"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("opus!"), 0644))

	ha, err := HashFile(a)
	require.NoError(t, err)
	sum := blake2b.Sum256([]byte("opus"))
	assert.Equal(t, hex.EncodeToString(sum[:]), ha)

	hb, err := HashFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.wav") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := DownloadFile(context.Background(), srv.URL+"/media/aud.wav", dir)
	require.NoError(t, err)
	assert.Equal(t, ".wav", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	_, err = DownloadFile(context.Background(), srv.URL+"/missing.wav", dir)
	assert.Error(t, err)
}
