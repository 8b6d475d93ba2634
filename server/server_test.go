package server

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bopus/config"
	"bopus/core/audio"
	"bopus/core/auth"
	"bopus/core/events"
	"bopus/model"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSplitter struct {
	reqs       []audio.SplitRequest
	inputSeen  []byte
	inputAfter string
	err        error
}

func (f *fakeSplitter) Process(ctx context.Context, req audio.SplitRequest) (*model.Run, error) {
	f.reqs = append(f.reqs, req)
	f.inputSeen, _ = os.ReadFile(req.Input)
	f.inputAfter = req.Input
	if f.err != nil {
		return nil, f.err
	}
	return &model.Run{ID: "run-1", Input: req.Name, ChunkCount: 2, MinSilenceLen: req.Options.MinSilenceLen}, nil
}

type fakeRuns struct {
	runs []*model.Run
}

func (f *fakeRuns) Create(ctx context.Context, run *model.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRuns) GetByID(ctx context.Context, id string) (*model.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRuns) List(ctx context.Context, limit, offset int) ([]*model.Run, error) {
	if offset >= len(f.runs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.runs) {
		end = len(f.runs)
	}
	return f.runs[offset:end], nil
}

func (f *fakeRuns) Count(ctx context.Context) (int64, error) {
	return int64(len(f.runs)), nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		TempDir:       t.TempDir(),
		MinSilenceLen: 200,
		SilenceThresh: -16,
		KeepSilence:   100,
		SeekStep:      1,
	}
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func postSplit(t *testing.T, h http.Handler, filename string, fields map[string]string) *httptest.ResponseRecorder {
	body, contentType := multipartBody(t, filename, []byte("fake audio bytes"), fields)
	req := httptest.NewRequest(http.MethodPost, "/api/split", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSplitUpload(t *testing.T) {
	splitter := &fakeSplitter{}
	srv := New(testConfig(t), splitter, nil, events.NewHub())

	rec := postSplit(t, srv.Router(), "speech.MKV", map[string]string{
		"min_silence_len": "300",
		"silence_thresh":  "-40.5",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, splitter.reqs, 1)
	req := splitter.reqs[0]
	assert.Equal(t, "speech.MKV", req.Name)
	assert.Equal(t, ".mkv", filepath.Ext(req.Input))
	assert.Equal(t, 300, req.Options.MinSilenceLen)
	assert.Equal(t, -40.5, req.Options.SilenceThresh)
	assert.Equal(t, 100, req.Options.KeepSilence)
	assert.Equal(t, 1, req.Options.SeekStep)
	assert.False(t, req.Upload)
	assert.Equal(t, "fake audio bytes", string(splitter.inputSeen))

	// 临时文件在响应后删除
	_, err := os.Stat(splitter.inputAfter)
	assert.True(t, os.IsNotExist(err))

	var run model.Run
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 300, run.MinSilenceLen)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestSplitBadRequests(t *testing.T) {
	splitter := &fakeSplitter{}
	srv := New(testConfig(t), splitter, nil, events.NewHub())
	h := srv.Router()

	rec := postSplit(t, h, "a.wav", map[string]string{"seek_step": "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postSplit(t, h, "a.wav", map[string]string{"keep_silence": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postSplit(t, h, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing audio file")

	assert.Empty(t, splitter.reqs)
}

func TestSplitErrorMapping(t *testing.T) {
	splitter := &fakeSplitter{err: fmt.Errorf("decode failed: %w", audio.ErrEmptyAudio)}
	h := New(testConfig(t), splitter, nil, events.NewHub()).Router()

	rec := postSplit(t, h, "a.wav", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	splitter.err = fmt.Errorf("ffmpeg exploded")
	rec = postSplit(t, h, "a.wav", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunsEndpoints(t *testing.T) {
	cfg := testConfig(t)

	rec := httptest.NewRecorder()
	New(cfg, &fakeSplitter{}, nil, events.NewHub()).Router().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	runs := &fakeRuns{}
	for i := 0; i < 3; i++ {
		require.NoError(t, runs.Create(context.Background(), &model.Run{ID: fmt.Sprintf("run-%d", i)}))
	}
	h := New(cfg, &fakeSplitter{}, runs, events.NewHub()).Router()

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=2&offset=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Runs   []model.Run `json:"runs"`
		Total  int64       `json:"total"`
		Limit  int         `json:"limit"`
		Offset int         `json:"offset"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Runs, 2)
	assert.Equal(t, "run-1", page.Runs[0].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"run-2"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = "s3cret"
	h := New(cfg, &fakeSplitter{}, &fakeRuns{}, events.NewHub()).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad, err := auth.GenerateToken("other", "cli", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.GenerateToken(cfg.JWTSecret, "cli", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?token="+token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// 健康检查不需要认证
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"history":true`)
}

func TestCORSPreflight(t *testing.T) {
	h := New(testConfig(t), &fakeSplitter{}, nil, events.NewHub()).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/split", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
