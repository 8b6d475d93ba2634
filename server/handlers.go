package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bopus/core/audio"
	"bopus/core/auth"
	"bopus/logger"
	"bopus/model"
	"bopus/repository"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
)

const (
	maxUploadSize   = 512 << 20 // 512MB
	maxMemoryUpload = 32 << 20
)

type subjectKey struct{}

// SubjectFromContext 返回认证通过的 token subject
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey{}).(string)
	return subject
}

// authMiddleware 未配置 JWT_SECRET 时放行
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.JWTSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := ""
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}
			token = parts[1]
		} else {
			// 浏览器的 WebSocket 无法设置请求头
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		subject, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey{}, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"history": s.runs != nil,
		"clients": s.hub.ClientCount(),
	})
}

// handleSplit 接收 multipart 上传的音频并切分
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxMemoryUpload); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.optionsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	upload, _ := strconv.ParseBool(r.FormValue("upload"))

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "missing audio file")
		} else {
			writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		}
		return
	}
	defer file.Close()

	input, err := s.saveUpload(file, header.Filename)
	if err != nil {
		logger.Error("保存上传文件失败", logger.String("filename", header.Filename), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(input)

	logger.Info("收到切分请求",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
		logger.String("subject", SubjectFromContext(r.Context())))

	run, err := s.splitter.Process(r.Context(), audio.SplitRequest{
		Input:   input,
		Name:    filepath.Base(header.Filename),
		Options: opts,
		Upload:  upload,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, audio.ErrInvalidOptions):
			status = http.StatusBadRequest
		case errors.Is(err, audio.ErrEmptyAudio), errors.Is(err, audio.ErrUnsupportedWAV):
			status = http.StatusUnprocessableEntity
		}
		logger.Warn("切分失败", logger.String("filename", header.Filename), logger.ErrorField(err))
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// optionsFromForm 表单未给出的参数使用配置默认值
func (s *Server) optionsFromForm(r *http.Request) (audio.Options, error) {
	opts := audio.Options{
		MinSilenceLen: s.cfg.MinSilenceLen,
		SilenceThresh: s.cfg.SilenceThresh,
		KeepSilence:   s.cfg.KeepSilence,
		SeekStep:      s.cfg.SeekStep,
	}

	intFields := map[string]*int{
		"min_silence_len": &opts.MinSilenceLen,
		"keep_silence":    &opts.KeepSilence,
		"seek_step":       &opts.SeekStep,
	}
	for name, dst := range intFields {
		if v := r.FormValue(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return opts, errors.New("invalid " + name)
			}
			*dst = n
		}
	}
	if v := r.FormValue("silence_thresh"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, errors.New("invalid silence_thresh")
		}
		opts.SilenceThresh = f
	}
	return opts, opts.Validate()
}

// saveUpload 保留扩展名，解码器按扩展名识别 G.711 与 WAV
func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.cfg.TempDir, 0755); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	dst, err := os.CreateTemp(s.cfg.TempDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, offset = repository.NormalizePage(limit, offset)

	runs, err := s.runs.List(r.Context(), limit, offset)
	if err != nil {
		logger.Error("查询运行历史失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	total, err := s.runs.Count(r.Context())
	if err != nil {
		logger.Error("统计运行历史失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	id := mux.Vars(r)["id"]
	run, err := s.runs.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("查询运行记录失败", logger.String("runId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket", logger.ErrorField(err))
		return
	}
	s.hub.Attach(conn)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		logger.Error("序列化响应失败", logger.ErrorField(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
