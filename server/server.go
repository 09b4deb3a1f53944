package server

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opengs/ocrserve/ocr"
	"github.com/opengs/ocrserve/service"
	"github.com/sirupsen/logrus"
)

// Request could not be parsed. Not produced by service
const kindBadRequest service.ErrorKind = "bad_request"

// Operations exposed over HTTP
type Recognition interface {
	Initialize(ctx context.Context, config ocr.Config) error
	Recognize(ctx context.Context, image []byte) (string, error)
}

type Config struct {
	// Maximum size of uploaded image in bytes. 0 means unlimited
	MaxUploadSize int64
	Logger        logrus.FieldLogger
}

func DefaultConfig() Config {
	return Config{
		MaxUploadSize: 0,
		Logger:        logrus.StandardLogger(),
	}
}

// Body of /init request. Missing fields keep defaults
type initRequest struct {
	Langs    string `json:"langs"`
	Download bool   `json:"download"`
	GPU      bool   `json:"gpu"`
}

type errorResponse struct {
	Error   service.ErrorKind `json:"error"`
	Message string            `json:"message"`
}

type handlers struct {
	recognition Recognition
	config      Config
}

// Builds gin engine with /init and /ocr routes
func New(recognition Recognition, config Config) *gin.Engine {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	h := &handlers{recognition: recognition, config: config}

	engine := gin.New()
	engine.Use(requestLogger(config.Logger), gin.Recovery())
	engine.POST("/init", h.handleInit)
	engine.POST("/ocr", h.handleOCR)
	return engine
}

func (h *handlers) handleInit(ctx *gin.Context) {
	defaults := ocr.DefaultConfig()
	request := initRequest{
		Langs:    strings.Join(defaults.Languages, ","),
		Download: defaults.AllowDownload,
		GPU:      defaults.UseAccelerator,
	}
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		h.abort(ctx, http.StatusBadRequest, kindBadRequest, errors.Join(errors.New("malformed init request"), err))
		return
	}

	config := ocr.Config{
		Languages:      ocr.ParseLanguages(request.Langs),
		AllowDownload:  request.Download,
		UseAccelerator: request.GPU,
	}
	if err := h.recognition.Initialize(ctx.Request.Context(), config); err != nil {
		h.abortWithServiceError(ctx, err)
		return
	}

	ctx.Status(http.StatusOK)
}

func (h *handlers) handleOCR(ctx *gin.Context) {
	if h.config.MaxUploadSize > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.config.MaxUploadSize)
	}

	image, err := readUpload(ctx)
	if err != nil {
		h.abort(ctx, http.StatusBadRequest, kindBadRequest, err)
		return
	}

	text, err := h.recognition.Recognize(ctx.Request.Context(), image)
	if err != nil {
		h.abortWithServiceError(ctx, err)
		return
	}

	ctx.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// Reads `file` field of multipart form. Any other content type is treated as raw image bytes.
func readUpload(ctx *gin.Context) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(ctx.GetHeader("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			return nil, errors.Join(errors.New("failed to read request body"), err)
		}
		if len(data) == 0 {
			return nil, errors.New("request body is empty")
		}
		return data, nil
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return nil, errors.Join(errors.New("multipart form must contain file field"), err)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.Join(errors.New("failed to open uploaded file"), err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Join(errors.New("failed to read uploaded file"), err)
	}
	return data, nil
}

var statusByKind = map[service.ErrorKind]int{
	service.KindConfiguration:  http.StatusUnprocessableEntity,
	service.KindNotInitialized: http.StatusConflict,
	service.KindDecode:         http.StatusUnsupportedMediaType,
	service.KindInternal:       http.StatusInternalServerError,
}

func (h *handlers) abortWithServiceError(ctx *gin.Context, err error) {
	kind := service.KindOf(err)
	h.abort(ctx, statusByKind[kind], kind, err)
}

func (h *handlers) abort(ctx *gin.Context, status int, kind service.ErrorKind, err error) {
	ctx.Error(err)
	ctx.AbortWithStatusJSON(status, errorResponse{
		Error:   kind,
		Message: err.Error(),
	})
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		startedAt := time.Now()
		ctx.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   ctx.Request.Method,
			"path":     ctx.Request.URL.Path,
			"status":   ctx.Writer.Status(),
			"duration": time.Since(startedAt),
			"client":   ctx.ClientIP(),
		})
		if len(ctx.Errors) > 0 {
			entry = entry.WithError(ctx.Errors.Last().Err)
		}

		switch {
		case ctx.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case ctx.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}
