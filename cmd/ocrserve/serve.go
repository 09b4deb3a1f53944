package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opengs/ocrserve/config"
	"github.com/opengs/ocrserve/ocr"
	"github.com/opengs/ocrserve/server"
	"github.com/opengs/ocrserve/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "Start OCR HTTP server",
	Long:  "Start HTTP server with /init and /ocr endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ocr.FeatureTesseractEnabled {
			config.Warning("Binary is built without tesseract support. Every init request will fail. Rebuild with -tags ocrserve_feature_tesseract")
		}

		engineConfig := ocr.DefaultTesseractConfig()
		modelType, _ := cmd.Flags().GetString("model-type")
		if !slices.Contains([]ocr.TesseractModelType{ocr.TesseractModelFast, ocr.TesseractModelNormal, ocr.TesseractModelBestQuality}, ocr.TesseractModelType(modelType)) {
			return errors.New("tesseract model type is not supported")
		}
		engineConfig.ModelType = ocr.TesseractModelType(modelType)
		engineConfig.ModelsFolder, _ = cmd.Flags().GetString("models-folder")
		engineConfig.ModelsBaseURL, _ = cmd.Flags().GetString("models-base-url")
		engineConfig.SupportedImageFormats, _ = cmd.Flags().GetStringSlice("supported-mime-types")
		engineConfig.PoolSize, _ = cmd.Flags().GetUint32("pool-size")
		engineConfig.Logger = log

		svc := service.New(ocr.NewTesseractFactory(engineConfig), service.WithLogger(log))
		defer func() {
			if err := svc.Close(context.Background()); err != nil {
				log.WithError(err).Warn("Failed to destroy recognizer")
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if initOnStart, _ := cmd.Flags().GetBool("init"); initOnStart {
			langs, _ := cmd.Flags().GetString("langs")
			download, _ := cmd.Flags().GetBool("download")
			gpu, _ := cmd.Flags().GetBool("gpu")
			if err := initializeOnStart(ctx, svc, ocr.Config{Languages: ocr.ParseLanguages(langs), AllowDownload: download, UseAccelerator: gpu}, log); err != nil {
				return err
			}
		}

		if log.GetLevel() < logrus.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}
		serverConfig := server.DefaultConfig()
		serverConfig.MaxUploadSize, _ = cmd.Flags().GetInt64("max-upload-size")
		serverConfig.Logger = log

		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetUint("port")
		httpServer := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", host, port),
			Handler: server.New(svc, serverConfig),
		}

		serveErr := make(chan error, 1)
		go func() {
			log.WithField("address", httpServer.Addr).Info("HTTP server listening")
			serveErr <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			return errors.Join(errors.New("failed to run HTTP server"), err)
		case <-ctx.Done():
		}

		log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Join(errors.New("failed to shutdown HTTP server"), err)
		}
		return nil
	},
}

// Initializes service before server starts accepting requests and logs configuration that became active
func initializeOnStart(ctx context.Context, svc *service.Service, config ocr.Config, log logrus.FieldLogger) error {
	if err := svc.Initialize(ctx, config); err != nil {
		return errors.Join(errors.New("failed to initialize recognizer on start"), err)
	}

	active, ok := svc.Active()
	if !ok {
		return errors.New("recognizer is not active after initialization")
	}
	log.WithFields(logrus.Fields{
		"languages":   active.Languages,
		"download":    active.AllowDownload,
		"accelerator": active.UseAccelerator,
	}).Info("Recognizer initialized on start")
	return nil
}

func init() {
	serveCMD.Flags().String("host", "0.0.0.0", "Host server will be listening on")
	serveCMD.Flags().Uint("port", 8884, "Port server will be listening on")
	serveCMD.Flags().Int64("max-upload-size", 0, "Maximum size of uploaded image in bytes. 0 means unlimited")

	serveCMD.Flags().Uint32("pool-size", 1, "Maximum number of tesseract instances running at the same time")
	serveCMD.Flags().String("model-type", string(ocr.TesseractModelNormal), "Model type to download. Supported values are FAST, NORMAL, BEST_QUALITY")
	serveCMD.Flags().String("models-folder", ocr.DefaultTesseractConfig().ModelsFolder, "Location on the disk where downloaded tesseract models are stored")
	serveCMD.Flags().String("models-base-url", "", "Base URL to download models from. By default official tessdata repository of the model type")
	serveCMD.Flags().StringSlice("supported-mime-types", ocr.DefaultTesseractConfig().SupportedImageFormats, "List of mime types supported by tesseract. Other images are converted to PNG")

	serveCMD.Flags().Bool("init", false, "Initialize recognizer on start")
	serveCMD.Flags().String("langs", "en", "Comma separated language codes used with --init")
	serveCMD.Flags().Bool("download", false, "Allow model download with --init")
	serveCMD.Flags().Bool("gpu", false, "Use hardware acceleration with --init")
}
