package ocr

import (
	"context"
	"errors"
	"maps"

	"github.com/sirupsen/logrus"
)

var ErrTesseractNotCompiled = errors.New("OCR is not possible because binary wasnt compiled with internal tesseract OCR provider")

// Image can not be read by the engine
var ErrBadImage = errors.New("image can not be decoded")

// Settings of a single tesseract worker, resolved from Config and TesseractConfig
type tesseractWorkerConfig struct {
	// Tesseract model names
	Languages []string
	// Empty means system tessdata folder
	TessdataPrefix string
	Variables      map[string]string
}

type tesseractFactoryBackend struct {
	// Languages installed in the system tessdata folder
	systemLanguages func() ([]string, error)
	newWorker       func(ctx context.Context, config tesseractWorkerConfig) (Recognizer, error)
}

func newTesseractFactory(engine TesseractConfig, backend tesseractFactoryBackend) Factory {
	store := NewModelStore(engine)
	log := engine.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return func(ctx context.Context, config Config) (Recognizer, error) {
		languages, err := ResolveLanguages(config.Languages)
		if err != nil {
			return nil, err
		}

		systemLanguages, err := backend.systemLanguages()
		if err != nil {
			log.WithError(err).Debug("Failed to list system tesseract languages")
			systemLanguages = nil
		}

		prefix, err := store.Ensure(ctx, languages, systemLanguages, config.AllowDownload)
		if err != nil {
			return nil, errors.Join(errors.New("failed to prepare language models"), err)
		}

		variables := maps.Clone(engine.Variables)
		if variables == nil {
			variables = make(map[string]string)
		}
		if config.UseAccelerator {
			if kernel, ok := AcceleratorKernel(); ok {
				variables[tesseractDotProductVariable] = kernel
				log.WithField("kernel", kernel).Info("Using accelerated dot product kernel")
			} else {
				log.Warn("Hardware acceleration is not available, defaulting to generic CPU code")
			}
		}

		workerConfig := tesseractWorkerConfig{
			Languages:      languages,
			TessdataPrefix: prefix,
			Variables:      variables,
		}
		pool, err := NewPool(ctx, engine.PoolSize, engine.SupportedImageFormats, func(ctx context.Context) (Recognizer, error) {
			return backend.newWorker(ctx, workerConfig)
		})
		if err != nil {
			return nil, errors.Join(errors.New("failed to start tesseract workers"), err)
		}

		log.WithFields(logrus.Fields{
			"languages": languages,
			"tessdata":  prefix,
			"workers":   engine.PoolSize,
		}).Info("Tesseract recognizer is ready")
		return pool, nil
	}
}
