package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/opengs/ocrserve/ocr"
	"github.com/opengs/ocrserve/parser"
	"github.com/sirupsen/logrus"
)

// Paragraphs are separated by blank line in the output
const ParagraphSeparator = "\n\n"

// Holds single active recognizer and routes recognition requests to it.
//
// Recognitions run concurrently under read lock. Initialization builds new recognizer without holding the lock,
// swaps it under write lock and destroys the previous one once no recognition uses it.
type Service struct {
	factory     ocr.Factory
	readOptions ocr.ReadOptions
	log         logrus.FieldLogger

	initLock sync.Mutex

	lock         sync.RWMutex
	active       ocr.Recognizer
	activeConfig ocr.Config
}

type Option func(s *Service)

func WithReadOptions(opts ocr.ReadOptions) Option {
	return func(s *Service) {
		s.readOptions = opts
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		s.log = log
	}
}

func New(factory ocr.Factory, opts ...Option) *Service {
	s := &Service{
		factory:     factory,
		readOptions: ocr.DefaultReadOptions(),
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Builds recognizer for the configuration and makes it active. On failure previous recognizer stays active.
func (s *Service) Initialize(ctx context.Context, config ocr.Config) error {
	config.Languages = slices.Clone(config.Languages)
	if len(config.Languages) == 0 {
		return newError(KindConfiguration, ocr.ErrNoLanguages)
	}

	s.initLock.Lock()
	defer s.initLock.Unlock()

	log := s.log.WithFields(logrus.Fields{
		"languages":   config.Languages,
		"download":    config.AllowDownload,
		"accelerator": config.UseAccelerator,
	})
	log.Info("Initializing recognizer")

	startedAt := time.Now()
	recognizer, err := s.factory(ctx, config)
	if err != nil {
		log.WithError(err).Warn("Failed to initialize recognizer")
		return newError(KindConfiguration, errors.Join(errors.New("failed to initialize recognizer"), err))
	}

	s.lock.Lock()
	previous := s.active
	s.active = recognizer
	s.activeConfig = config
	s.lock.Unlock()

	log.WithField("duration", time.Since(startedAt)).Info("Recognizer initialized")

	// request may be gone by now, previous recognizer still has to be released
	if previous != nil {
		if err := previous.Destroy(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Failed to destroy previous recognizer")
		}
	}
	return nil
}

// Recognizes text on the image. Paragraphs are joined with ParagraphSeparator.
func (s *Service) Recognize(ctx context.Context, image []byte) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.active == nil {
		return "", newError(KindNotInitialized, ErrNotInitialized)
	}

	prepared, err := parser.Prepare(image, s.active.IsMimeTypeSupported)
	if err != nil {
		return "", newError(KindDecode, errors.Join(errors.New("failed to prepare image"), err))
	}

	paragraphs, err := s.active.Recognize(ctx, prepared, s.readOptions)
	if err != nil {
		if errors.Is(err, ocr.ErrBadImage) {
			return "", newError(KindDecode, err)
		}
		return "", newError(KindInternal, errors.Join(errors.New("recognition failed"), err))
	}

	s.log.WithFields(logrus.Fields{
		"bytes":      len(image),
		"paragraphs": len(paragraphs),
	}).Debug("Image recognized")
	return strings.Join(paragraphs, ParagraphSeparator), nil
}

// Returns configuration of the active recognizer. False if service is not initialized
func (s *Service) Active() (ocr.Config, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.activeConfig, s.active != nil
}

// Destroys active recognizer. Service returns to uninitialized state.
func (s *Service) Close(ctx context.Context) error {
	s.initLock.Lock()
	defer s.initLock.Unlock()

	s.lock.Lock()
	active := s.active
	s.active = nil
	s.activeConfig = ocr.Config{}
	s.lock.Unlock()

	if active == nil {
		return nil
	}
	return active.Destroy(ctx)
}
