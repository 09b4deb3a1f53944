package ocr

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type recordingWorker struct {
	config tesseractWorkerConfig
}

func (w *recordingWorker) Recognize(ctx context.Context, image []byte, opts ReadOptions) ([]string, error) {
	return w.config.Languages, nil
}

func (w *recordingWorker) IsMimeTypeSupported(mimeType string) bool {
	return false
}

func (w *recordingWorker) Destroy(ctx context.Context) error {
	return nil
}

func newRecordingFactory(t *testing.T, systemLanguages []string) (Factory, *[]tesseractWorkerConfig) {
	var configs []tesseractWorkerConfig
	engine := DefaultTesseractConfig()
	engine.ModelsFolder = t.TempDir()
	engine.PoolSize = 2

	factory := newTesseractFactory(engine, tesseractFactoryBackend{
		systemLanguages: func() ([]string, error) {
			return systemLanguages, nil
		},
		newWorker: func(ctx context.Context, config tesseractWorkerConfig) (Recognizer, error) {
			configs = append(configs, config)
			return &recordingWorker{config: config}, nil
		},
	})
	return factory, &configs
}

func TestTesseractFactoryBuildsPool(t *testing.T) {
	factory, configs := newRecordingFactory(t, []string{"eng", "deu"})

	recognizer, err := factory(t.Context(), Config{Languages: []string{"en", "de"}})
	if err != nil {
		t.Fatal(err.Error())
	}
	defer recognizer.Destroy(context.Background())

	if len(*configs) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(*configs))
	}
	cfg := (*configs)[0]
	if !slices.Equal(cfg.Languages, []string{"eng", "deu"}) {
		t.Fatalf("unexpected languages: %v", cfg.Languages)
	}
	if cfg.TessdataPrefix != "" {
		t.Fatalf("system models expected, got prefix %q", cfg.TessdataPrefix)
	}
	if _, ok := cfg.Variables[tesseractDotProductVariable]; ok {
		t.Fatal("accelerator must not be configured when not requested")
	}
	if !recognizer.IsMimeTypeSupported("image/png") {
		t.Fatal("png must be supported by default")
	}
}

func TestTesseractFactoryAccelerator(t *testing.T) {
	factory, configs := newRecordingFactory(t, []string{"eng"})

	recognizer, err := factory(t.Context(), Config{Languages: []string{"en"}, UseAccelerator: true})
	if err != nil {
		t.Fatal(err.Error())
	}
	defer recognizer.Destroy(context.Background())

	kernel, ok := AcceleratorKernel()
	value, set := (*configs)[0].Variables[tesseractDotProductVariable]
	if ok != set || value != kernel {
		t.Fatalf("expected kernel %q (%v), got %q (%v)", kernel, ok, value, set)
	}
}

func TestTesseractFactoryUnsupportedLanguage(t *testing.T) {
	factory, configs := newRecordingFactory(t, []string{"eng"})

	_, err := factory(t.Context(), Config{Languages: []string{"english"}})
	var unsupported *ErrUnsupportedLanguage
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
	if len(*configs) != 0 {
		t.Fatal("workers must not be created")
	}
}

func TestTesseractFactoryMissingModel(t *testing.T) {
	factory, _ := newRecordingFactory(t, []string{"eng"})

	_, err := factory(t.Context(), Config{Languages: []string{"ja"}})
	var unavailable *ErrModelUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}
