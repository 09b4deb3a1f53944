package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/opengs/ocrserve/ocr"
	"github.com/opengs/ocrserve/ocr/testlib"
)

func TestRecognizeBeforeInitialize(t *testing.T) {
	s := New((&testlib.FakeFactory{}).Factory())

	_, err := s.Recognize(t.Context(), testlib.PNG(t))
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if KindOf(err) != KindNotInitialized {
		t.Fatalf("unexpected kind: %s", KindOf(err))
	}
	if _, ok := s.Active(); ok {
		t.Fatal("service must not be initialized")
	}
}

func TestRecognizeJoinsParagraphs(t *testing.T) {
	factory := &testlib.FakeFactory{Paragraphs: func(ocr.Config) []string { return []string{"Hello", "World"} }}
	s := New(factory.Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}

	text, err := s.Recognize(t.Context(), testlib.PNG(t))
	if err != nil {
		t.Fatal(err.Error())
	}
	if text != "Hello\n\nWorld" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestRecognizeNoParagraphs(t *testing.T) {
	factory := &testlib.FakeFactory{Paragraphs: func(ocr.Config) []string { return nil }}
	s := New(factory.Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}

	text, err := s.Recognize(t.Context(), testlib.PNG(t))
	if err != nil {
		t.Fatal(err.Error())
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestInitializeLastWriteWins(t *testing.T) {
	factory := &testlib.FakeFactory{}
	s := New(factory.Factory())

	if err := s.Initialize(t.Context(), ocr.Config{Languages: []string{"en"}}); err != nil {
		t.Fatal(err.Error())
	}
	if err := s.Initialize(t.Context(), ocr.Config{Languages: []string{"de", "fr"}, AllowDownload: true}); err != nil {
		t.Fatal(err.Error())
	}

	text, err := s.Recognize(t.Context(), testlib.PNG(t))
	if err != nil {
		t.Fatal(err.Error())
	}
	if text != "de\n\nfr" {
		t.Fatalf("second configuration must be used, got %q", text)
	}

	built := factory.Built()
	if len(built) != 2 {
		t.Fatalf("expected 2 recognizers, got %d", len(built))
	}
	if !built[0].Destroyed() {
		t.Fatal("replaced recognizer must be destroyed")
	}
	if built[1].Destroyed() {
		t.Fatal("active recognizer must not be destroyed")
	}

	active, ok := s.Active()
	if !ok || !slices.Equal(active.Languages, []string{"de", "fr"}) || !active.AllowDownload {
		t.Fatalf("unexpected active config: %+v", active)
	}
}

func TestInitializeFailureKeepsPrevious(t *testing.T) {
	factory := &testlib.FakeFactory{}
	s := New(factory.Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}

	err := s.Initialize(t.Context(), ocr.Config{Languages: []string{"xx_unknown"}})
	if KindOf(err) != KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var unsupported *ocr.ErrUnsupportedLanguage
	if !errors.As(err, &unsupported) {
		t.Fatalf("language error must be preserved, got %v", err)
	}

	text, err := s.Recognize(t.Context(), testlib.PNG(t))
	if err != nil {
		t.Fatal(err.Error())
	}
	if text != "en" {
		t.Fatalf("previous recognizer must stay active, got %q", text)
	}
}

func TestInitializeNoLanguages(t *testing.T) {
	s := New((&testlib.FakeFactory{}).Factory())
	err := s.Initialize(t.Context(), ocr.Config{})
	if !errors.Is(err, ocr.ErrNoLanguages) || KindOf(err) != KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRecognizeDecodeError(t *testing.T) {
	s := New((&testlib.FakeFactory{}).Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}

	_, err := s.Recognize(t.Context(), []byte("this is not an image"))
	if KindOf(err) != KindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRecognizeCorruptedSupportedImage(t *testing.T) {
	factory := &testlib.FakeFactory{}
	s := New(factory.Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}

	_, err := s.Recognize(t.Context(), testlib.PNG(t)[:40])
	if KindOf(err) != KindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
	if calls := factory.Built()[0].Calls(); calls != 0 {
		t.Fatalf("corrupted image must not reach recognizer, got %d calls", calls)
	}
}

func TestRecognizeEngineErrors(t *testing.T) {
	factory := &testlib.FakeFactory{}
	s := New(factory.Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}
	recognizer := factory.Built()[0]

	recognizer.Err = ocr.ErrBadImage
	if _, err := s.Recognize(t.Context(), testlib.PNG(t)); KindOf(err) != KindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}

	recognizer.Err = errors.New("engine crashed")
	if _, err := s.Recognize(t.Context(), testlib.PNG(t)); KindOf(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestRecognizeTranscodes(t *testing.T) {
	s := New((&testlib.FakeFactory{}).Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}

	if _, err := s.Recognize(t.Context(), testlib.BMP(t)); err != nil {
		t.Fatal(err.Error())
	}
}

func TestReinitializeWaitsForRecognition(t *testing.T) {
	factory := &testlib.FakeFactory{}
	s := New(factory.Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}
	first := factory.Built()[0]
	first.Block = make(chan struct{})
	image := testlib.PNG(t)

	var wg sync.WaitGroup
	var recognized string
	var recognizeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		recognized, recognizeErr = s.Recognize(context.Background(), image)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for first.Calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("recognition did not start")
		}
		time.Sleep(time.Millisecond)
	}

	initDone := make(chan error, 1)
	go func() {
		initDone <- s.Initialize(context.Background(), ocr.Config{Languages: []string{"de"}})
	}()

	select {
	case <-initDone:
		t.Fatal("recognizer must not be replaced while in use")
	case <-time.After(50 * time.Millisecond):
	}

	close(first.Block)
	wg.Wait()
	if err := <-initDone; err != nil {
		t.Fatal(err.Error())
	}

	if recognizeErr != nil || recognized != "en" {
		t.Fatalf("in-flight recognition must finish on old recognizer: %q, %v", recognized, recognizeErr)
	}
	if !first.Destroyed() {
		t.Fatal("old recognizer must be destroyed after swap")
	}
}

func TestReinitializeWithCancelledContextDestroysPrevious(t *testing.T) {
	var lock sync.Mutex
	var workers []*testlib.FakeRecognizer
	factory := func(ctx context.Context, config ocr.Config) (ocr.Recognizer, error) {
		pool, err := ocr.NewPool(ctx, 2, []string{"image/png"}, func(ctx context.Context) (ocr.Recognizer, error) {
			worker := &testlib.FakeRecognizer{Config: config, Paragraphs: config.Languages}
			lock.Lock()
			workers = append(workers, worker)
			lock.Unlock()
			return worker, nil
		})
		if err != nil {
			return nil, err
		}
		return pool, nil
	}

	s := New(factory)
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Initialize(ctx, ocr.Config{Languages: []string{"de"}}); err != nil {
		t.Fatal(err.Error())
	}

	lock.Lock()
	defer lock.Unlock()
	if len(workers) != 4 {
		t.Fatalf("expected 4 workers, got %d", len(workers))
	}
	for i, worker := range workers[:2] {
		if !worker.Destroyed() {
			t.Fatalf("worker %d of replaced pool must be destroyed", i)
		}
	}
	for i, worker := range workers[2:] {
		if worker.Destroyed() {
			t.Fatalf("worker %d of active pool must not be destroyed", i)
		}
	}
}

func TestClose(t *testing.T) {
	factory := &testlib.FakeFactory{}
	s := New(factory.Factory())
	if err := s.Initialize(t.Context(), ocr.DefaultConfig()); err != nil {
		t.Fatal(err.Error())
	}
	if err := s.Close(t.Context()); err != nil {
		t.Fatal(err.Error())
	}
	if !factory.Built()[0].Destroyed() {
		t.Fatal("recognizer must be destroyed")
	}
	if _, err := s.Recognize(t.Context(), testlib.PNG(t)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
