package ocr_test

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

func TestPoolRecognize(t *testing.T) {
	pool, err := ocr.NewPool(t.Context(), 2, []string{"image/png"}, func(ctx context.Context) (ocr.Recognizer, error) {
		return &testlib.FakeRecognizer{Paragraphs: []string{"Hello", "World"}}, nil
	})
	if err != nil {
		t.Fatal(err.Error())
	}
	defer pool.Destroy(context.Background())

	paragraphs, err := pool.Recognize(t.Context(), testlib.PNG(t), ocr.DefaultReadOptions())
	if err != nil {
		t.Fatal(err.Error())
	}
	if !slices.Equal(paragraphs, []string{"Hello", "World"}) {
		t.Fatalf("unexpected paragraphs: %q", paragraphs)
	}

	if !pool.IsMimeTypeSupported("image/png") || pool.IsMimeTypeSupported("image/bmp") {
		t.Fatal("unexpected supported mime types")
	}
}

func TestPoolBuildFailureDestroysWorkers(t *testing.T) {
	var built []*testlib.FakeRecognizer
	_, err := ocr.NewPool(t.Context(), 3, nil, func(ctx context.Context) (ocr.Recognizer, error) {
		if len(built) == 2 {
			return nil, errors.New("no memory")
		}
		w := &testlib.FakeRecognizer{}
		built = append(built, w)
		return w, nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, w := range built {
		if !w.Destroyed() {
			t.Fatal("worker was not destroyed")
		}
	}
}

func TestPoolLimitsConcurrency(t *testing.T) {
	block := make(chan struct{})
	var workers []*testlib.FakeRecognizer
	pool, err := ocr.NewPool(t.Context(), 2, nil, func(ctx context.Context) (ocr.Recognizer, error) {
		w := &testlib.FakeRecognizer{Block: block}
		workers = append(workers, w)
		return w, nil
	})
	if err != nil {
		t.Fatal(err.Error())
	}
	defer pool.Destroy(context.Background())

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Recognize(context.Background(), nil, ocr.DefaultReadOptions())
		}()
	}

	// Wait until both workers are busy
	deadline := time.Now().Add(5 * time.Second)
	for workers[0].Calls()+workers[1].Calls() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("workers did not start")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Recognize(ctx, nil, ocr.DefaultReadOptions()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("third recognition must wait for a free worker, got %v", err)
	}

	close(block)
	wg.Wait()
}

func TestPoolDestroyed(t *testing.T) {
	pool, err := ocr.NewPool(t.Context(), 1, nil, func(ctx context.Context) (ocr.Recognizer, error) {
		return &testlib.FakeRecognizer{}, nil
	})
	if err != nil {
		t.Fatal(err.Error())
	}
	if err := pool.Destroy(t.Context()); err != nil {
		t.Fatal(err.Error())
	}
	if _, err := pool.Recognize(t.Context(), nil, ocr.DefaultReadOptions()); err == nil {
		t.Fatal("expected error from destroyed pool")
	}
}
