package ocr

import (
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Spreads recognition across a fixed number of workers. Each worker is used by one goroutine at a time.
type Pool struct {
	size             uint32
	supportedFormats []string
	workers          []Recognizer

	workLock             *semaphore.Weighted
	poolManipulationLock sync.Mutex
}

// Creates pool with `size` workers built by newWorker. If any worker fails to build, already built workers are destroyed.
func NewPool(ctx context.Context, size uint32, supportedFormats []string, newWorker func(ctx context.Context) (Recognizer, error)) (*Pool, error) {
	if size == 0 {
		size = 1
	}

	p := &Pool{
		size:             size,
		supportedFormats: supportedFormats,
		workers:          make([]Recognizer, 0, size),
		workLock:         semaphore.NewWeighted(int64(size)),
	}

	for range size {
		worker, err := newWorker(ctx)
		if err != nil {
			var allErrors = []error{err}
			for _, w := range p.workers {
				if err := w.Destroy(ctx); err != nil {
					allErrors = append(allErrors, err)
				}
			}

			return nil, errors.Join(allErrors...)
		}
		p.workers = append(p.workers, worker)
	}
	return p, nil
}

func (p *Pool) Destroy(ctx context.Context) error {
	if err := p.workLock.Acquire(ctx, int64(p.size)); err != nil {
		return errors.Join(errors.New("failed to accuire exclusive lock on entire pool"), err)
	}
	defer p.workLock.Release(int64(p.size))

	p.poolManipulationLock.Lock()
	defer p.poolManipulationLock.Unlock()

	var destroyErrors []error
	for _, w := range p.workers {
		if err := w.Destroy(ctx); err != nil {
			destroyErrors = append(destroyErrors, err)
		}
	}
	p.workers = nil

	return errors.Join(destroyErrors...)
}

func (p *Pool) Recognize(ctx context.Context, image []byte, opts ReadOptions) ([]string, error) {
	if err := p.workLock.Acquire(ctx, 1); err != nil {
		return nil, errors.Join(errors.New("failed to accuire work lock"), err)
	}
	defer p.workLock.Release(1)

	p.poolManipulationLock.Lock()
	if len(p.workers) == 0 { // in case if it is destroyed
		p.poolManipulationLock.Unlock()
		return nil, errors.New("pool is empty")
	}
	worker := p.workers[len(p.workers)-1]
	p.workers = p.workers[:len(p.workers)-1]
	p.poolManipulationLock.Unlock()

	paragraphs, err := worker.Recognize(ctx, image, opts)

	p.poolManipulationLock.Lock()
	p.workers = append(p.workers, worker)
	p.poolManipulationLock.Unlock()

	return paragraphs, err
}

func (p *Pool) IsMimeTypeSupported(mimeType string) bool {
	return slices.Contains(p.supportedFormats, mimeType)
}
