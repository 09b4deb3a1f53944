//go:build ocrserve_feature_tesseract

package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

const FeatureTesseractEnabled = true

// Builds recognizers backed by pool of gosseract clients
func NewTesseractFactory(engine TesseractConfig) Factory {
	return newTesseractFactory(engine, tesseractFactoryBackend{
		systemLanguages: gosseract.GetAvailableLanguages,
		newWorker: func(ctx context.Context, config tesseractWorkerConfig) (Recognizer, error) {
			worker := NewTesseract(config)
			if err := worker.Init(); err != nil {
				return nil, err
			}
			return worker, nil
		},
	})
}

// Single gosseract client. Recognitions are serialized
type Tesseract struct {
	client *gosseract.Client
	lock   sync.Mutex
	config tesseractWorkerConfig
}

func NewTesseract(config tesseractWorkerConfig) *Tesseract {
	return &Tesseract{
		config: config,
	}
}

func (p *Tesseract) Init() error {
	p.client = gosseract.NewClient()
	if err := p.client.SetLanguage(p.config.Languages...); err != nil {
		p.client.Close()
		return errors.Join(errors.New("failed to set languages"), err)
	}
	if err := p.client.DisableOutput(); err != nil {
		p.client.Close()
		return errors.Join(errors.New("failed to disable logs"), err)
	}
	for key, val := range p.config.Variables {
		if err := p.client.SetVariable(gosseract.SettableVariable(key), val); err != nil {
			p.client.Close()
			return errors.Join(fmt.Errorf("failed to set variable [%s]", key), err)
		}
	}
	if p.config.TessdataPrefix != "" {
		if err := p.client.SetTessdataPrefix(p.config.TessdataPrefix); err != nil {
			p.client.Close()
			return errors.Join(errors.New("failed to set custom models folder"), err)
		}
	}

	// gosseract loads models lazily, run on empty image so broken languages fail here
	if err := p.warmUp(); err != nil {
		p.client.Close()
		return errors.Join(errors.New("failed to load language models"), err)
	}
	return nil
}

func (p *Tesseract) warmUp() error {
	var blank bytes.Buffer
	if err := png.Encode(&blank, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		return err
	}
	if err := p.client.SetImageFromBytes(blank.Bytes()); err != nil {
		return err
	}
	_, err := p.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	return err
}

func (p *Tesseract) Destroy(ctx context.Context) error {
	return p.client.Close()
}

func (p *Tesseract) Recognize(ctx context.Context, image []byte, opts ReadOptions) ([]string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.client.SetImageFromBytes(image); err != nil {
		return nil, errors.Join(ErrBadImage, errors.New("failed to prepare image for OCR"), err)
	}
	boxes, err := p.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, errors.Join(errors.New("OCR process failed"), err)
	}

	detections := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		detections = append(detections, Detection{Text: box.Word, Box: box.Box})
	}
	return GroupParagraphs(detections, opts), nil
}

func (p *Tesseract) IsMimeTypeSupported(mimeType string) bool {
	return false // pool decides
}
