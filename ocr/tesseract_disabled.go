//go:build !ocrserve_feature_tesseract

package ocr

import (
	"context"
)

const FeatureTesseractEnabled = false

// Binary is built without tesseract, every recognizer construction fails
func NewTesseractFactory(engine TesseractConfig) Factory {
	return func(ctx context.Context, config Config) (Recognizer, error) {
		return nil, ErrTesseractNotCompiled
	}
}
