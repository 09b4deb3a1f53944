package ocr

import (
	"context"
)

// Recognizes text on images. Built from Config by a Factory.
type Recognizer interface {
	// Get paragraphs of text from image. Thread safe
	Recognize(ctx context.Context, image []byte, opts ReadOptions) ([]string, error)
	// Check if this recognizer can read specific mime type without transcoding
	IsMimeTypeSupported(mimeType string) bool
	// Release engine resources. Recognizer must not be used afterwards
	Destroy(ctx context.Context) error
}

// Builds new recognizer for the configuration. Returned recognizer is fully initialized.
type Factory func(ctx context.Context, config Config) (Recognizer, error)

// Tuning of paragraph grouping
type ReadOptions struct {
	// Vertical merge threshold as a fraction of mean text height. Negative values shrink group vertically
	YThreshold float64 `json:"yThreshold"`
	// Horizontal merge threshold as a fraction of mean text height
	XThreshold float64 `json:"xThreshold"`
}

// Options biased towards paragraph level output: wide horizontal merging, no vertical merging of separate lines.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		YThreshold: -0.01,
		XThreshold: 10.0,
	}
}
