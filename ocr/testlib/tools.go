package testlib

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/opengs/ocrserve/ocr"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Recognizer that returns predefined paragraphs.
type FakeRecognizer struct {
	Config           ocr.Config
	Paragraphs       []string
	Err              error
	SupportedFormats []string
	// Closed before returning from Recognize when set. Allows tests to hold recognition in progress
	Block chan struct{}

	calls     atomic.Int32
	destroyed atomic.Bool
}

func (r *FakeRecognizer) Recognize(ctx context.Context, image []byte, opts ocr.ReadOptions) ([]string, error) {
	r.calls.Add(1)
	if r.destroyed.Load() {
		return nil, errors.New("recognizer is destroyed")
	}
	if r.Block != nil {
		select {
		case <-r.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return slices.Clone(r.Paragraphs), nil
}

func (r *FakeRecognizer) IsMimeTypeSupported(mimeType string) bool {
	return slices.Contains(r.SupportedFormats, mimeType)
}

func (r *FakeRecognizer) Destroy(ctx context.Context) error {
	r.destroyed.Store(true)
	return nil
}

func (r *FakeRecognizer) Calls() int {
	return int(r.calls.Load())
}

func (r *FakeRecognizer) Destroyed() bool {
	return r.destroyed.Load()
}

// Builds FakeRecognizers and remembers them. Paragraphs returned by a recognizer are produced by Paragraphs from its config.
type FakeFactory struct {
	// Defaults to recognizer returning languages as paragraphs
	Paragraphs func(config ocr.Config) []string
	// Returned instead of recognizer when set
	Err error

	lock  sync.Mutex
	built []*FakeRecognizer
}

func (f *FakeFactory) Factory() ocr.Factory {
	return func(ctx context.Context, config ocr.Config) (ocr.Recognizer, error) {
		if f.Err != nil {
			return nil, f.Err
		}
		if _, err := ocr.ResolveLanguages(config.Languages); err != nil {
			return nil, err
		}

		paragraphs := slices.Clone(config.Languages)
		if f.Paragraphs != nil {
			paragraphs = f.Paragraphs(config)
		}
		recognizer := &FakeRecognizer{
			Config:           config,
			Paragraphs:       paragraphs,
			SupportedFormats: []string{"image/png"},
		}

		f.lock.Lock()
		f.built = append(f.built, recognizer)
		f.lock.Unlock()
		return recognizer, nil
	}
}

func (f *FakeFactory) Built() []*FakeRecognizer {
	f.lock.Lock()
	defer f.lock.Unlock()
	return slices.Clone(f.built)
}

func blankImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func PNG(t *testing.T) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, blankImage(16, 16)); err != nil {
		t.Fatal(err.Error())
	}
	return buf.Bytes()
}

func BMP(t *testing.T) []byte {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, blankImage(16, 16)); err != nil {
		t.Fatal(err.Error())
	}
	return buf.Bytes()
}

// Renders lines of text with a bitmap font, scaled so tesseract can read it.
func TextPNG(t *testing.T, lines ...string) []byte {
	const scale = 4
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 6

	width := 0
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line).Ceil())
	}
	small := blankImage(width+20, lineHeight*len(lines)+20)
	drawer := &font.Drawer{Dst: small, Src: image.NewUniform(color.Black), Face: face}
	for i, line := range lines {
		drawer.Dot = fixed.P(10, 10+lineHeight*(i+1))
		drawer.DrawString(line)
	}

	bounds := small.Bounds()
	big := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*scale, bounds.Dy()*scale))
	for y := range big.Bounds().Dy() {
		for x := range big.Bounds().Dx() {
			big.Set(x, y, small.At(x/scale, y/scale))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, big); err != nil {
		t.Fatal(err.Error())
	}
	return buf.Bytes()
}
