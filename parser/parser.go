package parser

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

var ErrBadFile = errors.New("bad file or corrupted")

type ErrMimeTypeNotSupported struct {
	MimeType *mimetype.MIME
}

func (e *ErrMimeTypeNotSupported) Error() string {
	return fmt.Sprintf("mime type of the file is not supported: %s", e.MimeType)
}

// Decoders used to validate images and transcode those that recognizer can not read natively. Types without decoder are rejected
var decoderByMimeType = map[string]func(io.Reader) (image.Image, error){
	"image/png":  png.Decode,
	"image/jpeg": jpeg.Decode,
	"image/gif":  gif.Decode,
	"image/bmp":  bmp.Decode,
	"image/webp": webp.Decode,
	"image/tiff": tiff.Decode,
	// first frame only
	"image/vnd.mozilla.apng": png.Decode,
}

// Detects mime type of the image. Non image files are rejected.
func Detect(data []byte) (*mimetype.MIME, error) {
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return mime, &ErrMimeTypeNotSupported{MimeType: mime}
	}
	return mime, nil
}

// Prepares image for recognition. Every image is fully decoded first, so corrupted data is rejected here instead of
// reaching the recognizer. Images in formats supported by the recognizer are returned as is, others are transcoded into image/png.
func Prepare(data []byte, isMimeTypeSupported func(mimeType string) bool) ([]byte, error) {
	mime, err := Detect(data)
	if err != nil {
		return nil, err
	}

	decode, ok := decoderByMimeType[mime.String()]
	if !ok {
		return nil, &ErrMimeTypeNotSupported{MimeType: mime}
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Join(ErrBadFile, fmt.Errorf("failed to decode %s image", mime.String()), err)
	}

	if isMimeTypeSupported(mime.String()) {
		return data, nil
	}

	var outBuf bytes.Buffer
	if err := png.Encode(&outBuf, img); err != nil {
		return nil, errors.Join(errors.New("failed to transcode image to PNG"), err)
	}
	return outBuf.Bytes(), nil
}
