package ocr

import (
	"net/http"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
)

// Recognizer configuration supplied by the caller on initialization.
type Config struct {
	// Ordered list of language codes. Primary language goes first. By default it will be ["en"]
	Languages []string `json:"languages"`
	// Allow fetching missing language models from the internet
	AllowDownload bool `json:"allowDownload"`
	// Prefer hardware accelerated execution
	UseAccelerator bool `json:"useAccelerator"`
}

func DefaultConfig() Config {
	return Config{
		Languages:      []string{"en"},
		AllowDownload:  false,
		UseAccelerator: false,
	}
}

// Splits comma separated language list. Entries are trimmed, empty entries and duplicates are dropped.
func ParseLanguages(langs string) []string {
	var result []string
	seen := make(map[string]struct{})
	for _, lang := range strings.Split(langs, ",") {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		result = append(result, lang)
	}
	return result
}

// Model type used by Tesseract
type TesseractModelType string

// The fastest available model with low accuracy
const TesseractModelFast TesseractModelType = "FAST"

// Model that runs by default in tesseract instances
const TesseractModelNormal TesseractModelType = "NORMAL"

// Model with best quality. Requires more processing power
const TesseractModelBestQuality TesseractModelType = "BEST_QUALITY"

// Process level settings of the Tesseract engine. Unlike Config those are not changed by callers.
type TesseractConfig struct {
	// Model to download when language is missing. Default is `TesseractModelNormal`.
	ModelType TesseractModelType `json:"modelType"`
	// Downloaded models are stored under this folder. Default is `./data/ocr/tesseract`
	ModelsFolder string `json:"modelsFolder"`
	// Overrides download location of models. Empty means official tessdata repository for the model type.
	ModelsBaseURL string `json:"modelsBaseURL"`
	// Variable to pass on tesseract initialization. For example you can pass {"load_system_dawg":"0"} to disable loading words list from the system
	//
	// Default is {"load_system_dawg": "0", "load_freq_dawg": "0", "load_punc_dawg": "0", "load_number_dawg": "0", "load_unambig_dawg": "0", "load_bigram_dawg": "0"}
	Variables map[string]string `json:"variables"`
	// Image formats supported by tessecart. Other image formats are transcoded to image/png before recognition.
	// Uploads are fully decoded before recognition, formats without Go decoder are rejected whatever is listed here.
	// Check supported formats here `https://tesseract-ocr.github.io/tessdoc/InputFormats.html`
	//
	// Default value is ["image/png", "image/jpeg", "image/tiff", "image/gif", "image/webp"].
	SupportedImageFormats []string `json:"supportedImageFormats"`
	// Maximum number of tesseract instances running at the same time for one recognizer
	PoolSize uint32 `json:"poolSize"`
	// HTTP client used to download models
	Client *http.Client       `json:"-"`
	Logger logrus.FieldLogger `json:"-"`
}

func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		ModelType:    TesseractModelNormal,
		ModelsFolder: path.Join("data", "ocr", "tesseract"),
		Variables: map[string]string{
			"load_system_dawg":  "0",
			"load_freq_dawg":    "0",
			"load_punc_dawg":    "0",
			"load_number_dawg":  "0",
			"load_unambig_dawg": "0",
			"load_bigram_dawg":  "0",
		},
		SupportedImageFormats: []string{"image/png", "image/jpeg", "image/tiff", "image/gif", "image/webp"},
		PoolSize:              1,
		Client:                http.DefaultClient,
		Logger:                logrus.StandardLogger(),
	}
}
