package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

type ErrModelUnavailable struct {
	// Tesseract model names that are neither installed nor downloaded
	Languages []string
}

func (e *ErrModelUnavailable) Error() string {
	return fmt.Sprintf("language models are not installed and downloading is disabled: %s", strings.Join(e.Languages, ", "))
}

var tesseractModelLinkByType = map[TesseractModelType]string{
	TesseractModelFast:        "https://github.com/tesseract-ocr/tessdata_fast/raw/refs/heads/main/",
	TesseractModelNormal:      "https://github.com/tesseract-ocr/tessdata/raw/refs/heads/main/",
	TesseractModelBestQuality: "https://github.com/tesseract-ocr/tessdata_best/raw/refs/heads/main/",
}

// Locates tesseract language models on the disk and downloads missing ones.
type ModelStore struct {
	modelType TesseractModelType
	folder    string
	baseURL   string
	client    *http.Client
	log       logrus.FieldLogger
}

func NewModelStore(config TesseractConfig) *ModelStore {
	baseURL := config.ModelsBaseURL
	if baseURL == "" {
		baseURL = tesseractModelLinkByType[config.ModelType]
	}
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	client := config.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &ModelStore{
		modelType: config.ModelType,
		folder:    config.ModelsFolder,
		baseURL:   baseURL,
		client:    client,
		log:       log,
	}
}

// Folder with models of the configured type. Used as tessdata prefix.
func (s *ModelStore) Folder() string {
	return path.Join(s.folder, string(s.modelType))
}

func (s *ModelStore) modelPath(language string) string {
	return path.Join(s.Folder(), language+".traineddata")
}

func (s *ModelStore) hasModel(language string) (bool, error) {
	if _, err := os.Stat(s.modelPath(language)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.Join(errors.New("unexpected error while checking if model exists"), err)
	}
	return true, nil
}

// Makes sure every language can be loaded. Returns tessdata prefix to use, or empty string when system
// installed models cover all the languages.
//
// Languages found in the store folder are preferred. Missing languages are satisfied by system models, or, when
// download is allowed, are downloaded into the store folder.
func (s *ModelStore) Ensure(ctx context.Context, languages []string, systemLanguages []string, allowDownload bool) (string, error) {
	var inStore, missing []string
	for _, language := range languages {
		ok, err := s.hasModel(language)
		if err != nil {
			return "", err
		}
		if ok {
			inStore = append(inStore, language)
		} else {
			missing = append(missing, language)
		}
	}

	if len(missing) == 0 {
		return s.Folder(), nil
	}

	var notInSystem []string
	for _, language := range missing {
		if !slices.Contains(systemLanguages, language) {
			notInSystem = append(notInSystem, language)
		}
	}

	// Tesseract accepts single data folder, so both sources cannot be mixed
	if len(notInSystem) == 0 && len(inStore) == 0 {
		return "", nil
	}

	if !allowDownload {
		if len(notInSystem) == 0 {
			notInSystem = missing
		}
		return "", &ErrModelUnavailable{Languages: notInSystem}
	}

	if err := os.MkdirAll(s.Folder(), 0700); err != nil {
		return "", errors.Join(errors.New("failed to create folder for models"), err)
	}
	for _, language := range missing {
		if err := s.downloadModel(ctx, language); err != nil {
			return "", errors.Join(errors.New("failed to download language model "+language), err)
		}
	}

	return s.Folder(), nil
}

func (s *ModelStore) downloadModel(ctx context.Context, language string) error {
	link := s.baseURL + language + ".traineddata"
	s.log.WithField("language", language).WithField("url", link).Info("Downloading language model")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return errors.Join(errors.New("failed to prepare HTTP request"), err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(s.modelPath(language)), "*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpFile.Name(), s.modelPath(language))
}
