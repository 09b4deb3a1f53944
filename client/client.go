// Client for the OCR server HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// HTTP client used to make requests to the server
	Client *http.Client
	// Server base URL. For example http://127.0.0.1:8884
	BaseURL string
	// Language codes sent on init. Order matters, primary language goes first.
	Languages []string
	// Allow server to download missing models
	AllowDownload bool
	// Ask server to use hardware acceleration if available
	UseAccelerator bool

	// How many times init is attempted before giving up
	InitRetries uint
	// Delay between init attempts
	InitDelay time.Duration
	// Timeouts for single init and OCR requests. 0 disables timeout.
	InitTimeout time.Duration
	OCRTimeout  time.Duration

	Logger logrus.FieldLogger
}

func DefaultConfig() Config {
	return Config{
		Client:         http.DefaultClient,
		BaseURL:        "http://127.0.0.1:8884",
		Languages:      []string{"en"},
		AllowDownload:  false,
		UseAccelerator: false,
		InitRetries:    10,
		InitDelay:      time.Second,
		InitTimeout:    5 * time.Minute,
		OCRTimeout:     2 * time.Minute,
		Logger:         logrus.StandardLogger(),
	}
}

// Non 200 response from the server
type ResponseError struct {
	StatusCode int
	// Error kind reported by server. Empty if response was not JSON
	Kind    string
	Message string
}

func (e *ResponseError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server responded with status %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server responded with status %d: %s", e.StatusCode, e.Message)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type Client struct {
	config Config
}

func New(config Config) *Client {
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{config: config}
}

// Sends init request with configured languages and options
func (c *Client) Init(ctx context.Context) error {
	if c.config.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.InitTimeout)
		defer cancel()
	}

	payload, err := json.Marshal(struct {
		Langs    string `json:"langs"`
		Download bool   `json:"download"`
		GPU      bool   `json:"gpu"`
	}{
		Langs:    strings.Join(c.config.Languages, ","),
		Download: c.config.AllowDownload,
		GPU:      c.config.UseAccelerator,
	})
	if err != nil {
		return errors.Join(errors.New("failed to marshall init request"), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/init", bytes.NewReader(payload))
	if err != nil {
		return errors.Join(errors.New("failed to prepare HTTP request"), err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

// Calls Init until it succeeds or retries are exhausted. Server may still be starting, so transport errors are retried as well.
// Configuration errors reported by the server are returned immediately.
func (c *Client) InitWithRetry(ctx context.Context) error {
	attempts := max(c.config.InitRetries, 1)

	var err error
	for attempt := uint(1); attempt <= attempts; attempt++ {
		err = c.Init(ctx)
		if err == nil {
			return nil
		}

		var responseError *ResponseError
		if errors.As(err, &responseError) && responseError.StatusCode < http.StatusInternalServerError {
			return err
		}

		c.config.Logger.WithError(err).WithField("attempt", attempt).Warn("OCR server init failed")
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(c.config.InitDelay):
		}
	}

	return errors.Join(fmt.Errorf("failed to initialize OCR server after %d attempts", attempts), err)
}

// Uploads image and returns recognized text
func (c *Client) OCR(ctx context.Context, filename string, image []byte) (string, error) {
	if c.config.OCRTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.OCRTimeout)
		defer cancel()
	}
	if filename == "" {
		filename = "data"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", mimetype.Detect(image).String())
	imagePart, err := writer.CreatePart(header)
	if err != nil {
		return "", errors.Join(errors.New("failed to prepare multipart form data: failed to prepare image for sending as file"), err)
	}
	if _, err = imagePart.Write(image); err != nil {
		return "", errors.Join(errors.New("failed to prepare multipart form data: failed to write image to multipart"), err)
	}
	if err = writer.Close(); err != nil {
		return "", errors.Join(errors.New("failed to prepare multipart form data: failed to finalize writer"), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/ocr", body)
	if err != nil {
		return "", errors.Join(errors.New("failed to prepare HTTP request"), err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := c.do(req)
	if err != nil {
		return "", err
	}
	return string(response), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.config.Client.Do(req)
	if err != nil {
		return nil, errors.Join(errors.New("HTTP request to OCR server failed"), err)
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(errors.New("error while reading response body from OCR server"), err)
	}

	if resp.StatusCode != http.StatusOK {
		responseError := &ResponseError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(responseBytes))}
		var errorBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(responseBytes, &errorBody) == nil && errorBody.Error != "" {
			responseError.Kind = errorBody.Error
			responseError.Message = errorBody.Message
		}
		return nil, responseError
	}

	return responseBytes, nil
}
