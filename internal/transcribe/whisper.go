// Package transcribe turns recorded customer audio into text via an
// OpenAI-style transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("transcribe: service unavailable")

// Transcriber converts an audio payload to text. An empty transcript is not
// an error; it routes to an unclear turn downstream.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type WhisperClient struct {
	http   *http.Client
	base   string
	apiKey string
	model  string
	logger *zap.Logger
}

func NewWhisperClient(baseURL, apiKey, model string, logger *zap.Logger) *WhisperClient {
	return &WhisperClient{
		http:   &http.Client{Timeout: 30 * time.Second},
		base:   baseURL,
		apiKey: apiKey,
		model:  model,
		logger: logger.Named("transcribe"),
	}
}

func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "utterance.webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, string(b))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := strings.TrimSpace(parsed.Text)
	c.logger.Debug("transcribed audio",
		zap.Int("bytes", len(audio)),
		zap.Int("chars", len(text)),
		zap.Duration("took", time.Since(start)))
	return text, nil
}
