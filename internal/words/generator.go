// internal/words/generator.go
package words

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/sirupsen/logrus"
)

// Generator produces the result of combining two words. It may be slow and may fail.
type Generator interface {
	Generate(ctx context.Context, w1, w2 string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, w1, w2 string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, w1, w2 string) (string, error) {
	return f(ctx, w1, w2)
}

// HTTPGenerator asks a remote service for combination results.
//
// Request:  POST <baseURL>/combine {"word1": "...", "word2": "..."}
// Response: {"result": "..."}
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewHTTPGenerator(baseURL string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		headers: map[string]string{"Content-Type": "application/json"},
	}
}

func (g *HTTPGenerator) SetHeader(key, value string) {
	g.headers[key] = value
}

type generateRequest struct {
	Word1 string `json:"word1"`
	Word2 string `json:"word2"`
}

type generateResponse struct {
	Result string `json:"result"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, w1, w2 string) (string, error) {
	body, err := json.Marshal(generateRequest{Word1: w1, Word2: w2})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/combine", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range g.headers {
		req.Header.Set(key, value)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("generator returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode generator response: %w", err)
	}
	return out.Result, nil
}

// Fallback bounds a Generator with a timeout and never fails: when the wrapped generator errors,
// times out or returns an empty word, the first input word is the result.
type Fallback struct {
	Next    Generator
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

func (f *Fallback) Generate(ctx context.Context, w1, w2 string) (string, error) {
	if f.Next == nil {
		return w1, nil
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	result, err := f.Next.Generate(ctx, w1, w2)
	result = models.NormalizeWord(result)
	if err == nil && result == "" {
		err = fmt.Errorf("empty result")
	}
	if err != nil {
		f.Logger.WithError(fmt.Errorf("%w: %v", apperr.ErrGeneratorFailure, err)).WithFields(logrus.Fields{
			"word1": w1,
			"word2": w2,
		}).Warn("generator failed, falling back to first word")
		return w1, nil
	}
	return result, nil
}
