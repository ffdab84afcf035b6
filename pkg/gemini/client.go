package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("decor-ai-be/pkg/gemini")

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var (
	// ErrMalformedResponse is returned when the body of a 200 response cannot be decoded.
	ErrMalformedResponse = errors.New("gemini: malformed response body")
	// ErrEmptyResponse is returned when a response carries no candidate content.
	ErrEmptyResponse = errors.New("gemini: empty response")
)

// APIError is a non-200 answer from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: status %d, body: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth retrying.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after the first one for
	// transport errors, 429 and 5xx. Zero means single attempt.
	MaxRetries uint
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries uint
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
	}
}

// GenerateContent calls models/{model}:generateContent.
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	var res GenerateContentResponse
	if err := c.post(ctx, fmt.Sprintf("/models/%s:generateContent", model), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GenerateImages calls the Imagen models/{model}:predict endpoint.
func (c *Client) GenerateImages(ctx context.Context, model, prompt string, params ImageParameters) ([]GeneratedImage, error) {
	if params.SampleCount <= 0 {
		params.SampleCount = 1
	}
	payload := predictRequest{
		Instances:  []predictInstance{{Prompt: prompt}},
		Parameters: params,
	}
	var res predictResponse
	if err := c.post(ctx, fmt.Sprintf("/models/%s:predict", model), payload, &res); err != nil {
		return nil, err
	}

	images := make([]GeneratedImage, 0, len(res.Predictions))
	for _, p := range res.Predictions {
		if p.BytesBase64Encoded == "" {
			continue
		}
		images = append(images, p)
	}
	return images, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) (err error) {
	ctx, span := tracer.Start(ctx, "gemini.post", trace.WithAttributes(attribute.String("gemini.path", path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	attempt := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payloadJson))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("x-goog-api-key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		res, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		defer res.Body.Close()

		resBody, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if res.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: res.StatusCode, Body: string(resBody)}
			if apiErr.Temporary() {
				return nil, apiErr
			}
			return nil, backoff.Permanent(apiErr)
		}
		return resBody, nil
	}

	resBody, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxRetries+1),
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
