package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig holds the settings for the OpenRouter scanner
type OpenRouterConfig struct {
	APIKey   string
	BaseURL  string        // default https://openrouter.ai/api/v1
	SiteURL  string        // sent as HTTP-Referer
	SiteName string        // sent as X-Title
	Timeout  time.Duration // per model call, default 30s
}

// OpenRouter implements the Scanner interface against an OpenAI-compatible
// chat completions endpoint
type OpenRouter struct {
	client  *openai.Client
	timeout time.Duration
}

// siteHeaders adds the site identity headers OpenRouter uses for attribution
type siteHeaders struct {
	base     http.RoundTripper
	siteURL  string
	siteName string
}

func (t *siteHeaders) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.siteURL != "" {
		req.Header.Set("HTTP-Referer", t.siteURL)
	}
	if t.siteName != "" {
		req.Header.Set("X-Title", t.siteName)
	}
	return t.base.RoundTrip(req)
}

// NewOpenRouter creates a new OpenRouter Scanner instance
func NewOpenRouter(cfg OpenRouterConfig) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &siteHeaders{
			base:     http.DefaultTransport,
			siteURL:  cfg.SiteURL,
			siteName: cfg.SiteName,
		},
	}

	return &OpenRouter{
		client:  openai.NewClientWithConfig(clientCfg),
		timeout: cfg.Timeout,
	}, nil
}

// ScanBill sends the image and the extraction prompt to one model
func (o *OpenRouter) ScanBill(ctx context.Context, model string, imageData []byte, contentType string) (*BillData, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	finalImageData, mimeType := PrepareImage(imageData, contentType)

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: billScanPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURI(finalImageData, mimeType),
						},
					},
				},
			},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: openrouter status %d: %s", ErrModelUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: calling openrouter: %v", ErrModelUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in openrouter response", ErrModelUnavailable)
	}

	data, err := parseBillJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing bill data: %w", err)
	}

	return data, nil
}

// Close is a no-op for the HTTP client
func (o *OpenRouter) Close() error {
	return nil
}
