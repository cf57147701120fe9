package scanning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrModelUnavailable covers transport failures, timeouts and non-2xx answers.
	ErrModelUnavailable = errors.New("vision model unavailable")

	// ErrModelResponseMalformed means the model answered but not with usable JSON.
	ErrModelResponseMalformed = errors.New("vision model response malformed")

	// ErrDecodeFailure means the bytes could not be turned into a raster image.
	ErrDecodeFailure = errors.New("image decode failure")
)

// BillData contains the fields a vision model extracted from a bill
type BillData struct {
	TotalAmount decimal.NullDecimal `json:"total_amount"`
	Description string              `json:"description"`
}

// Scanner defines the interface for vision model providers
type Scanner interface {
	// ScanBill asks the named model to read the bill image
	ScanBill(ctx context.Context, model string, imageData []byte, contentType string) (*BillData, error)
	// Close closes the scanner and releases resources
	Close() error
}

// VisionModelSpec is one entry of the model cascade.
type VisionModelSpec struct {
	Provider string
	Model    string
}

func (s VisionModelSpec) String() string {
	return s.Provider + ":" + s.Model
}

// DefaultCascade is ordered by preference: best but most expensive first.
var DefaultCascade = []VisionModelSpec{
	{Provider: ProviderOpenRouter, Model: "openai/gpt-4-vision-preview"},
	{Provider: ProviderOpenRouter, Model: "anthropic/claude-3-haiku"},
	{Provider: ProviderOpenRouter, Model: "google/gemini-pro-vision"},
}

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

// ParseCascade parses a comma separated list of provider:model entries.
// Model ids may themselves contain colons (e.g. "qwen/qwen2.5-vl-32b-instruct:free"),
// so only the first colon separates the provider.
func ParseCascade(list string) ([]VisionModelSpec, error) {
	var specs []VisionModelSpec
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		provider, model, ok := strings.Cut(entry, ":")
		if !ok || provider == "" || model == "" {
			return nil, fmt.Errorf("invalid vision model %q: want provider:model", entry)
		}
		switch provider {
		case ProviderOpenRouter, ProviderGemini, ProviderOllama:
		default:
			return nil, fmt.Errorf("unknown vision provider %q", provider)
		}
		specs = append(specs, VisionModelSpec{Provider: provider, Model: model})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("vision model list is empty")
	}
	return specs, nil
}
