package bill

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/xpense/internal/scanning"
	"github.com/zombor/xpense/internal/storage"
)

// ErrEmptyImage is returned when there are no bytes to process
var ErrEmptyImage = errors.New("bill image is empty")

// SourceOCR marks an amount that came from the regex pass over OCR text
const SourceOCR = "ocr"

// DefaultFolder is where bill images are uploaded unless configured otherwise
const DefaultFolder = "bills"

// Result is the outcome of analyzing one bill image. Amount, when valid,
// comes from exactly one method, named by Source.
type Result struct {
	ImageURL    string              `json:"image_url"`
	Amount      decimal.NullDecimal `json:"amount"`
	Description string              `json:"description"`
	RawText     string              `json:"raw_text"`
	Source      string              `json:"source,omitempty"`
}

// TextExtractor runs OCR over a decoded image
type TextExtractor interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// Config holds the pipeline settings
type Config struct {
	Cascade []scanning.VisionModelSpec
	Folder  string
}

// Processor uploads a bill image and extracts what it can from it
type Processor struct {
	uploader storage.Uploader
	scanners map[string]scanning.Scanner
	cascade  []scanning.VisionModelSpec
	ocr      TextExtractor
	decode   func(data []byte, contentType string) (image.Image, error)
	prepare  func(data []byte, contentType string) ([]byte, string)
	folder   string
	logger   *slog.Logger
}

// NewProcessor creates a Processor. scanners is keyed by provider name; cascade
// entries whose provider has no scanner are skipped.
func NewProcessor(uploader storage.Uploader, scanners map[string]scanning.Scanner, ocr TextExtractor, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cascade == nil {
		cfg.Cascade = scanning.DefaultCascade
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}

	return &Processor{
		uploader: uploader,
		scanners: scanners,
		cascade:  append([]scanning.VisionModelSpec(nil), cfg.Cascade...),
		ocr:      ocr,
		decode:   scanning.DecodeImage,
		prepare:  scanning.PrepareImage,
		folder:   cfg.Folder,
		logger:   logger,
	}
}

// Process uploads the image and then analyzes it. Only the upload can fail the
// call; every analysis failure degrades to an empty field.
func (p *Processor) Process(ctx context.Context, data []byte, contentType string) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrEmptyImage
	}

	url, err := p.uploader.Upload(ctx, data, p.folder)
	if err != nil {
		if !errors.Is(err, storage.ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
		}
		return Result{}, fmt.Errorf("uploading bill image: %w", err)
	}

	result := Result{ImageURL: url}
	pass := &ocrPass{processor: p, data: data, contentType: contentType}

	if scan := p.scan(ctx, data, contentType); scan.ok {
		result.Amount = decimal.NewNullDecimal(scan.amount)
		result.Description = scan.description
		result.Source = scan.source
	} else if text := pass.run(ctx); text.ok {
		if amount := scanning.ParseAmount(text.text); amount.Valid {
			result.Amount = amount
			result.Source = SourceOCR
		}
	}

	// Audit trail: kept even when a vision model already answered.
	result.RawText = pass.run(ctx).text

	p.logger.Info("Bill analyzed",
		"image_url", result.ImageURL,
		"source", result.Source,
		"has_amount", result.Amount.Valid,
		"raw_text_len", len(result.RawText),
	)

	return result, nil
}

type scanOutcome struct {
	amount      decimal.Decimal
	description string
	source      string
	ok          bool
}

// scan walks the cascade in order and stops at the first usable answer.
// HEIC and PDF bills are converted once here rather than per model.
func (p *Processor) scan(ctx context.Context, data []byte, contentType string) scanOutcome {
	if len(p.cascade) == 0 {
		return scanOutcome{}
	}
	data, contentType = p.prepare(data, contentType)

	for _, spec := range p.cascade {
		scanner, ok := p.scanners[spec.Provider]
		if !ok {
			p.logger.Warn("No scanner configured for vision provider", "model", spec.String())
			continue
		}

		start := time.Now()
		extracted, err := scanner.ScanBill(ctx, spec.Model, data, contentType)
		if err != nil {
			p.logger.Warn("Vision model failed",
				"model", spec.String(),
				"elapsed_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			continue
		}
		if extracted == nil || !extracted.TotalAmount.Valid {
			p.logger.Warn("Vision model returned no total", "model", spec.String())
			continue
		}

		p.logger.Info("Vision model succeeded",
			"model", spec.String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return scanOutcome{
			amount:      extracted.TotalAmount.Decimal,
			description: extracted.Description,
			source:      "vision:" + spec.String(),
			ok:          true,
		}
	}
	return scanOutcome{}
}

type ocrOutcome struct {
	text string
	ok   bool
}

// ocrPass decodes and recognises the image at most once per request
type ocrPass struct {
	processor   *Processor
	data        []byte
	contentType string

	done    bool
	outcome ocrOutcome
}

func (o *ocrPass) run(ctx context.Context) ocrOutcome {
	if o.done {
		return o.outcome
	}
	o.done = true

	p := o.processor
	if p.ocr == nil {
		return o.outcome
	}

	img, err := p.decode(o.data, o.contentType)
	if err != nil {
		p.logger.Warn("OCR decode failed", "content_type", o.contentType, "error", err)
		return o.outcome
	}

	text, err := p.ocr.ExtractText(ctx, img)
	if err != nil {
		p.logger.Warn("OCR extraction failed", "error", err)
		return o.outcome
	}

	o.outcome = ocrOutcome{text: text, ok: true}
	return o.outcome
}
