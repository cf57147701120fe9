package scanning

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// billScanPrompt is the shared instruction sent to every vision provider
const billScanPrompt = `This is a receipt or bill image. Please extract and return ONLY the following information in JSON format: 1. total_amount (as a float), 2. description (brief description of what the bill is for based on items or merchant name). Return ONLY the JSON, no other text.`

// DecodeImage turns raw bill bytes into a raster image.
// PDFs are rendered from their first page.
func DecodeImage(data []byte, contentType string) (image.Image, error) {
	mimeType := detectMimeType(data, contentType)

	switch {
	case mimeType == "application/pdf":
		img, err := pdfToImage(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
		}
		return img, nil
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding HEIC/HEIF image: %v", ErrDecodeFailure, err)
		}
		return img, nil
	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding image: %v", ErrDecodeFailure, err)
		}
		return img, nil
	}
}

// pdfToImage renders the first page of a PDF (most bills are single page)
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// detectMimeType prefers the declared content type and sniffs the bytes otherwise
func detectMimeType(data []byte, contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// PrepareImage passes formats every provider accepts through untouched and
// converts the rest (HEIC, PDF, ...) to PNG. Bytes that cannot be converted
// are sent as they are; the model may still read them.
func PrepareImage(imageData []byte, contentType string) ([]byte, string) {
	mimeType := detectMimeType(imageData, contentType)
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		if !isHEICFormat(imageData) {
			return imageData, mimeType
		}
	}

	img, err := DecodeImage(imageData, mimeType)
	if err != nil {
		return imageData, rawMimeType(mimeType)
	}
	pngData, err := encodePNG(img)
	if err != nil {
		return imageData, rawMimeType(mimeType)
	}
	return pngData, "image/png"
}

// rawMimeType labels unconverted bytes; anything not declared as an image goes out as JPEG
func rawMimeType(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType
	}
	return "image/jpeg"
}

// dataURI encodes image bytes as a base64 data URI
func dataURI(imageData []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(imageData)
}
