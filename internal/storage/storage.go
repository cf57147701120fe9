package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrStorageUnavailable is returned when the object store cannot accept a bill image.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Uploader defines the interface for durable bill image storage
type Uploader interface {
	// Upload stores the bytes under folder and returns a public retrieval URL
	Upload(ctx context.Context, data []byte, folder string) (string, error)
}

// objectKey builds a timestamp-keyed object name. The random suffix keeps two
// uploads within the same second apart; keys are never derived from content.
func objectKey(folder string, now time.Time, data []byte) string {
	name := fmt.Sprintf("bill_%s_%s%s",
		now.Format("20060102_150405"),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		extensionFor(data),
	)
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

func extensionFor(data []byte) string {
	switch ftypBrand(data) {
	case "heic", "heix", "heim", "heis", "hevc", "heif", "mif1", "msf1":
		return ".heic"
	case "avif", "avis":
		return ".avif"
	}
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".jpg"
	}
}

// ftypBrand returns the major brand of an ISO-BMFF file, or "" for anything else
func ftypBrand(data []byte) string {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return ""
	}
	return string(data[8:12])
}

// ContentTypeFor reports the MIME type stored objects are served with
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".avif":
		return "image/avif"
	default:
		return "image/jpeg"
	}
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
