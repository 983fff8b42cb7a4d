// Package attach turns image files into the base64 data URLs that
// message image parts carry, downscaling oversized images first.
package attach

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/longkey1/nostack/internal/nostack"
	"github.com/rs/zerolog/log"
)

// DefaultMaxSize is the longest allowed image side in pixels.
const DefaultMaxSize = 2048

// ErrNotImage is returned for files that are not images.
var ErrNotImage = errors.New("not an image")

// Formats the API accept and imaging can re-encode.
var resizable = map[string]imaging.Format{
	"image/png":  imaging.PNG,
	"image/jpeg": imaging.JPEG,
	"image/gif":  imaging.GIF,
	"image/bmp":  imaging.BMP,
}

// LoadFile reads an image file and returns it as a data URL.
func LoadFile(path string, maxSize int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	url, err := Encode(data, maxSize)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return url, nil
}

// Encode returns data as a data URL. Images whose longer side exceeds
// maxSize are scaled down to fit; maxSize <= 0 disables scaling.
func Encode(data []byte, maxSize int) (string, error) {
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w (detected %s)", ErrNotImage, mediaType)
	}

	format, ok := resizable[mediaType]
	if ok && maxSize > 0 {
		resized, changed, err := fit(data, format, maxSize)
		if err != nil {
			return "", err
		}
		if changed {
			data = resized
		}
	}

	url := nostack.FormatDataURL(mediaType, base64.StdEncoding.EncodeToString(data))
	if _, _, ok := nostack.ParseDataURL(url); !ok {
		return "", fmt.Errorf("%w (unsupported type %s)", ErrNotImage, mediaType)
	}
	return url, nil
}

func fit(data []byte, format imaging.Format, maxSize int) ([]byte, bool, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= maxSize && cfg.Height <= maxSize {
		return nil, false, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}
	img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return nil, false, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	log.Debug().Int("from_width", cfg.Width).Int("from_height", cfg.Height).
		Int("width", b.Dx()).Int("height", b.Dy()).Msg("image downscaled")
	return buf.Bytes(), true, nil
}

// Decode returns the raw bytes and media type of a data URL.
func Decode(dataURL string) ([]byte, string, error) {
	mediaType, payload, ok := nostack.ParseDataURL(dataURL)
	if !ok {
		return nil, "", errors.New("not a base64 image data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, mediaType, nil
}

// Describe returns a short label for an image data URL, such as
// "image/png 640x480, 12.3 KB".
func Describe(dataURL string) string {
	data, mediaType, err := Decode(dataURL)
	if err != nil {
		return "invalid image"
	}
	size := fmt.Sprintf("%.1f KB", float64(len(data))/1024)
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return fmt.Sprintf("%s %dx%d, %s", mediaType, cfg.Width, cfg.Height, size)
	}
	return fmt.Sprintf("%s, %s", mediaType, size)
}
