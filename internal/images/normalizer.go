package images

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	// decoders
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrImageProcessing wraps every decode/encode failure; callers downgrade it to a warning
	ErrImageProcessing = errors.New("image processing failed")
	// ErrNotImage means the bytes do not sniff as an image
	ErrNotImage = errors.New("not an image")
)

const (
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1920
	DefaultQuality   = 82
	// DefaultMaxPixels caps the decoded size, about 160 MB as RGBA
	DefaultMaxPixels = 40_000_000

	outputContentType = "image/jpeg"
	outputExtension   = ".jpg"
)

// NormalizerConfig bounds output resolution and sets the JPEG quality.
// MaxPixels limits the source dimensions accepted for decoding.
type NormalizerConfig struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	MaxPixels int64
}

// StoredImage is a normalized image in durable storage
type StoredImage struct {
	URL    string
	Key    string
	Width  int
	Height int
	Size   int
}

// Normalizer resizes and re-encodes images before storing them
type Normalizer struct {
	store  Store
	cfg    NormalizerConfig
	logger *logrus.Entry
}

// NewNormalizer creates a new image normalizer
func NewNormalizer(store Store, cfg NormalizerConfig, logger *logrus.Entry) *Normalizer {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = DefaultMaxHeight
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Normalizer{
		store:  store,
		cfg:    cfg,
		logger: logger.WithField("component", "image_normalizer"),
	}
}

// NormalizeFile normalizes the image at path and always removes the file
func (n *Normalizer) NormalizeFile(ctx context.Context, path, tenantID, keyPrefix string) (*StoredImage, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			n.logger.WithError(err).WithField("path", path).Warn("Failed to remove temp image")
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageProcessing, err)
	}
	return n.NormalizeBytes(ctx, data, tenantID, keyPrefix)
}

// NormalizeBytes normalizes raw image bytes and stores the result
func (n *Normalizer) NormalizeBytes(ctx context.Context, data []byte, tenantID, keyPrefix string) (*StoredImage, error) {
	encoded, w, h, err := n.Encode(data)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(encoded)
	key := strings.Trim(keyPrefix, "/") + "/" + hex.EncodeToString(sum[:16]) + outputExtension
	key = strings.TrimPrefix(key, "/")

	url, err := n.store.Put(ctx, Object{
		TenantID:    tenantID,
		Key:         key,
		Data:        encoded,
		ContentType: outputContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	return &StoredImage{URL: url, Key: key, Width: w, Height: h, Size: len(encoded)}, nil
}

// Encode decodes data, fits it inside the configured box without upscaling,
// flattens transparency onto white and re-encodes as JPEG. Identical input
// and configuration give identical bytes. Sources larger than MaxPixels are
// rejected from their header, before any pixel is decoded.
func (n *Normalizer) Encode(data []byte) ([]byte, int, int, error) {
	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return nil, 0, 0, fmt.Errorf("%w: %w (detected %s)", ErrImageProcessing, ErrNotImage, mt.String())
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: decode header: %v", ErrImageProcessing, err)
	}
	if pixels := int64(header.Width) * int64(header.Height); pixels > n.cfg.MaxPixels {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit",
			ErrImageProcessing, header.Width, header.Height, n.cfg.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: decode: %v", ErrImageProcessing, err)
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), n.cfg.MaxWidth, n.cfg.MaxHeight)
	if w == 0 || h == 0 {
		return nil, 0, 0, fmt.Errorf("%w: empty image", ErrImageProcessing)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.cfg.Quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: encode: %v", ErrImageProcessing, err)
	}
	return buf.Bytes(), w, h, nil
}

// FitWithin scales (w, h) down to fit (maxW, maxH), keeping the aspect ratio.
// Images already inside the box keep their size.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	return max(nw, 1), max(nh, 1)
}
