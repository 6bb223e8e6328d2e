package upload

import (
	"context"
	"fmt"
)

// DefaultMaxBytes matches the request body limit of the stylize backend,
// which answers larger uploads with 413.
const DefaultMaxBytes = 15_000_000

const DefaultMaxSide = 4096

// DefaultMaxPixels bounds what the normalizer will fully decode. A small,
// highly compressed file can declare dimensions that need gigabytes.
const DefaultMaxPixels = 64_000_000

type resizer interface {
	Fit(ctx context.Context, input []byte, format string, maxSide int) (data []byte, outFormat string, err error)
}

// Normalizer shrinks uploads that would be rejected for size.
type Normalizer struct {
	maxBytes  int
	maxSide   int
	maxPixels int
	resizer   resizer
}

func NewNormalizer(maxBytes, maxSide, maxPixels int) (*Normalizer, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	r, err := newResizer()
	if err != nil {
		return nil, fmt.Errorf("build resizer: %w", err)
	}
	return &Normalizer{maxBytes: maxBytes, maxSide: maxSide, maxPixels: maxPixels, resizer: r}, nil
}

func (n *Normalizer) MaxBytes() int {
	return n.maxBytes
}

func (n *Normalizer) Normalize(ctx context.Context, u Upload) (Upload, error) {
	if u.Size() <= n.maxBytes {
		return u, nil
	}

	info, err := Inspect(u.Data)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %d bytes, not a decodable image", ErrTooLarge, u.Size())
	}
	if pixels := int64(info.Width) * int64(info.Height); pixels > int64(n.maxPixels) {
		return Upload{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, info.Width, info.Height, n.maxPixels)
	}

	side := n.maxSide
	if longest := info.LongestSide(); longest < side {
		side = longest
	}

	data, format, err := n.resizer.Fit(ctx, u.Data, info.Format, side)
	if err != nil {
		return Upload{}, fmt.Errorf("downscale %s: %w", u.Name, err)
	}
	if len(data) > n.maxBytes {
		return Upload{}, fmt.Errorf("%w: %d bytes after downscaling, limit %d", ErrTooLarge, len(data), n.maxBytes)
	}

	u.Data = data
	u.ContentType = contentTypeForFormat(format)
	return u, nil
}
