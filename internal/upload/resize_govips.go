//go:build govips && cgo

package upload

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsResizer struct{}

func (govipsResizer) Fit(ctx context.Context, input []byte, format string, maxSide int) ([]byte, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, "", fmt.Errorf("decode source image: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, "", fmt.Errorf("auto rotate: %w", err)
	}
	if err := img.Thumbnail(maxSide, maxSide, vips.InterestingNone); err != nil {
		return nil, "", fmt.Errorf("thumbnail image: %w", err)
	}

	switch format {
	case "jpeg":
		params := vips.NewJpegExportParams()
		params.Quality = 85
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return data, "jpeg", nil
	default:
		params := vips.NewPngExportParams()
		params.Compression = 9
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return data, "png", nil
	}
}
