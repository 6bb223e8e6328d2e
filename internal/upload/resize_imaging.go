package upload

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
)

type imagingResizer struct{}

func (imagingResizer) Fit(ctx context.Context, input []byte, format string, maxSide int) ([]byte, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}

	src, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode source image: %w", err)
	}

	dst := imaging.Fit(src, maxSide, maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = imaging.Encode(&buf, dst, imaging.JPEG, imaging.JPEGQuality(85))
	default:
		// gif and webp lose animation here; the first frame is kept as png.
		format = "png"
		err = imaging.Encode(&buf, dst, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), format, nil
}
