package upload

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func BenchmarkResizerFitPNG(b *testing.B) {
	benchmarkFit(b, "png")
}

func BenchmarkResizerFitJPEG(b *testing.B) {
	benchmarkFit(b, "jpeg")
}

func benchmarkFit(b *testing.B, format string) {
	source := benchmarkPNG(b, 1920, 1080)
	if err := Startup(); err != nil {
		b.Fatalf("startup: %v", err)
	}
	r, err := newResizer()
	if err != nil {
		b.Fatalf("new resizer: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := r.Fit(context.Background(), source, format, 640); err != nil {
			b.Fatalf("fit: %v", err)
		}
	}
}

func benchmarkPNG(b *testing.B, w, h int) []byte {
	b.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		b.Fatalf("encode benchmark png: %v", err)
	}
	return buf.Bytes()
}
