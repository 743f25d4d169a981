package api

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestImage(t *testing.T, width, height int, asPNG bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	if asPNG {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestProcessPhoto_SquareOutput(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		asPNG         bool
	}{
		{"landscape jpeg", 640, 480, false},
		{"portrait png", 300, 500, true},
		{"small square", 50, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := encodeTestImage(t, tt.width, tt.height, tt.asPNG)

			processed, err := processPhoto(raw)
			if err != nil {
				t.Fatalf("processPhoto: %v", err)
			}

			decoded, format, err := image.Decode(bytes.NewReader(processed))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if format != "jpeg" {
				t.Fatalf("output format = %q, want jpeg", format)
			}
			bounds := decoded.Bounds()
			if bounds.Dx() != photoEdgePixels || bounds.Dy() != photoEdgePixels {
				t.Fatalf("output size = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), photoEdgePixels, photoEdgePixels)
			}
		})
	}
}

func TestProcessPhoto_RejectsGarbage(t *testing.T) {
	if _, err := processPhoto([]byte("definitely not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestProcessPhoto_Deterministic(t *testing.T) {
	raw := encodeTestImage(t, 320, 240, false)

	a, err := processPhoto(raw)
	if err != nil {
		t.Fatalf("processPhoto: %v", err)
	}
	b, err := processPhoto(raw)
	if err != nil {
		t.Fatalf("processPhoto: %v", err)
	}
	// 跳过重复上传靠内容哈希，处理必须是确定性的。
	if !bytes.Equal(a, b) {
		t.Fatal("processPhoto output is not deterministic")
	}
}
