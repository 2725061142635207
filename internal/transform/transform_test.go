package transform

import (
	"bytes"
	"image"
	"math"
	"testing"

	"go-dataset-converter/internal/annotation"
)

func testImage(w, h int) image.Image {
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

func TestLetterbox(t *testing.T) {
	img := testImage(400, 300)
	boxes := []annotation.BoundingBox{{Label: "dog", Xtl: 10, Ytl: 10, Xbr: 110, Ybr: 60}}

	out, remapped := Letterbox(img, 400, 300, 200, 200, boxes)

	if b := out.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("canvas = %dx%d, want 200x200", b.Dx(), b.Dy())
	}

	// scale = min(200/400, 200/300) = 0.5; content 200x150 centered with
	// offsets (0, 25).
	got := remapped[0]
	want := annotation.BoundingBox{Label: "dog", Xtl: 5, Ytl: 30, Xbr: 55, Ybr: 55}
	if got != want {
		t.Errorf("remapped box = %+v, want %+v", got, want)
	}
}

func TestLetterboxRoundTrip(t *testing.T) {
	img := testImage(640, 480)
	boxes := []annotation.BoundingBox{{Label: "x", Xtl: 100, Ytl: 50, Xbr: 300, Ybr: 250}}

	_, remapped := Letterbox(img, 640, 480, 320, 320, boxes)

	scale := math.Min(320.0/640.0, 320.0/480.0)
	offsetX := float64((320 - int(math.Round(640*scale))) / 2)
	offsetY := float64((320 - int(math.Round(480*scale))) / 2)

	b := remapped[0]
	back := annotation.BoundingBox{
		Label: b.Label,
		Xtl:   (b.Xtl - offsetX) / scale,
		Ytl:   (b.Ytl - offsetY) / scale,
		Xbr:   (b.Xbr - offsetX) / scale,
		Ybr:   (b.Ybr - offsetY) / scale,
	}
	orig := boxes[0]
	const tol = 1e-9
	if math.Abs(back.Xtl-orig.Xtl) > tol || math.Abs(back.Ytl-orig.Ytl) > tol ||
		math.Abs(back.Xbr-orig.Xbr) > tol || math.Abs(back.Ybr-orig.Ybr) > tol {
		t.Errorf("inverse transform = %+v, want %+v", back, orig)
	}
}

func TestStretch(t *testing.T) {
	img := testImage(400, 300)
	boxes := []annotation.BoundingBox{{Label: "dog", Xtl: 40, Ytl: 30, Xbr: 80, Ybr: 90}}

	out, remapped := Stretch(img, 400, 300, 200, 150, boxes)
	if b := out.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Errorf("stretched = %dx%d, want 200x150", b.Dx(), b.Dy())
	}
	want := annotation.BoundingBox{Label: "dog", Xtl: 20, Ytl: 15, Xbr: 40, Ybr: 45}
	if remapped[0] != want {
		t.Errorf("remapped box = %+v, want %+v", remapped[0], want)
	}
}

func TestStretchUnknownDimensions(t *testing.T) {
	img := testImage(400, 300)
	boxes := []annotation.BoundingBox{{Label: "dog", Xtl: 40, Ytl: 30, Xbr: 80, Ybr: 90}}

	// Unknown original dimensions keep scale 1.0 for box geometry even
	// though the pixels are resized.
	out, remapped := Stretch(img, 0, 0, 200, 150, boxes)
	if b := out.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Errorf("stretched = %dx%d, want 200x150", b.Dx(), b.Dy())
	}
	if remapped[0] != boxes[0] {
		t.Errorf("remapped box = %+v, want unchanged %+v", remapped[0], boxes[0])
	}
}

func TestCropRect(t *testing.T) {
	tests := []struct {
		name    string
		box     annotation.BoundingBox
		padding int
		imgW    int
		imgH    int
		want    image.Rectangle
	}{
		{
			name:    "padding expands and fractional corners widen",
			box:     annotation.BoundingBox{Xtl: 10.3, Ytl: 20.7, Xbr: 110.2, Ybr: 120.9},
			padding: 5,
			imgW:    400, imgH: 300,
			want: image.Rect(5, 15, 116, 126),
		},
		{
			name:    "low sides clamp at zero",
			box:     annotation.BoundingBox{Xtl: 2, Ytl: 3, Xbr: 50, Ybr: 50},
			padding: 10,
			imgW:    400, imgH: 300,
			want: image.Rect(0, 0, 60, 60),
		},
		{
			name:    "high sides clamp at known dimensions",
			box:     annotation.BoundingBox{Xtl: 390, Ytl: 290, Xbr: 399, Ybr: 299},
			padding: 10,
			imgW:    400, imgH: 300,
			want: image.Rect(380, 280, 400, 300),
		},
		{
			name:    "unknown dimensions skip the high clamp",
			box:     annotation.BoundingBox{Xtl: 390, Ytl: 290, Xbr: 399, Ybr: 299},
			padding: 10,
			imgW:    0, imgH: 0,
			want: image.Rect(380, 280, 409, 309),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CropRect(tc.box, tc.padding, tc.imgW, tc.imgH)
			if got != tc.want {
				t.Errorf("CropRect = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCrop(t *testing.T) {
	img := testImage(400, 300)
	box := annotation.BoundingBox{Label: "dog", Xtl: 100, Ytl: 100, Xbr: 200, Ybr: 150}

	cropped := Crop(img, box, 10, 400, 300)
	if b := cropped.Bounds(); b.Dx() != 120 || b.Dy() != 70 {
		t.Errorf("crop = %dx%d, want 120x70", b.Dx(), b.Dy())
	}
}

func TestEncodeDecodeByExtension(t *testing.T) {
	img := testImage(20, 10)

	for _, ext := range []string{".png", ".jpg", ".bmp", ".unknown"} {
		var buf bytes.Buffer
		if err := Encode(&buf, img, ext); err != nil {
			t.Errorf("Encode(%s): %v", ext, err)
			continue
		}
		decoded, err := Decode(&buf)
		if err != nil {
			t.Errorf("Decode(%s): %v", ext, err)
			continue
		}
		if b := decoded.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
			t.Errorf("round trip %s = %dx%d, want 20x10", ext, b.Dx(), b.Dy())
		}
	}
}
