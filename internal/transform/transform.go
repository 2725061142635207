// Package transform implements the image operations of the conversion
// pipeline: letterbox and stretch resizing that revalue box geometry along
// with the pixels, and padded object crops.
package transform

import (
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"go-dataset-converter/internal/annotation"
)

// Letterbox resizes img preserving aspect ratio onto a targetW x targetH
// canvas with centered padding. origW and origH are the annotation-declared
// dimensions, which define the coordinate space of boxes. Returned boxes
// are revalued by coord*scale+offset on the matching axis.
func Letterbox(img image.Image, origW, origH, targetW, targetH int, boxes []annotation.BoundingBox) (image.Image, []annotation.BoundingBox) {
	scale := math.Min(float64(targetW)/float64(origW), float64(targetH)/float64(origH))
	newW := int(math.Round(float64(origW) * scale))
	newH := int(math.Round(float64(origH) * scale))

	resized := imaging.Resize(img, newW, newH, imaging.Linear)

	canvas := imaging.New(targetW, targetH, color.NRGBA{0, 0, 0, 255})
	offsetX := (targetW - newW) / 2
	offsetY := (targetH - newH) / 2
	out := imaging.Paste(canvas, resized, image.Pt(offsetX, offsetY))

	ox := float64(offsetX)
	oy := float64(offsetY)
	remapped := make([]annotation.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		remapped = append(remapped, annotation.BoundingBox{
			Label: b.Label,
			Xtl:   b.Xtl*scale + ox,
			Ytl:   b.Ytl*scale + oy,
			Xbr:   b.Xbr*scale + ox,
			Ybr:   b.Ybr*scale + oy,
		})
	}
	return out, remapped
}

// Stretch resizes img to exactly targetW x targetH, scaling each axis
// independently. An axis whose original dimension is unknown keeps scale
// 1.0 for box geometry.
func Stretch(img image.Image, origW, origH, targetW, targetH int, boxes []annotation.BoundingBox) (image.Image, []annotation.BoundingBox) {
	resized := imaging.Resize(img, targetW, targetH, imaging.Linear)

	scaleX := 1.0
	if origW > 0 {
		scaleX = float64(targetW) / float64(origW)
	}
	scaleY := 1.0
	if origH > 0 {
		scaleY = float64(targetH) / float64(origH)
	}

	remapped := make([]annotation.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		remapped = append(remapped, annotation.BoundingBox{
			Label: b.Label,
			Xtl:   b.Xtl * scaleX,
			Ytl:   b.Ytl * scaleY,
			Xbr:   b.Xbr * scaleX,
			Ybr:   b.Ybr * scaleY,
		})
	}
	return resized, remapped
}

// CropRect computes the integer pixel rectangle for one box expanded by a
// non-negative padding on all sides. The low sides clamp at zero; the high
// sides clamp at the image dimension only when it is known.
func CropRect(b annotation.BoundingBox, padding, imgW, imgH int) image.Rectangle {
	pad := float64(padding)

	x1 := int(math.Floor(b.Xtl - pad))
	if x1 < 0 {
		x1 = 0
	}
	y1 := int(math.Floor(b.Ytl - pad))
	if y1 < 0 {
		y1 = 0
	}

	x2 := int(math.Ceil(b.Xbr + pad))
	if imgW > 0 && x2 > imgW {
		x2 = imgW
	}
	y2 := int(math.Ceil(b.Ybr + pad))
	if imgH > 0 && y2 > imgH {
		y2 = imgH
	}

	return image.Rect(x1, y1, x2, y2)
}

// Crop cuts the padded region of one box out of img.
func Crop(img image.Image, b annotation.BoundingBox, padding, imgW, imgH int) image.Image {
	return imaging.Crop(img, CropRect(b, padding, imgW, imgH))
}

// Decode reads an image in any of the supported raster formats
// (jpeg, png, gif, bmp, tiff via imaging's registrations, webp via
// golang.org/x/image).
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// Encode writes img in the format inferred from the original file
// extension, falling back to PNG for unrecognized extensions.
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return imaging.Encode(w, img, imaging.JPEG)
	case ".png":
		return imaging.Encode(w, img, imaging.PNG)
	case ".bmp":
		return imaging.Encode(w, img, imaging.BMP)
	case ".tif", ".tiff":
		return imaging.Encode(w, img, imaging.TIFF)
	case ".webp":
		return webp.Encode(w, img, &webp.Options{Quality: 90})
	default:
		return imaging.Encode(w, img, imaging.PNG)
	}
}
