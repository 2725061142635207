package annotation

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strings"
)

// TargetFormat identifies one of the supported label encodings.
type TargetFormat string

const (
	// FormatYOLO is the class-indexed normalized text format.
	FormatYOLO TargetFormat = "yolo"
	// FormatPascalVOC is the per-image XML format.
	FormatPascalVOC TargetFormat = "pascal_voc"
	// FormatKITTI is the flat 15-field text format.
	FormatKITTI TargetFormat = "tao_kitti"
)

// ErrUnsupportedFormat indicates a target format string nobody encodes.
var ErrUnsupportedFormat = errors.New("unsupported target format")

// Supported reports whether an encoder exists for the format.
func (f TargetFormat) Supported() bool {
	switch f {
	case FormatYOLO, FormatPascalVOC, FormatKITTI:
		return true
	}
	return false
}

// EncodedLabel is the content of one label file plus the extension it
// should be written with.
type EncodedLabel struct {
	Content string
	Ext     string
}

// Encode dispatches to the encoder for format. imageFileName is the output
// image filename referenced by formats that embed it.
func Encode(format TargetFormat, imageFileName string, boxes []BoundingBox, imgW, imgH int, labelToID map[string]int) (EncodedLabel, error) {
	switch format {
	case FormatYOLO:
		return EncodedLabel{Content: EncodeYOLO(boxes, imgW, imgH, labelToID), Ext: ".txt"}, nil
	case FormatPascalVOC:
		content, err := EncodePascalVOC(imageFileName, boxes, imgW, imgH)
		if err != nil {
			return EncodedLabel{}, err
		}
		return EncodedLabel{Content: content, Ext: ".xml"}, nil
	case FormatKITTI:
		return EncodedLabel{Content: EncodeKITTI(boxes), Ext: ".txt"}, nil
	default:
		return EncodedLabel{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// EncodeYOLO emits one "class_id x_center y_center width height" line per
// box with a known label, all geometry normalized by the image dimensions
// and clamped to [0,1]. Returns the empty string when dimensions are
// unknown.
func EncodeYOLO(boxes []BoundingBox, imgW, imgH int, labelToID map[string]int) string {
	if imgW == 0 || imgH == 0 {
		return ""
	}

	w := float64(imgW)
	h := float64(imgH)

	var sb strings.Builder
	for _, b := range boxes {
		classID, ok := labelToID[b.Label]
		if !ok {
			continue
		}

		xCenter := clamp01((b.Xtl + b.Xbr) / 2.0 / w)
		yCenter := clamp01((b.Ytl + b.Ybr) / 2.0 / h)
		boxW := clamp01((b.Xbr - b.Xtl) / w)
		boxH := clamp01((b.Ybr - b.Ytl) / h)

		fmt.Fprintf(&sb, "%d %.6f %.6f %.6f %.6f\n", classID, xCenter, yCenter, boxW, boxH)
	}
	return sb.String()
}

type vocBndBox struct {
	Xmin int `xml:"xmin"`
	Ymin int `xml:"ymin"`
	Xmax int `xml:"xmax"`
	Ymax int `xml:"ymax"`
}

type vocObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	BndBox    vocBndBox `xml:"bndbox"`
}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type vocAnnotation struct {
	XMLName   xml.Name    `xml:"annotation"`
	Folder    string      `xml:"folder"`
	Filename  string      `xml:"filename"`
	Size      vocSize     `xml:"size"`
	Segmented int         `xml:"segmented"`
	Objects   []vocObject `xml:"object"`
}

// EncodePascalVOC builds one annotation document for an image. Corners are
// rounded to integer pixels; pose, truncated and difficult are fixed
// placeholders.
func EncodePascalVOC(imageFileName string, boxes []BoundingBox, imgW, imgH int) (string, error) {
	doc := vocAnnotation{
		Folder:   "images",
		Filename: imageFileName,
		Size:     vocSize{Width: imgW, Height: imgH, Depth: 3},
	}
	for _, b := range boxes {
		doc.Objects = append(doc.Objects, vocObject{
			Name: b.Label,
			Pose: "Unspecified",
			BndBox: vocBndBox{
				Xmin: roundInt(b.Xtl),
				Ymin: roundInt(b.Ytl),
				Xmax: roundInt(b.Xbr),
				Ymax: roundInt(b.Ybr),
			},
		})
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding pascal voc annotation: %w", err)
	}
	return string(out), nil
}

// EncodeKITTI emits one 15-field line per box: the label token, zero
// placeholders, and the integer-rounded pixel corners.
func EncodeKITTI(boxes []BoundingBox) string {
	var sb strings.Builder
	for _, b := range boxes {
		fmt.Fprintf(&sb, "%s 0 0 0 %d %d %d %d 0 0 0 0 0 0 0\n",
			b.Label, roundInt(b.Xtl), roundInt(b.Ytl), roundInt(b.Xbr), roundInt(b.Ybr))
	}
	return sb.String()
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
