package annotation

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// AnnotationsFileName is the entry the input archive must contain.
const AnnotationsFileName = "annotations.xml"

var (
	// ErrArchiveNotFound indicates the uploaded archive is gone from disk
	ErrArchiveNotFound = errors.New("dataset archive not found")

	// ErrArchiveUnreadable indicates the file exists but is not a readable zip
	ErrArchiveUnreadable = errors.New("dataset archive is not a readable zip")

	// ErrAnnotationsMissing indicates the archive lacks annotations.xml
	ErrAnnotationsMissing = errors.New("annotations.xml not found in archive")
)

type xmlSize struct {
	Width  string `xml:"width"`
	Height string `xml:"height"`
}

type xmlMeta struct {
	OriginalSize *xmlSize `xml:"original_size"`
}

type xmlBox struct {
	Label string `xml:"label,attr"`
	Xtl   string `xml:"xtl,attr"`
	Ytl   string `xml:"ytl,attr"`
	Xbr   string `xml:"xbr,attr"`
	Ybr   string `xml:"ybr,attr"`
}

type xmlImage struct {
	Name   string   `xml:"name,attr"`
	Width  string   `xml:"width,attr"`
	Height string   `xml:"height,attr"`
	Boxes  []xmlBox `xml:"box"`
}

type xmlAnnotations struct {
	XMLName xml.Name   `xml:"annotations"`
	Meta    xmlMeta    `xml:"meta"`
	Images  []xmlImage `xml:"image"`
}

// ParseArchive reads annotations.xml out of the zip at path and builds the
// normalized dataset model. Images without a name attribute and boxes
// without a label attribute are skipped; absent numeric attributes default
// to zero.
func ParseArchive(path string) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, path)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveUnreadable, err)
	}
	defer reader.Close()

	var entry *zip.File
	for _, f := range reader.File {
		if f.Name == AnnotationsFileName {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, ErrAnnotationsMissing
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", AnnotationsFileName, err)
	}
	defer rc.Close()

	return parseDocument(rc)
}

func parseDocument(r io.Reader) (*Dataset, error) {
	var doc xmlAnnotations
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", AnnotationsFileName, err)
	}

	ds := &Dataset{
		Images:    make(map[string]ImageInfo),
		LabelToID: make(map[string]int),
	}

	if doc.Meta.OriginalSize != nil {
		w, err := intAttr(doc.Meta.OriginalSize.Width)
		if err != nil {
			return nil, err
		}
		h, err := intAttr(doc.Meta.OriginalSize.Height)
		if err != nil {
			return nil, err
		}
		ds.Meta.OriginalWidth = w
		ds.Meta.OriginalHeight = h
	}

	labelCounts := make(map[string]int)

	for _, img := range doc.Images {
		if img.Name == "" {
			continue
		}

		width, err := intAttr(img.Width)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", img.Name, err)
		}
		height, err := intAttr(img.Height)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", img.Name, err)
		}

		var boxes []BoundingBox
		for _, b := range img.Boxes {
			if b.Label == "" {
				continue
			}
			box := BoundingBox{Label: b.Label}
			for _, field := range []struct {
				raw string
				dst *float64
			}{
				{b.Xtl, &box.Xtl},
				{b.Ytl, &box.Ytl},
				{b.Xbr, &box.Xbr},
				{b.Ybr, &box.Ybr},
			} {
				v, err := floatAttr(field.raw)
				if err != nil {
					return nil, fmt.Errorf("image %q: %w", img.Name, err)
				}
				*field.dst = v
			}
			boxes = append(boxes, box)
			labelCounts[b.Label]++
		}

		if _, seen := ds.Images[img.Name]; !seen {
			ds.Names = append(ds.Names, img.Name)
		}
		ds.Images[img.Name] = ImageInfo{Width: width, Height: height, Boxes: boxes}
	}

	ds.LabelNames = make([]string, 0, len(labelCounts))
	for name := range labelCounts {
		ds.LabelNames = append(ds.LabelNames, name)
	}
	sort.Strings(ds.LabelNames)
	for id, name := range ds.LabelNames {
		ds.LabelToID[name] = id
	}

	ds.Meta.ImageCount = len(ds.Images)
	for _, name := range ds.LabelNames {
		ds.Meta.Labels = append(ds.Meta.Labels, LabelCount{Name: name, Count: labelCounts[name]})
	}
	for _, info := range ds.Images {
		ds.Meta.BoxCount += len(info.Boxes)
	}

	return ds, nil
}

func intAttr(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer attribute %q", s)
	}
	return v, nil
}

func floatAttr(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric attribute %q", s)
	}
	return v, nil
}
