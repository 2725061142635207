package annotation

// BoundingBox is one labeled box in the coordinate space of the image it
// belongs to. Transforms produce new boxes rather than mutating these.
type BoundingBox struct {
	Label string
	Xtl   float64
	Ytl   float64
	Xbr   float64
	Ybr   float64
}

// ImageInfo holds the declared dimensions and boxes of one annotated image.
// A zero width or height means the annotation did not declare it.
type ImageInfo struct {
	Width  int
	Height int
	Boxes  []BoundingBox
}

// LabelCount pairs a label name with how many boxes carry it.
type LabelCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Meta is the compact dataset summary attached to tickets as label metadata.
type Meta struct {
	ImageCount     int          `json:"image_count"`
	BoxCount       int          `json:"box_count"`
	Labels         []LabelCount `json:"labels"`
	OriginalWidth  int          `json:"original_width,omitempty"`
	OriginalHeight int          `json:"original_height,omitempty"`
}

// Dataset is the normalized in-memory model of one annotation document.
// LabelToID assigns ascending integers to LabelNames in lexicographic order;
// that ordering is the reproducibility contract for class-indexed formats.
type Dataset struct {
	// Images maps the annotation-declared image name to its info.
	Images map[string]ImageInfo
	// Names preserves declaration order so output archives are
	// reproducible across runs.
	Names      []string
	LabelNames []string
	LabelToID  map[string]int
	Meta       Meta
}
